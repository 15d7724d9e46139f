package cache

import (
	"os"
	"testing"
	"time"
)

func TestDefaultConfigMatchesTunableTable(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BaseTTL != 60*time.Second {
		t.Errorf("BaseTTL = %v, want 60s", cfg.BaseTTL)
	}
	if cfg.JitterMax != 10*time.Second {
		t.Errorf("JitterMax = %v, want 10s", cfg.JitterMax)
	}
	if cfg.SoftTTLRatio != 0.8 {
		t.Errorf("SoftTTLRatio = %v, want 0.8", cfg.SoftTTLRatio)
	}
	if cfg.LockTimeout != 5*time.Second {
		t.Errorf("LockTimeout = %v, want 5s", cfg.LockTimeout)
	}
	if cfg.LockRetryInterval != 50*time.Millisecond {
		t.Errorf("LockRetryInterval = %v, want 50ms", cfg.LockRetryInterval)
	}
	if cfg.LockMaxRetries != 100 {
		t.Errorf("LockMaxRetries = %v, want 100", cfg.LockMaxRetries)
	}
	if cfg.DisableLockTimeoutFallback {
		t.Error("DisableLockTimeoutFallback default must be false")
	}
}

func TestLoadConfigFromEnvOverlaysDefaults(t *testing.T) {
	t.Setenv("CACHE_BASE_TTL_SECONDS", "30")
	t.Setenv("CACHE_LOCK_MAX_RETRIES", "7")
	t.Setenv("CACHE_DISABLE_LOCK_TIMEOUT_FALLBACK", "true")

	cfg := LoadConfigFromEnv("")
	if cfg.BaseTTL != 30*time.Second {
		t.Errorf("BaseTTL = %v, want 30s", cfg.BaseTTL)
	}
	if cfg.LockMaxRetries != 7 {
		t.Errorf("LockMaxRetries = %v, want 7", cfg.LockMaxRetries)
	}
	if !cfg.DisableLockTimeoutFallback {
		t.Error("expected DisableLockTimeoutFallback to be true")
	}
	// Untouched fields keep their defaults.
	if cfg.SoftTTLRatio != 0.8 {
		t.Errorf("SoftTTLRatio = %v, want unchanged default 0.8", cfg.SoftTTLRatio)
	}
}

func TestLoadConfigFromEnvIgnoresGarbageValues(t *testing.T) {
	t.Setenv("CACHE_BASE_TTL_SECONDS", "not-a-number")
	cfg := LoadConfigFromEnv("")
	if cfg.BaseTTL != DefaultConfig().BaseTTL {
		t.Errorf("BaseTTL = %v, want default preserved on parse failure", cfg.BaseTTL)
	}
}

func TestLoadConfigFromEnvMissingFileIsNotFatal(t *testing.T) {
	path := "/nonexistent/path/.env." + t.Name()
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("unexpectedly found %q", path)
	}
	cfg := LoadConfigFromEnv(path)
	if cfg.BaseTTL != DefaultConfig().BaseTTL {
		t.Errorf("expected defaults when the env file is missing, got %v", cfg.BaseTTL)
	}
}
