package cache

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the flat set of tunables governing every strategy. Every
// duration field is stored as a time.Duration internally even though most
// are configured in seconds (or milliseconds, for the lock retry interval)
// — conversion happens once, at load time.
type Config struct {
	BaseTTL              time.Duration // baseTtlSeconds
	JitterMax            time.Duration // jitterMaxSeconds
	SoftTTLRatio         float64       // softTtlRatio
	LockTimeout          time.Duration // lockTimeoutSeconds
	LockRetryInterval    time.Duration // lockRetryIntervalMs
	LockMaxRetries       int           // lockMaxRetries

	// RefreshCooldown is a supplemental guard that throttles how often a
	// single key may re-enter the refresh-in-flight path. Zero disables
	// it, which is the unmodified default behavior.
	RefreshCooldown time.Duration

	// DisableLockTimeoutFallback turns the fail-open fallback (direct
	// loader call on lock timeout) into ErrLockUnavailable. Defaults to
	// false.
	DisableLockTimeoutFallback bool

	// BackgroundWorkerPoolSize bounds the worker pool that dispatches
	// SWR/full-protection background revalidation.
	BackgroundWorkerPoolSize int
}

// DefaultConfig returns the documented defaults for every tunable.
func DefaultConfig() Config {
	return Config{
		BaseTTL:                    60 * time.Second,
		JitterMax:                  10 * time.Second,
		SoftTTLRatio:               0.8,
		LockTimeout:                5 * time.Second,
		LockRetryInterval:          50 * time.Millisecond,
		LockMaxRetries:             100,
		RefreshCooldown:            0,
		DisableLockTimeoutFallback: false,
		BackgroundWorkerPoolSize:   64,
	}
}

// LoadConfigFromEnv loads an optional .env file, ignoring a missing file,
// and overlays DefaultConfig with any recognized environment variables.
// Configuration is loaded once at startup; nothing in this package
// mutates a Config afterward.
func LoadConfigFromEnv(envFile string) Config {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()
	cfg.BaseTTL = envDuration("CACHE_BASE_TTL_SECONDS", cfg.BaseTTL, time.Second)
	cfg.JitterMax = envDuration("CACHE_JITTER_MAX_SECONDS", cfg.JitterMax, time.Second)
	cfg.SoftTTLRatio = envFloat("CACHE_SOFT_TTL_RATIO", cfg.SoftTTLRatio)
	cfg.LockTimeout = envDuration("CACHE_LOCK_TIMEOUT_SECONDS", cfg.LockTimeout, time.Second)
	cfg.LockRetryInterval = envDuration("CACHE_LOCK_RETRY_INTERVAL_MS", cfg.LockRetryInterval, time.Millisecond)
	cfg.LockMaxRetries = envInt("CACHE_LOCK_MAX_RETRIES", cfg.LockMaxRetries)
	cfg.RefreshCooldown = envDuration("CACHE_REFRESH_COOLDOWN_SECONDS", cfg.RefreshCooldown, time.Second)
	cfg.DisableLockTimeoutFallback = envBool("CACHE_DISABLE_LOCK_TIMEOUT_FALLBACK", cfg.DisableLockTimeoutFallback)
	cfg.BackgroundWorkerPoolSize = envInt("CACHE_BACKGROUND_WORKER_POOL_SIZE", cfg.BackgroundWorkerPoolSize)
	return cfg
}

func envDuration(key string, fallback time.Duration, unit time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return time.Duration(n) * unit
}

func envFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
