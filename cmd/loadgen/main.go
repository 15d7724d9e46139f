// Command loadgen fires concurrent requests at one strategy endpoint of the
// demo server to reproduce a cache stampede and report how many requests
// actually reached the origin versus were served from cache.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type response struct {
	FromCache bool `json:"from_cache"`
	Stale     bool `json:"stale"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the demo server")
	strategy := flag.String("strategy", "basic", "strategy name: basic, jitter, jitter-lock, jitter-swr, full-protection")
	productID := flag.String("product", "1", "product ID to hammer")
	concurrency := flag.Int("concurrency", 50, "number of concurrent callers")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	flag.Parse()

	if err := run(*baseURL, *strategy, *productID, *concurrency, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "loadgen:", err)
		os.Exit(1)
	}
}

func run(baseURL, strategy, productID string, concurrency int, timeout time.Duration) error {
	url := fmt.Sprintf("%s/%s/products/%s", baseURL, strategy, productID)

	var hits, misses, stale, failures atomic.Int64
	client := &http.Client{Timeout: timeout}

	start := time.Now()
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			res, err := fetchOnce(ctx, client, url)
			if err != nil {
				failures.Add(1)
				return nil
			}
			if res.FromCache {
				hits.Add(1)
			} else {
				misses.Add(1)
			}
			if res.Stale {
				stale.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("strategy=%s concurrency=%d elapsed=%v\n", strategy, concurrency, elapsed)
	fmt.Printf("  cache hits:    %d\n", hits.Load())
	fmt.Printf("  origin misses: %d (ideally close to 1 under stampede protection)\n", misses.Load())
	fmt.Printf("  stale served:  %d\n", stale.Load())
	fmt.Printf("  failures:      %d\n", failures.Load())
	return nil
}

func fetchOnce(ctx context.Context, client *http.Client, url string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return response{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return response{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var wrapper struct {
		FromCache bool `json:"from_cache"`
		Stale     bool `json:"stale"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return response{}, err
	}
	return response{FromCache: wrapper.FromCache, Stale: wrapper.Stale}, nil
}
