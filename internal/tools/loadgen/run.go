package loadgen

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
}

type Result struct {
	TotalRequests int64
	Failures      int64
	Status2xx     int64
	Status4xx     int64
	Status5xx     int64
	Limited       int64
}

// Run drives read-only traffic at the portal so dashboards and alert rules
// can be exercised against real request shapes. It never issues mutations.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 15
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}

	paths := pathsForProfile(cfg.Profile)
	if len(paths) == 0 {
		return Result{}, fmt.Errorf("unknown profile: %s", cfg.Profile)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var res Result
	jobs := make(chan string, cfg.Concurrency*2)
	workers, workerCtx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Concurrency; i++ {
		workers.Go(func() error {
			for path := range jobs {
				req, err := http.NewRequestWithContext(workerCtx, http.MethodGet, cfg.BaseURL+path, nil)
				if err != nil {
					atomic.AddInt64(&res.Failures, 1)
					continue
				}
				req.Header.Set("Accept", "application/json")
				resp, err := client.Do(req)
				if err != nil {
					atomic.AddInt64(&res.Failures, 1)
					continue
				}
				_ = resp.Body.Close()
				atomic.AddInt64(&res.TotalRequests, 1)
				switch {
				case resp.StatusCode >= 200 && resp.StatusCode < 300:
					atomic.AddInt64(&res.Status2xx, 1)
				case resp.StatusCode == http.StatusTooManyRequests:
					atomic.AddInt64(&res.Limited, 1)
					atomic.AddInt64(&res.Status4xx, 1)
				case resp.StatusCode >= 400 && resp.StatusCode < 500:
					atomic.AddInt64(&res.Status4xx, 1)
				case resp.StatusCode >= 500:
					atomic.AddInt64(&res.Status5xx, 1)
				}
			}
			return nil
		})
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()
	i := 0
	for {
		select {
		case <-ctx.Done():
			close(jobs)
			_ = workers.Wait()
			return res, nil
		case <-ticker.C:
			jobs <- paths[i%len(paths)]
			i++
		}
	}
}

func pathsForProfile(profile string) []string {
	listing := []string{
		"/admins",
		"/admins?page=2",
		"/admins?sort_field=email&sort_direction=asc",
		"/admins?search=smith",
		"/admins/new",
	}
	switch strings.ToLower(profile) {
	case "", "mixed":
		return append(listing, "/health/live", "/health/ready")
	case "listing":
		return listing
	case "error-heavy":
		return []string{
			"/admins?user_type_id=abc",
			"/admins/missing-route",
			"/health/ready",
		}
	default:
		return nil
	}
}
