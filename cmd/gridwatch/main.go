// Command gridwatch runs the grid watchdog against a gridsim API. It
// observes grid health on an interval, checkpoints a grid that stays
// critical and pauses the simulation when the grid audit fails.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/gridsim/internal/watchdog"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	apiURL := envOrDefault("GRIDSIM_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("GRIDSIM_ADMIN_KEY")
	memoryPath := envOrDefault("GRIDWATCH_MEMORY", "data/gridwatch.json")
	intervalSec := envIntOrDefault("GRIDWATCH_INTERVAL", 300)

	if adminKey == "" {
		slog.Error("GRIDSIM_ADMIN_KEY is required")
		os.Exit(1)
	}

	interval := time.Duration(intervalSec) * time.Second
	slog.Info("gridwatch starting", "api_url", apiURL, "interval", interval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observer := watchdog.NewObserver(apiURL)
	actor := watchdog.NewActor(apiURL, adminKey)
	mem := watchdog.LoadMemory(memoryPath)

	slog.Info("waiting for gridsim API...")
	if err := waitForAPI(ctx, apiURL); err != nil {
		slog.Error("gridsim API not ready", "error", err)
		os.Exit(1)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := watchdog.RunCycle(ctx, observer, actor, mem); err != nil {
			slog.Error("watchdog cycle failed", "error", err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			fmt.Println("gridwatch stopped.")
			return
		}
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds, for at most five minutes.
func waitForAPI(ctx context.Context, apiURL string) error {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		resp, err := http.Get(apiURL + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("gridsim API is ready")
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("no answer from %s within 5 minutes", apiURL)
		}
		slog.Info("gridsim not ready, retrying...", "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
