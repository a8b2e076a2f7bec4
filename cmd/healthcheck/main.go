// Command healthcheck checks the daemon's /healthz endpoint and exits non-zero
// unless the API reports status "ok". It resolves the address from the same
// flags, config file and GEOTRACK_ environment as geotrackd.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	httphandler "github.com/geotrack/geotrack/internal/adapter/driving/http"
	"github.com/geotrack/geotrack/internal/config"
)

const (
	timeout      = 2 * time.Second
	maxBodyBytes = 4 << 10
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "healthcheck:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return checkHealth(ctx, &http.Client{Timeout: timeout}, "http://"+cfg.LocalAddr())
}

// checkHealth requires a 200 response whose body decodes to status "ok".
func checkHealth(ctx context.Context, client *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", req.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", req.URL, resp.StatusCode)
	}

	var health httphandler.HealthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if health.Status != "ok" {
		return fmt.Errorf("api reported status %q", health.Status)
	}
	return nil
}
