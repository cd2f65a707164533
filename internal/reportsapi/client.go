// Package reportsapi fetches civic reports from the upstream REST API.
package reportsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jengzang/civic-map/internal/logging"
	"github.com/jengzang/civic-map/internal/models"
)

// ErrUpstream marks a non-retryable upstream response
var ErrUpstream = errors.New("reportsapi: upstream rejected request")

// Source supplies the current report list
type Source interface {
	Fetch(ctx context.Context) ([]models.Report, error)
}

// Config configures the upstream client
type Config struct {
	BaseURL    string        `mapstructure:"base_url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries uint64        `mapstructure:"max_retries"`
}

// Client implements Source over HTTP
type Client struct {
	cfg    Config
	client *http.Client
	log    logging.Logger

	// newBackOff is swapped in tests to avoid real sleeps
	newBackOff func() backoff.BackOff
}

// NewClient creates a reports client. A nil httpClient gets one with
// cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client, log logging.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:    cfg,
		client: httpClient,
		log:    log.Named("reportsapi"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
	}
}

// Fetch returns all reports. Transport errors and 5xx responses are
// retried with exponential backoff; 4xx and malformed bodies are not.
func (c *Client) Fetch(ctx context.Context) ([]models.Report, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/reports"

	var reports []models.Report
	attempt := 0
	op := func() error {
		attempt++
		r, err := c.fetchOnce(ctx, url)
		if err != nil {
			return err
		}
		reports = r
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.cfg.MaxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		c.log.Warn("report fetch failed, retrying",
			logging.Int("attempt", attempt),
			logging.Duration("wait", wait),
			logging.Err(err),
		)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, fmt.Errorf("fetch reports: %w", err)
	}
	return reports, nil
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]models.Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("upstream error (%d)", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("%w (%d): %s", ErrUpstream, resp.StatusCode, snippet(body)))
	}

	reports, err := Decode(body)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	return reports, nil
}

// Decode accepts either a bare JSON array of reports or an envelope whose
// "data" (or "reports") field holds the array.
func Decode(body []byte) ([]models.Report, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var reports []models.Report
		if err := json.Unmarshal(body, &reports); err != nil {
			return nil, fmt.Errorf("decode reports: %w", err)
		}
		return reports, nil
	}

	var env models.ReportListResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}
	if env.Data != nil {
		return env.Data, nil
	}
	if env.Reports != nil {
		return env.Reports, nil
	}
	return []models.Report{}, nil
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
