// Package pagespeed calls the PageSpeed Insights API and normalizes its
// Lighthouse payload into audit.PerformanceResult.
package pagespeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-audit/internal/audit"
	"github.com/JakeFAU/site-audit/internal/logging"
)

// DefaultBaseURL is the public PageSpeed Insights v5 endpoint.
const DefaultBaseURL = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

const maxErrorBody = 4 << 10

// ErrMalformedResponse is returned when the service answers with a payload
// that does not carry a Lighthouse result.
var ErrMalformedResponse = errors.New("pagespeed: malformed response")

var categories = []string{"performance", "accessibility", "seo", "best-practices"}

// Throttle delays outbound calls to stay inside the API quota.
type Throttle interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls the PageSpeed client. Throttle is optional.
type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	Throttle Throttle
}

// Client implements audit.PerformanceClient.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New creates a Client. A nil httpClient gets one with cfg.Timeout.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient, logger: logging.OrNop(logger)}
}

// Analyze runs a mobile Lighthouse analysis of website.
func (c *Client) Analyze(ctx context.Context, website string) (audit.PerformanceResult, error) {
	endpoint, err := c.endpoint(website)
	if err != nil {
		return audit.PerformanceResult{}, err
	}
	if c.cfg.Throttle != nil {
		if err := c.cfg.Throttle.Wait(ctx, c.cfg.BaseURL); err != nil {
			return audit.PerformanceResult{}, fmt.Errorf("pagespeed quota: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return audit.PerformanceResult{}, fmt.Errorf("build pagespeed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return audit.PerformanceResult{}, fmt.Errorf("pagespeed request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("failed to close pagespeed body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return audit.PerformanceResult{}, fmt.Errorf("pagespeed API error: %s: %s", resp.Status, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return audit.PerformanceResult{}, fmt.Errorf("read pagespeed body: %w", err)
	}
	result, err := Decode(body)
	if err != nil {
		return audit.PerformanceResult{}, err
	}
	c.logger.Debug("pagespeed analyzed",
		zap.String("website", website),
		zap.Int("performance", result.PerformanceScore),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (c *Client) endpoint(website string) (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse pagespeed base url: %w", err)
	}
	q := u.Query()
	q.Set("url", website)
	for _, cat := range categories {
		q.Add("category", cat)
	}
	q.Set("strategy", "mobile")
	if c.cfg.APIKey != "" {
		q.Set("key", c.cfg.APIKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
