// Package browser launches short-lived headless Chrome instances via chromedp.
//
// Every Launch starts a dedicated browser process that belongs to the caller
// until the returned release function runs. Instances are never shared or pooled.
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config controls how the browser process is started.
type Config struct {
	ExecPath  string
	UserAgent string
	Logger    *zap.Logger
}

// Launch starts a browser and returns a chromedp context bound to its first tab.
// The release function must be called on every path; it closes the tab and
// terminates the browser process.
func Launch(ctx context.Context, cfg Config) (context.Context, func(), error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	ctxOpts := []chromedp.ContextOption{}
	if cfg.Logger != nil {
		sugar := cfg.Logger.Sugar()
		ctxOpts = append(ctxOpts, chromedp.WithErrorf(sugar.Debugf))
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	release := func() {
		browserCancel()
		allocCancel()
	}

	// The first Run allocates the browser; it must not carry a deadline or the
	// browser dies with it.
	if err := chromedp.Run(browserCtx); err != nil {
		release()
		return nil, nil, fmt.Errorf("start browser: %w", err)
	}
	return browserCtx, release, nil
}
