// Package headless implements audit.SiteCollector with chromedp and headless Chrome.
package headless

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-audit/internal/audit"
	"github.com/JakeFAU/site-audit/internal/browser"
	"github.com/JakeFAU/site-audit/internal/collector"
	"github.com/JakeFAU/site-audit/internal/logging"
)

const defaultNavigationTimeout = 30 * time.Second

// Viewport is an emulated device size.
type Viewport struct {
	Width  int64
	Height int64
	Mobile bool
}

// Default viewports for the two screenshots.
var (
	DesktopViewport = Viewport{Width: 1440, Height: 900}
	MobileViewport  = Viewport{Width: 390, Height: 844, Mobile: true}
)

// Config controls the behavior of the site collector.
type Config struct {
	NavigationTimeout time.Duration
	Browser           browser.Config
}

type launchFunc func(ctx context.Context, cfg browser.Config) (context.Context, func(), error)

// Collector captures page structure and screenshots for one URL per call.
type Collector struct {
	cfg    Config
	launch launchFunc
	logger *zap.Logger
}

// New creates a site collector backed by chromedp.
func New(cfg Config, logger *zap.Logger) *Collector {
	return &Collector{
		cfg:    cfg,
		launch: browser.Launch,
		logger: logging.OrNop(logger),
	}
}

// Collect loads website at desktop and mobile widths and returns the extracted
// structure plus both full-page screenshots. The browser is released on every path.
func (c *Collector) Collect(ctx context.Context, website string) (audit.ScrapedData, error) {
	base, err := url.Parse(website)
	if err != nil {
		return audit.ScrapedData{}, fmt.Errorf("parse website: %w", err)
	}

	browserCtx, release, err := c.launch(ctx, c.cfg.Browser)
	if err != nil {
		return audit.ScrapedData{}, err
	}
	defer release()

	idle := newIdleWaiter()
	chromedp.ListenTarget(browserCtx, idle.handle)

	start := time.Now()
	if err := chromedp.Run(browserCtx, idle.enable()); err != nil {
		return audit.ScrapedData{}, fmt.Errorf("enable lifecycle events: %w", err)
	}

	var (
		desktopShot []byte
		mobileShot  []byte
		html        string
		location    string
	)
	err = c.step(browserCtx, "desktop load",
		emulate(DesktopViewport),
		idle.arm(),
		chromedp.Navigate(website),
		idle.wait(),
		chromedp.FullScreenshot(&desktopShot, 100),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return audit.ScrapedData{}, err
	}

	err = c.step(browserCtx, "mobile load",
		emulate(MobileViewport),
		idle.arm(),
		chromedp.Reload(),
		idle.wait(),
		chromedp.FullScreenshot(&mobileShot, 100),
	)
	if err != nil {
		return audit.ScrapedData{}, err
	}
	loadTime := time.Since(start)

	if loc, perr := url.Parse(location); perr == nil && loc.IsAbs() {
		base = loc
	}
	page, err := collector.Extract(html, base)
	if err != nil {
		return audit.ScrapedData{}, err
	}

	data := collector.Summarize(page, website)
	data.LoadTimeMs = loadTime.Milliseconds()
	data.ScreenshotDesktop = desktopShot
	data.ScreenshotMobile = mobileShot

	c.logger.Debug("site collected",
		zap.String("website", website),
		zap.Int64("load_time_ms", data.LoadTimeMs),
		zap.Int("desktop_bytes", len(desktopShot)),
		zap.Int("mobile_bytes", len(mobileShot)),
	)
	return data, nil
}

// step runs actions under one navigation budget.
func (c *Collector) step(ctx context.Context, name string, actions ...chromedp.Action) error {
	stepCtx, cancel := context.WithTimeout(ctx, c.navTimeout())
	defer cancel()
	if err := chromedp.Run(stepCtx, actions...); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (c *Collector) navTimeout() time.Duration {
	if c.cfg.NavigationTimeout > 0 {
		return c.cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}

func emulate(v Viewport) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := emulation.SetDeviceMetricsOverride(v.Width, v.Height, 1, v.Mobile).Do(ctx); err != nil {
			return fmt.Errorf("set viewport %dx%d: %w", v.Width, v.Height, err)
		}
		return nil
	})
}
