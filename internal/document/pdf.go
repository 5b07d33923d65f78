package document

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-audit/internal/audit"
	"github.com/JakeFAU/site-audit/internal/browser"
	"github.com/JakeFAU/site-audit/internal/logging"
)

const defaultRenderTimeout = 30 * time.Second

// A4 in inches.
const (
	a4Width  = 8.27
	a4Height = 11.69
)

// settleScript resolves once web fonts and every <img> have finished loading.
const settleScript = `(async () => {
  if (document.fonts && document.fonts.ready) {
    await document.fonts.ready;
  }
  await Promise.all(Array.from(document.images)
    .filter((img) => !img.complete)
    .map((img) => new Promise((resolve) => { img.onload = img.onerror = resolve; })));
  return true;
})()`

// Config controls the PDF renderer.
type Config struct {
	Timeout  time.Duration
	Browser  browser.Config
	Branding Branding
}

type launchFunc func(ctx context.Context, cfg browser.Config) (context.Context, func(), error)

// Renderer implements audit.DocumentRenderer.
type Renderer struct {
	cfg    Config
	launch launchFunc
	now    func() time.Time
	logger *zap.Logger
}

// NewRenderer creates a PDF renderer.
func NewRenderer(cfg Config, logger *zap.Logger) *Renderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRenderTimeout
	}
	return &Renderer{
		cfg:    cfg,
		launch: browser.Launch,
		now:    time.Now,
		logger: logging.OrNop(logger),
	}
}

// Render prints the report for artifact to PDF bytes.
func (r *Renderer) Render(ctx context.Context, artifact audit.Artifact) ([]byte, error) {
	html, err := RenderHTML(artifact, r.cfg.Branding, r.now())
	if err != nil {
		return nil, err
	}

	browserCtx, release, err := r.launch(ctx, r.cfg.Browser)
	if err != nil {
		return nil, err
	}
	defer release()

	renderCtx, cancel := context.WithTimeout(browserCtx, r.cfg.Timeout)
	defer cancel()

	var (
		pdf     []byte
		settled bool
	)
	err = chromedp.Run(renderCtx,
		chromedp.Navigate("about:blank"),
		setContent(string(html)),
		chromedp.Evaluate(settleScript, &settled, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				WithPaperWidth(a4Width).
				WithPaperHeight(a4Height).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print report: %w", err)
	}

	r.logger.Debug("report rendered",
		zap.String("website", artifact.Request.Website),
		zap.Int("html_bytes", len(html)),
		zap.Int("pdf_bytes", len(pdf)),
	)
	return pdf, nil
}

func setContent(html string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	})
}
