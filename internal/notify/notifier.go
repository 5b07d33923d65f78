// Package notify composes and sends the report, lead and failure-alert emails.
package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-audit/internal/audit"
	"github.com/JakeFAU/site-audit/internal/logging"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Attachment is a file sent alongside a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one outbound email.
type Message struct {
	From        string
	To          []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Mailer delivers a single message and returns the provider's message id.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Config controls sender identity and branding.
type Config struct {
	From          string
	TeamRecipient string
	Brand         string
	LangCode      string
	Direction     string
	Contact       string
}

// Notifier implements audit.Notifier.
type Notifier struct {
	cfg    Config
	mailer Mailer
	now    func() time.Time
	logger *zap.Logger
}

// New creates a Notifier.
func New(cfg Config, mailer Mailer, logger *zap.Logger) *Notifier {
	if cfg.LangCode == "" {
		cfg.LangCode = "en"
	}
	if cfg.Direction == "" {
		cfg.Direction = "ltr"
	}
	return &Notifier{cfg: cfg, mailer: mailer, now: time.Now, logger: logging.OrNop(logger)}
}

type userView struct {
	Config
	Name       string
	Domain     string
	Highlights []string
}

type teamView struct {
	Config
	Request audit.Request
}

type alertView struct {
	Request audit.Request
	Error   string
}

// SendReport emails the document to the requester, then to the team.
func (n *Notifier) SendReport(
	ctx context.Context,
	req audit.Request,
	document []byte,
	highlights []audit.ActionItem,
) (audit.EmailReceipt, error) {
	domain := req.Hostname()
	attachment := Attachment{Filename: ReportFilename(domain), ContentType: "application/pdf", Content: document}

	userHTML, err := render("user.html.tmpl", userView{
		Config:     n.cfg,
		Name:       req.Name,
		Domain:     domain,
		Highlights: HighlightLines(highlights),
	})
	if err != nil {
		return audit.EmailReceipt{}, err
	}
	teamHTML, err := render("team.html.tmpl", teamView{Config: n.cfg, Request: req})
	if err != nil {
		return audit.EmailReceipt{}, err
	}

	var receipt audit.EmailReceipt
	id, err := n.mailer.Send(ctx, Message{
		From:        n.cfg.From,
		To:          []string{req.Email},
		Subject:     fmt.Sprintf("Your website audit is ready: %s", domain),
		HTML:        userHTML,
		Attachments: []Attachment{attachment},
	})
	if err != nil {
		return audit.EmailReceipt{}, fmt.Errorf("send report to requester: %w", err)
	}
	receipt.UserSentAt = n.now().UTC()
	n.logger.Info("report email sent", zap.String("message_id", id), zap.String("domain", domain))

	id, err = n.mailer.Send(ctx, Message{
		From:        n.cfg.From,
		To:          []string{n.cfg.TeamRecipient},
		Subject:     fmt.Sprintf("New lead: %s (%s)", req.Name, domain),
		HTML:        teamHTML,
		Attachments: []Attachment{attachment},
	})
	if err != nil {
		return audit.EmailReceipt{}, fmt.Errorf("send report to team: %w", err)
	}
	receipt.TeamSentAt = n.now().UTC()
	n.logger.Info("lead email sent", zap.String("message_id", id), zap.String("domain", domain))
	return receipt, nil
}

// SendFailureAlert emails the raw failure text to the team. No attachment.
func (n *Notifier) SendFailureAlert(ctx context.Context, req audit.Request, errText string) error {
	html, err := render("alert.html.tmpl", alertView{Request: req, Error: errText})
	if err != nil {
		return err
	}
	if _, err := n.mailer.Send(ctx, Message{
		From:    n.cfg.From,
		To:      []string{n.cfg.TeamRecipient},
		Subject: fmt.Sprintf("[ERROR] Audit pipeline failed for %s", req.Website),
		HTML:    html,
	}); err != nil {
		return fmt.Errorf("send failure alert: %w", err)
	}
	return nil
}

// ReportFilename names the PDF attachment for domain.
func ReportFilename(domain string) string {
	if domain == "" {
		domain = "site"
	}
	return fmt.Sprintf("audit-report-%s.pdf", domain)
}

// HighlightLines formats action items as "Title (High priority)".
func HighlightLines(items []audit.ActionItem) []string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%s (%s priority)", item.Title, impactWord(item.Impact)))
	}
	return lines
}

func impactWord(i audit.Impact) string {
	switch i {
	case audit.ImpactHigh:
		return "High"
	case audit.ImpactLow:
		return "Low"
	default:
		return "Medium"
	}
}

var errNoTemplate = errors.New("notify: unknown template")

func render(name string, data any) (string, error) {
	tmpl := templates.Lookup(name)
	if tmpl == nil {
		return "", fmt.Errorf("%w: %s", errNoTemplate, name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
