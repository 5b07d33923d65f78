// Package resend delivers notify messages through the Resend API.
package resend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/resend/resend-go/v2"

	"github.com/JakeFAU/site-audit/internal/notify"
)

// Mailer implements notify.Mailer.
type Mailer struct {
	client *resend.Client
}

// New creates a Mailer for apiKey.
func New(apiKey string) *Mailer {
	return &Mailer{client: resend.NewClient(apiKey)}
}

// NewWithBaseURL targets a non-default API endpoint with httpClient.
func NewWithBaseURL(apiKey, baseURL string, httpClient *http.Client) (*Mailer, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse resend base url: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	client := resend.NewCustomClient(httpClient, apiKey)
	client.BaseURL = u
	return &Mailer{client: client}, nil
}

// Send implements notify.Mailer.
func (m *Mailer) Send(ctx context.Context, msg notify.Message) (string, error) {
	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	for _, a := range msg.Attachments {
		req.Attachments = append(req.Attachments, &resend.Attachment{
			Filename:    a.Filename,
			Content:     a.Content,
			ContentType: a.ContentType,
		})
	}
	resp, err := m.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("resend send: %w", err)
	}
	return resp.Id, nil
}
