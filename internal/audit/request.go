package audit

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultSource tags submissions that do not name where they came from.
const DefaultSource = "landing_page_section"

// RawRequest is the inbound submission before validation.
type RawRequest struct {
	Name    string
	Email   string
	Phone   string
	Website string
	Source  string
}

// NewRequest trims and validates a submission, coercing the website to include a scheme.
func NewRequest(raw RawRequest) (Request, error) {
	req := Request{
		Name:    strings.TrimSpace(raw.Name),
		Email:   strings.TrimSpace(raw.Email),
		Phone:   strings.TrimSpace(raw.Phone),
		Website: strings.TrimSpace(raw.Website),
		Source:  strings.TrimSpace(raw.Source),
	}
	if req.Name == "" || req.Email == "" || req.Website == "" {
		return Request{}, fmt.Errorf("%w: missing required fields: name, email, website", ErrInvalidRequest)
	}
	if req.Source == "" {
		req.Source = DefaultSource
	}
	website, err := NormalizeWebsite(req.Website)
	if err != nil {
		return Request{}, err
	}
	req.Website = website
	return req, nil
}

// NormalizeWebsite prefixes https:// when the value has no http(s) scheme and
// checks that the result carries a host.
func NormalizeWebsite(raw string) (string, error) {
	website := strings.TrimSpace(raw)
	lower := strings.ToLower(website)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		website = "https://" + website
	}
	u, err := url.Parse(website)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("%w: website %q is not a valid URL", ErrInvalidRequest, raw)
	}
	return website, nil
}
