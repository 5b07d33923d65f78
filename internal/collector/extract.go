// Package collector turns a rendered DOM snapshot into audit.ScrapedData.
package collector

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/site-audit/internal/audit"
)

// MetaTag is one <meta> element carrying a name or property attribute.
type MetaTag struct {
	Name     string
	Property string
	Content  string
}

// RawHeading is an h1-h6 element before its level is parsed.
type RawHeading struct {
	TagName string
	Text    string
}

// RawImage is an <img> src/alt pair.
type RawImage struct {
	Src string
	Alt string
}

// RawPage is everything read from the DOM in a single pass.
type RawPage struct {
	Title           string
	MetaTags        []MetaTag
	Headings        []RawHeading
	Links           []string
	Images          []RawImage
	HasViewportMeta bool
	HasSchemaOrg    bool
	Language        string
	Direction       string
}

// MetaSummary splits meta tags into the buckets the report uses.
type MetaSummary struct {
	Description string
	Keywords    string
	OGTags      map[string]string
}

// Extract parses rendered HTML. Anchor hrefs are resolved against base; hrefs
// that cannot be resolved are kept verbatim.
func Extract(html string, base *url.URL) (RawPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return RawPage{}, fmt.Errorf("parse html: %w", err)
	}

	page := RawPage{
		Title: strings.Join(strings.Fields(doc.Find("title").First().Text()), " "),
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		property := s.AttrOr("property", "")
		if name == "" && property == "" {
			return
		}
		page.MetaTags = append(page.MetaTags, MetaTag{
			Name:     name,
			Property: property,
			Content:  s.AttrOr("content", ""),
		})
	})

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		page.Headings = append(page.Headings, RawHeading{
			TagName: goquery.NodeName(s),
			Text:    strings.TrimSpace(s.Text()),
		})
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			return
		}
		page.Links = append(page.Links, resolveHref(base, href))
	})

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		page.Images = append(page.Images, RawImage{
			Src: s.AttrOr("src", ""),
			Alt: s.AttrOr("alt", ""),
		})
	})

	page.HasViewportMeta = doc.Find(`meta[name="viewport"]`).Length() > 0
	page.HasSchemaOrg = doc.Find(`script[type="application/ld+json"]`).Length() > 0

	root := doc.Find("html").First()
	page.Language = root.AttrOr("lang", "")
	page.Direction = root.AttrOr("dir", "")

	return page, nil
}

func resolveHref(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// ParseMetaTags buckets meta tags into description, keywords and Open Graph entries.
func ParseMetaTags(tags []MetaTag) MetaSummary {
	summary := MetaSummary{OGTags: map[string]string{}}
	for _, tag := range tags {
		switch {
		case strings.EqualFold(tag.Name, "description"):
			summary.Description = tag.Content
		case strings.EqualFold(tag.Name, "keywords"):
			summary.Keywords = tag.Content
		case strings.HasPrefix(tag.Property, "og:"):
			summary.OGTags[tag.Property] = tag.Content
		}
	}
	return summary
}

// CountLinks classifies links against host. A link is internal when its
// hostname equals host or is a subdomain of it. Links that do not parse as
// absolute URLs are counted as internal.
func CountLinks(links []string, host string) (internal, external int) {
	host = strings.ToLower(host)
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil || !u.IsAbs() {
			internal++
			continue
		}
		hostname := strings.ToLower(u.Hostname())
		if hostname == host || strings.HasSuffix(hostname, "."+host) {
			internal++
		} else {
			external++
		}
	}
	return internal, external
}

// AnalyzeImages counts images and those whose trimmed alt text is non-empty.
func AnalyzeImages(images []RawImage) (total, withAlt int) {
	for _, img := range images {
		if strings.TrimSpace(img.Alt) != "" {
			withAlt++
		}
	}
	return len(images), withAlt
}

// ParseHeadings reads the numeric level out of each heading's tag name.
func ParseHeadings(raw []RawHeading) []audit.Heading {
	out := make([]audit.Heading, 0, len(raw))
	for _, h := range raw {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, h.TagName)
		level, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		out = append(out, audit.Heading{Level: level, Text: h.Text})
	}
	return out
}

// Summarize folds a RawPage into ScrapedData for website. Screenshots and load
// time are left for the caller.
func Summarize(page RawPage, website string) audit.ScrapedData {
	meta := ParseMetaTags(page.MetaTags)
	var host string
	hasSSL := false
	if u, err := url.Parse(website); err == nil {
		host = u.Hostname()
		hasSSL = strings.EqualFold(u.Scheme, "https")
	}
	internal, external := CountLinks(page.Links, host)
	total, withAlt := AnalyzeImages(page.Images)

	return audit.ScrapedData{
		URL:               website,
		Title:             page.Title,
		MetaDescription:   meta.Description,
		MetaKeywords:      meta.Keywords,
		OGTags:            meta.OGTags,
		Headings:          ParseHeadings(page.Headings),
		InternalLinkCount: internal,
		ExternalLinkCount: external,
		ImageCount:        total,
		ImagesWithAlt:     withAlt,
		HasSSL:            hasSSL,
		Language:          page.Language,
		Direction:         page.Direction,
		HasViewportMeta:   page.HasViewportMeta,
		HasSchemaOrg:      page.HasSchemaOrg,
	}
}
