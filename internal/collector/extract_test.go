package collector

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-audit/internal/audit"
)

const samplePage = `<!DOCTYPE html>
<html lang="he" dir="rtl">
<head>
  <title>  Example
     Business </title>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width">
  <meta name="description" content="We provide services">
  <meta name="keywords" content="services, business">
  <meta property="og:title" content="Example">
  <meta property="og:image" content="https://example.com/og.png">
  <meta property="fb:app_id" content="123">
  <script type="application/ld+json">{"@type":"Organization"}</script>
</head>
<body>
  <h1> Welcome </h1>
  <h2>Services</h2>
  <h3>Details</h3>
  <a href="/about">About</a>
  <a href="https://blog.example.com/post">Blog</a>
  <a href="https://partner.org">Partner</a>
  <a href="">Empty</a>
  <img src="/a.png" alt="Logo">
  <img src="/b.png" alt="   ">
  <img src="/c.png">
</body>
</html>`

func TestExtractAndSummarize(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://example.com/")
	require.NoError(t, err)

	page, err := Extract(samplePage, base)
	require.NoError(t, err)
	require.Equal(t, "Example Business", page.Title)
	require.True(t, page.HasViewportMeta)
	require.True(t, page.HasSchemaOrg)
	require.Equal(t, "he", page.Language)
	require.Equal(t, "rtl", page.Direction)
	require.Equal(t, []string{
		"https://example.com/about",
		"https://blog.example.com/post",
		"https://partner.org",
	}, page.Links)

	data := Summarize(page, "https://example.com")
	require.Equal(t, "https://example.com", data.URL)
	require.Equal(t, "We provide services", data.MetaDescription)
	require.Equal(t, "services, business", data.MetaKeywords)
	require.Equal(t, map[string]string{
		"og:title": "Example",
		"og:image": "https://example.com/og.png",
	}, data.OGTags)
	require.Equal(t, []audit.Heading{
		{Level: 1, Text: "Welcome"},
		{Level: 2, Text: "Services"},
		{Level: 3, Text: "Details"},
	}, data.Headings)
	require.Equal(t, 2, data.InternalLinkCount)
	require.Equal(t, 1, data.ExternalLinkCount)
	require.Equal(t, 3, data.ImageCount)
	require.Equal(t, 1, data.ImagesWithAlt)
	require.True(t, data.HasSSL)
}

func TestSummarize_PlainHTTP(t *testing.T) {
	t.Parallel()

	data := Summarize(RawPage{}, "http://example.com")
	require.False(t, data.HasSSL)
	require.Empty(t, data.OGTags)
	require.Empty(t, data.Headings)
}

func TestCountLinks(t *testing.T) {
	t.Parallel()

	links := []string{
		"https://example.com/a",
		"https://EXAMPLE.com/b",
		"https://shop.example.com",
		"https://deep.sub.example.com/x",
		"https://notexample.com",
		"https://example.com.evil.net",
		"https://other.org",
		"mailto:hello@example.com",
		"/relative/path",
		"relative",
		"http://[::1",
	}
	internal, external := CountLinks(links, "example.com")
	// a, b, shop, deep, /relative/path, relative, malformed
	require.Equal(t, 7, internal)
	// notexample, evil, other, mailto
	require.Equal(t, 4, external)
	require.Equal(t, len(links), internal+external)
}

func TestAnalyzeImages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		images  []RawImage
		total   int
		withAlt int
	}{
		{name: "empty", images: nil, total: 0, withAlt: 0},
		{name: "all alt", images: []RawImage{{Alt: "a"}, {Alt: " b "}}, total: 2, withAlt: 2},
		{name: "whitespace alt", images: []RawImage{{Alt: " \t\n"}, {Alt: ""}, {Alt: "x"}}, total: 3, withAlt: 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			total, withAlt := AnalyzeImages(tt.images)
			require.Equal(t, tt.total, total)
			require.Equal(t, tt.withAlt, withAlt)
			require.LessOrEqual(t, withAlt, total)
		})
	}
}

func TestParseHeadings(t *testing.T) {
	t.Parallel()

	got := ParseHeadings([]RawHeading{
		{TagName: "H1", Text: "Top"},
		{TagName: "h6", Text: "Bottom"},
		{TagName: "header", Text: "skipped"},
	})
	require.Equal(t, []audit.Heading{{Level: 1, Text: "Top"}, {Level: 6, Text: "Bottom"}}, got)
}

func TestParseMetaTags_LastWins(t *testing.T) {
	t.Parallel()

	summary := ParseMetaTags([]MetaTag{
		{Name: "Description", Content: "first"},
		{Name: "description", Content: "second"},
		{Property: "og:title", Content: strings.Repeat("x", 3)},
	})
	require.Equal(t, "second", summary.Description)
	require.Equal(t, "xxx", summary.OGTags["og:title"])
}
