package images

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// aggregatorHosts are indirection hosts whose item links point at a redirect
// page rather than the publisher's article.
var aggregatorHosts = []string{
	"news.google.com",
	"google.com/url",
	"feedproxy.google.com",
}

var (
	metaRefreshRe    = regexp.MustCompile(`(?i)url\s*=\s*['"]?\s*(https?://[^'">\s]+)`)
	scriptRedirectRe = regexp.MustCompile(`(?i)(?:location\.replace|location\.href\s*=|location\.assign|window\.location\s*=)\s*\(?\s*["'](https?://[^"']+)["']`)
	jslogURLRe       = regexp.MustCompile(`jslog="[^"]*?(https?(?::|%3A)[^;"\s]+)`)
)

// IsAggregatorLink reports whether a link points at a known redirect host
// instead of the publisher.
func IsAggregatorLink(link string) bool {
	lower := strings.ToLower(link)
	for _, host := range aggregatorHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}

// unwrapStrategy is one HTML pattern for digging the destination URL out of
// a redirect page. Strategies run in order; the first non-empty,
// non-aggregator result wins.
type unwrapStrategy struct {
	name string
	fn   func(body string) string
}

var unwrapStrategies = []unwrapStrategy{
	{"meta_refresh", metaRefreshURL},
	{"script_redirect", scriptRedirectURL},
	{"tagged_attribute", taggedAttributeURL},
	{"external_anchor", firstExternalAnchorURL},
	{"logging_attribute", loggingAttributeURL},
}

// Unwrapper resolves aggregator redirect links to the publisher's real URL.
type Unwrapper struct {
	noRedirectClient *http.Client
	userAgent        string
	timeout          time.Duration
}

func NewUnwrapper(userAgent string, timeout time.Duration) *Unwrapper {
	return &Unwrapper{
		noRedirectClient: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// Unwrap returns the destination URL behind an aggregator link, or "" when
// no strategy resolves it. Non-aggregator links are returned unchanged.
func (u *Unwrapper) Unwrap(ctx context.Context, link string) string {
	if !IsAggregatorLink(link) {
		return link
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", link, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", u.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := u.noRedirectClient.Do(req)
	if err != nil {
		slog.Debug("Redirect probe failed", "link", link, "error", err)
		return ""
	}
	defer resp.Body.Close()

	// A redirect status with a Location header is the cheap path.
	if location := resp.Header.Get("Location"); location != "" {
		if resolved := absoluteDestination(link, location); resolved != "" {
			return resolved
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ""
	}

	for _, strategy := range unwrapStrategies {
		if dest := strategy.fn(string(body)); dest != "" && !IsAggregatorLink(dest) {
			slog.Debug("Redirect unwrapped", "link", link, "strategy", strategy.name, "destination", dest)
			return dest
		}
	}

	return ""
}

// absoluteDestination resolves a Location header value against the original
// link and rejects destinations still on an aggregator host.
func absoluteDestination(base, location string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	locURL, err := url.Parse(location)
	if err != nil {
		return ""
	}

	resolved := baseURL.ResolveReference(locURL).String()
	if IsAggregatorLink(resolved) {
		return ""
	}
	return resolved
}

func metaRefreshURL(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	var dest string
	doc.Find(`meta[http-equiv]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		equiv, _ := s.Attr("http-equiv")
		if !strings.EqualFold(equiv, "refresh") {
			return true
		}
		content, _ := s.Attr("content")
		if m := metaRefreshRe.FindStringSubmatch(content); m != nil {
			dest = m[1]
			return false
		}
		return true
	})
	return dest
}

func scriptRedirectURL(body string) string {
	if m := scriptRedirectRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

// taggedAttributeURL reads the article-URL data attribute aggregator pages
// put on their anchors.
func taggedAttributeURL(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	var dest string
	doc.Find("a[data-n-au], c-wiz[data-n-au]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr("data-n-au"); ok && strings.HasPrefix(v, "http") {
			dest = v
			return false
		}
		return true
	})
	return dest
}

func firstExternalAnchorURL(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	var dest string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if strings.HasPrefix(href, "http") && !IsAggregatorLink(href) {
			dest = href
			return false
		}
		return true
	})
	return dest
}

// loggingAttributeURL digs a destination out of the click-tracking jslog
// attribute, which embeds the target URL percent-encoded.
func loggingAttributeURL(body string) string {
	m := jslogURLRe.FindStringSubmatch(body)
	if m == nil {
		return ""
	}

	dest := m[1]
	if decoded, err := url.QueryUnescape(dest); err == nil {
		dest = decoded
	}
	if !strings.HasPrefix(dest, "http") || IsAggregatorLink(dest) {
		return ""
	}
	return dest
}
