package images

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var imgTagRe = regexp.MustCompile(`(?i)<img[^>]+src=["']?(https?://[^"'\s>]+)`)

// candidateDenylist rejects CDN, logo, favicon and tracking URLs that show up
// in page metadata but are not representative article images. Substring
// match, lowercase.
var candidateDenylist = []string{
	"gravatar.com",
	"doubleclick.net",
	"google-analytics.com",
	"googletagmanager.com",
	"feedburner.com",
	"favicon",
	"logo",
	"sprite",
	"avatar",
	"placeholder",
	"blank.gif",
	"pixel.gif",
	"1x1",
	"spacer",
}

// AcceptableCandidate reports whether a URL looks like a usable article
// image: absolute http(s) and not on the denylist.
func AcceptableCandidate(url string) bool {
	if url == "" {
		return false
	}

	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}

	for _, bad := range candidateDenylist {
		if strings.Contains(lower, bad) {
			return false
		}
	}
	return true
}

// FirstImgSrc extracts the src of the first <img> tag embedded in an HTML
// fragment. Returns "" when no acceptable image is found.
func FirstImgSrc(html string) string {
	for _, m := range imgTagRe.FindAllStringSubmatch(html, -1) {
		if AcceptableCandidate(m[1]) {
			return m[1]
		}
	}
	return ""
}

// MetaImage extracts an Open Graph or Twitter card image URL from a page
// document. Returns "" when no acceptable candidate exists.
func MetaImage(doc *goquery.Document) string {
	selectors := []string{
		`meta[property="og:image"]`,
		`meta[property="og:image:url"]`,
		`meta[name="twitter:image"]`,
		`meta[property="twitter:image"]`,
		`link[rel="image_src"]`,
	}

	for _, sel := range selectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			attr := "content"
			if strings.HasPrefix(sel, "link") {
				attr = "href"
			}
			if url, ok := s.Attr(attr); ok {
				url = strings.TrimSpace(url)
				if AcceptableCandidate(url) {
					found = url
					return false
				}
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	return ""
}
