package textutil

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonSlugRe    = regexp.MustCompile(`[^a-z0-9]+`)
	dashesRe     = regexp.MustCompile(`-{2,}`)
)

// stripDiacritics decomposes characters and drops combining marks, so
// "Björn" slugs to "bjorn" instead of losing the rune entirely.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CleanHTML converts an HTML fragment to plain text: tags removed, entities
// unescaped, whitespace collapsed.
func CleanHTML(s string) string {
	if s == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err == nil {
		doc.Find("script, style").Remove()
		s = doc.Text()
	}

	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, " ", " ")
	s = whitespaceRe.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// Slugify converts a title to a lowercase dash-separated slug.
func Slugify(s string) string {
	if normalized, _, err := transform.String(stripDiacritics, s); err == nil {
		s = normalized
	}

	s = strings.ToLower(s)
	s = nonSlugRe.ReplaceAllString(s, "-")
	s = dashesRe.ReplaceAllString(s, "-")

	return strings.Trim(s, "-")
}

// SlugWithSuffix appends a base36 timestamp suffix so two items with
// identical titles still persist distinct slugs.
func SlugWithSuffix(title string, at time.Time) string {
	slug := Slugify(title)
	suffix := strconv.FormatInt(at.UnixNano(), 36)
	if slug == "" {
		return suffix
	}
	return fmt.Sprintf("%s-%s", slug, suffix)
}

// Truncate caps a string at max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}

	r := []rune(s)
	if len(r) <= max {
		return s
	}

	cut := strings.TrimSpace(string(r[:max]))
	return cut + "…"
}
