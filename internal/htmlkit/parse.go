package htmlkit

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Parse builds a queryable DOM from raw HTML.
func Parse(html []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "htmlkit: parse")
	}
	return doc, nil
}

// CleanText collapses whitespace runs to single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Texts returns the cleaned, non-empty, de-duplicated texts of sel, at most
// limit of them. A non-positive limit means no cap.
func Texts(sel *goquery.Selection, limit int) []string {
	var out []string
	seen := make(map[string]bool)
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := CleanText(s.Text())
		if t == "" || seen[t] {
			return true
		}
		seen[t] = true
		out = append(out, t)
		return limit <= 0 || len(out) < limit
	})
	return out
}

// VisibleText returns the body text without script, style and noscript
// content.
func VisibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	return CleanText(body.Text())
}

// Attrs returns the non-empty values of attr across sel.
func Attrs(sel *goquery.Selection, attr string) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	})
	return out
}
