package enrich

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/htmlkit"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/textnorm"
)

// Extraction caps.
const (
	maxEmails      = 5
	maxPhones      = 3
	maxHeadings    = 5
	maxSubheadings = 10
	maxParagraphs  = 5
	maxKeywords    = 10
	minParagraph   = 40
)

var (
	emailRe     = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe     = regexp.MustCompile(`(?:^|[^\d])((?:(?:\+|00)33[\s.\-]?(?:\(0\)[\s.\-]?)?|0)[1-9](?:[\s.\-]?\d{2}){4})(?:[^\d]|$)`)
	copyrightRe = regexp.MustCompile(`(?i)(?:©|copyright)\s*(?:(?:19|20)\d{2}\s*[-–]\s*)?((?:19|20)\d{2})`)
)

// emailBlocklist filters system, placeholder and tracking addresses.
var emailBlocklist = []string{
	"example", "test@", "sentry", "webpack",
	"wixpress.com", "pixel", "mailtrack", "doubleclick", "google-analytics",
	"noreply", "no-reply",
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg",
}

var hiringMarkers = []string{
	"nous recrutons", "on recrute", "recrutement", "rejoignez-nous", "rejoignez notre equipe",
	"offres d'emploi", "carrieres", "careers", "we're hiring", "join our team",
}

// providerMarkers are footer credits that reveal an existing agency.
var providerMarkers = []string{
	"realise par", "concu par", "site cree par", "developpe par", "designed by",
	"made by", "propulse par", "site internet par",
}

// WebsiteSource scrapes the company homepage, and its contact page when the
// homepage lists no email.
type WebsiteSource struct {
	fetcher htmlkit.Fetcher
	timeout time.Duration
}

// NewWebsiteSource creates the website source.
func NewWebsiteSource(f htmlkit.Fetcher, timeout time.Duration) *WebsiteSource {
	return &WebsiteSource{fetcher: f, timeout: timeout}
}

// Name implements Source.
func (s *WebsiteSource) Name() model.SourceName { return model.SourceWebsite }

// Lookup implements Source.
func (s *WebsiteSource) Lookup(ctx context.Context, c model.Contact, _ model.ICP) (*model.EnrichedRecord, error) {
	if strings.TrimSpace(c.Website) == "" {
		return nil, eris.Wrap(ErrNoInput, "website: no url")
	}
	home := normalizeURL(c.Website)

	page, err := s.fetcher.Fetch(ctx, home, nil, s.timeout)
	if err != nil {
		return nil, eris.Wrap(err, "website: fetch homepage")
	}
	doc, err := htmlkit.Parse(page.Body)
	if err != nil {
		return nil, eris.Wrap(err, "website: parse homepage")
	}

	patch := extractSite(doc)
	if len(patch.Emails) > 0 {
		return patch, nil
	}

	contactURL := findContactPage(doc, page.URL)
	if contactURL == "" {
		return patch, nil
	}
	cp, err := s.fetcher.Fetch(ctx, contactURL, nil, s.timeout)
	if err != nil {
		return patch, nil
	}
	cdoc, err := htmlkit.Parse(cp.Body)
	if err != nil {
		return patch, nil
	}
	text := htmlkit.VisibleText(cdoc)
	patch.Emails = extractEmails(text, htmlkit.Attrs(cdoc.Find(`a[href^="mailto:"]`), "href"))
	if len(patch.Phones) == 0 {
		patch.Phones = extractPhones(text, htmlkit.Attrs(cdoc.Find(`a[href^="tel:"]`), "href"))
	}
	return patch, nil
}

// extractSite pulls the bounded content extract from a homepage.
func extractSite(doc *goquery.Document) *model.EnrichedRecord {
	text := htmlkit.VisibleText(doc)
	folded := textnorm.Fold(text)
	patch := &model.EnrichedRecord{}

	patch.Emails = extractEmails(text, htmlkit.Attrs(doc.Find(`a[href^="mailto:"]`), "href"))
	patch.Phones = extractPhones(text, htmlkit.Attrs(doc.Find(`a[href^="tel:"]`), "href"))
	patch.Social = extractSocial(htmlkit.Attrs(doc.Find("a[href]"), "href"))
	patch.Description = extractDescription(doc)

	patch.Website = model.WebsiteContent{
		Title:       htmlkit.CleanText(doc.Find("title").First().Text()),
		Headings:    htmlkit.Texts(doc.Find("h1"), maxHeadings),
		Subheadings: htmlkit.Texts(doc.Find("h2, h3"), maxSubheadings),
		Paragraphs:  longParagraphs(doc.Find("p"), maxParagraphs),
		Keywords:    metaKeywords(doc),
		HiringPage:  textnorm.ContainsAny(folded, hiringMarkers...) || hasHiringLink(doc),
	}
	if m := copyrightRe.FindAllStringSubmatch(text, -1); len(m) > 0 {
		if y, err := strconv.Atoi(m[len(m)-1][1]); err == nil {
			patch.Website.CopyrightYear = y
		}
	}

	hasProvider := textnorm.ContainsAny(folded, providerMarkers...)
	patch.HasProvider = &hasProvider
	return patch
}

func extractEmails(text string, mailtos []string) []string {
	candidates := make([]string, 0, len(mailtos))
	for _, m := range mailtos {
		addr := strings.TrimPrefix(strings.TrimPrefix(m, "mailto:"), "MAILTO:")
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		candidates = append(candidates, addr)
	}
	candidates = append(candidates, emailRe.FindAllString(text, -1)...)

	var out []string
	seen := make(map[string]bool)
	for _, c := range candidates {
		e := model.NormalizeEmail(c)
		if e == "" || seen[e] || !emailRe.MatchString(e) || blockedEmail(e) {
			continue
		}
		seen[e] = true
		out = append(out, e)
		if len(out) == maxEmails {
			break
		}
	}
	return out
}

func blockedEmail(e string) bool {
	for _, b := range emailBlocklist {
		if strings.Contains(e, b) {
			return true
		}
	}
	return false
}

func extractPhones(text string, tels []string) []string {
	candidates := make([]string, 0, len(tels))
	for _, t := range tels {
		candidates = append(candidates, strings.TrimPrefix(t, "tel:"))
	}
	for _, m := range phoneRe.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, m[1])
	}

	var out []string
	seen := make(map[string]bool)
	for _, c := range candidates {
		p := NormalizePhone(c)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
		if len(out) == maxPhones {
			break
		}
	}
	return out
}

// NormalizePhone formats a French number as "0X XX XX XX XX", or returns ""
// when it is not a French national number.
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case strings.HasPrefix(d, "0033"):
		d = "0" + strings.TrimPrefix(strings.TrimPrefix(d, "0033"), "0")
	case strings.HasPrefix(d, "33") && len(d) >= 11:
		d = "0" + strings.TrimPrefix(strings.TrimPrefix(d, "33"), "0")
	}
	if len(d) != 10 || d[0] != '0' || d[1] == '0' {
		return ""
	}
	return strings.Join([]string{d[0:2], d[2:4], d[4:6], d[6:8], d[8:10]}, " ")
}

func extractSocial(hrefs []string) model.SocialLinks {
	var s model.SocialLinks
	for _, h := range hrefs {
		l := strings.ToLower(h)
		switch {
		case s.LinkedIn == "" && strings.Contains(l, "linkedin.com/"):
			s.LinkedIn = h
		case s.Facebook == "" && strings.Contains(l, "facebook.com/") && !strings.Contains(l, "sharer"):
			s.Facebook = h
		case s.Instagram == "" && strings.Contains(l, "instagram.com/"):
			s.Instagram = h
		case s.Twitter == "" && (strings.Contains(l, "twitter.com/") || strings.Contains(l, "//x.com/")) && !strings.Contains(l, "intent"):
			s.Twitter = h
		}
	}
	return s
}

func extractDescription(doc *goquery.Document) string {
	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = htmlkit.CleanText(v); v != "" {
				return v
			}
		}
	}
	if ps := longParagraphs(doc.Find("p"), 1); len(ps) > 0 {
		return ps[0]
	}
	return ""
}

func longParagraphs(sel *goquery.Selection, limit int) []string {
	var out []string
	for _, p := range htmlkit.Texts(sel, 0) {
		if len(p) < minParagraph {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out
}

func metaKeywords(doc *goquery.Document) []string {
	v, ok := doc.Find(`meta[name="keywords"]`).First().Attr("content")
	if !ok {
		return nil
	}
	var out []string
	for _, k := range strings.Split(v, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

func hasHiringLink(doc *goquery.Document) bool {
	for _, h := range htmlkit.Attrs(doc.Find("a[href]"), "href") {
		l := strings.ToLower(h)
		if strings.Contains(l, "recrutement") || strings.Contains(l, "carriere") ||
			strings.Contains(l, "career") || strings.Contains(l, "/jobs") {
			return true
		}
	}
	return false
}

// findContactPage returns the absolute URL of a same-host contact or legal
// notice link.
func findContactPage(doc *goquery.Document, base string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	for _, h := range htmlkit.Attrs(doc.Find("a[href]"), "href") {
		l := strings.ToLower(h)
		if !strings.Contains(l, "contact") && !strings.Contains(l, "mentions-legales") {
			continue
		}
		ref, err := url.Parse(h)
		if err != nil {
			continue
		}
		abs := baseURL.ResolveReference(ref)
		if abs.Host != baseURL.Host {
			continue
		}
		return abs.String()
	}
	return ""
}

// normalizeURL adds a scheme to bare domains.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return raw
}
