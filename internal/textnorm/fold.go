// Package textnorm folds free text for keyword matching.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var replacer = strings.NewReplacer(
	"’", "'",
	"‘", "'",
	"œ", "oe",
	"æ", "ae",
	"ß", "ss",
)

// Fold lower-cases s, strips diacritics and normalizes apostrophes so that
// "Intéressé" and "interesse" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		out = strings.ToLower(s)
	}
	return replacer.Replace(out)
}

// Contains reports whether the folded haystack contains the folded needle.
func Contains(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}

// ContainsAny reports whether any of the needles appear in text.
func ContainsAny(text string, needles ...string) bool {
	f := Fold(text)
	for _, n := range needles {
		if strings.Contains(f, Fold(n)) {
			return true
		}
	}
	return false
}

// Match is one occurrence of a needle in folded text, as byte offsets.
type Match struct {
	Needle     string
	Start, End int
}

// Within reports whether m lies inside o and is strictly shorter.
func (m Match) Within(o Match) bool {
	return o.Start <= m.Start && m.End <= o.End && m.End-m.Start < o.End-o.Start
}

// FindAll returns every occurrence of the needles in the folded text that
// starts on a word boundary. A needle may end mid-word so stems such as
// "desinscri" still match.
func FindAll(folded string, needles []string) []Match {
	var out []Match
	for _, k := range needles {
		k = Fold(k)
		if k == "" {
			continue
		}
		for off := 0; off < len(folded); {
			i := strings.Index(folded[off:], k)
			if i < 0 {
				break
			}
			start := off + i
			if wordStart(folded, start) {
				out = append(out, Match{Needle: k, Start: start, End: start + len(k)})
			}
			off = start + 1
		}
	}
	return out
}

// Outermost drops every match that lies inside a longer one, so "absent"
// found within "absente" counts once.
func Outermost(ms []Match) []Match {
	out := make([]Match, 0, len(ms))
	for _, m := range ms {
		inner := false
		for _, o := range ms {
			if m.Within(o) {
				inner = true
				break
			}
		}
		if !inner {
			out = append(out, m)
		}
	}
	return out
}

// CountMatches returns how many distinct needles appear in the folded text,
// ignoring occurrences nested in a longer needle.
func CountMatches(folded string, needles []string) int {
	seen := make(map[string]bool)
	for _, m := range Outermost(FindAll(folded, needles)) {
		seen[m.Needle] = true
	}
	return len(seen)
}

func wordStart(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
