package reply

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/textnorm"
)

// keywords are matched against the folded reply text.
var keywords = map[model.ReplyCategory][]string{
	model.ReplyPositive: {
		"interesse", "volontiers", "avec plaisir", "rendez-vous", "rdv", "appelez-moi",
		"rappelez-moi", "disponible", "parlons-en", "ca m'interesse", "pourquoi pas",
		"quand etes-vous", "envoyez-moi", "d'accord", "interested", "let's talk", "call me",
	},
	model.ReplyNegative: {
		"pas interesse", "plus interesse", "ne suis plus", "plus besoin", "non merci", "aucun interet", "pas besoin", "ne m'interesse pas",
		"pas pour nous", "inutile", "pas la peine", "not interested", "no thanks",
	},
	model.ReplyObjection: {
		"trop cher", "budget", "deja un prestataire", "deja equipe", "pas le moment",
		"plus tard", "pas le temps", "prix", "tarif", "engagement", "contrat en cours",
		"too expensive", "already have",
	},
	model.ReplyReferral: {
		"contactez plutot", "voir avec", "adressez-vous", "mon collegue", "ma collegue",
		"mon associe", "la personne en charge", "le responsable", "je transmets",
		"je fais suivre", "en copie", "reach out to",
	},
	model.ReplyOutOfOffice: {
		"absent", "absente", "en conges", "conge", "de retour le", "de retour",
		"out of office", "message automatique", "reponse automatique", "acces limite",
		"vacances", "jusqu'au",
	},
	model.ReplyWrongPerson: {
		"mauvaise personne", "erreur de destinataire", "ne suis pas la bonne personne",
		"ne travaille plus", "a quitte", "plus dans l'entreprise", "pas le bon interlocuteur",
		"wrong person", "no longer with",
	},
	model.ReplyUnsubscribe: {
		"desinscri", "desabonne", "stop", "ne plus recevoir", "retirez-moi", "supprimez-moi",
		"rgpd", "arretez", "arreter", "merci d'arreter", "ne me contactez plus", "unsubscribe", "remove me",
	},
}

// KeywordResult is the outcome of tier-1 matching.
type KeywordResult struct {
	Category   model.ReplyCategory
	Confidence model.Confidence
	Hits       int
}

// negators turn a positive keyword into a refusal when one of them appears
// in the few words before it, as in "pas vraiment interesse".
var negators = map[string]bool{
	"pas": true, "plus": true, "jamais": true, "aucun": true, "aucune": true,
	"ni": true, "sans": true, "not": true, "never": true,
}

const negationWindow = 3

type categoryMatch struct {
	category model.ReplyCategory
	textnorm.Match
}

// ClassifyKeywords picks the category with the most keyword hits. A keyword
// nested in a longer one found at the same place is not counted, and a
// negated positive keyword counts as negative. Ties follow
// model.ReplyCategories; no hit at all is neutral.
func ClassifyKeywords(text string) KeywordResult {
	folded := textnorm.Fold(text)

	var all []categoryMatch
	for _, cat := range model.ReplyCategories {
		for _, m := range textnorm.FindAll(folded, keywords[cat]) {
			all = append(all, categoryMatch{category: cat, Match: m})
		}
	}

	hits := make(map[model.ReplyCategory]map[string]bool)
	for _, m := range all {
		if nested(m, all) {
			continue
		}
		cat, needle := m.category, m.Needle
		if cat == model.ReplyPositive && negated(folded[:m.Start]) {
			cat, needle = model.ReplyNegative, "!"+needle
		}
		if hits[cat] == nil {
			hits[cat] = make(map[string]bool)
		}
		hits[cat][needle] = true
	}

	best := KeywordResult{Category: model.ReplyNeutral, Confidence: model.ConfidenceLow}
	for _, cat := range model.ReplyCategories {
		if n := len(hits[cat]); n > best.Hits {
			best.Category, best.Hits = cat, n
		}
	}
	switch {
	case best.Hits >= 3:
		best.Confidence = model.ConfidenceHigh
	case best.Hits == 2:
		best.Confidence = model.ConfidenceMedium
	}
	return best
}

func nested(m categoryMatch, all []categoryMatch) bool {
	for _, o := range all {
		if m.Within(o.Match) {
			return true
		}
	}
	return false
}

// negated reports whether the clause ending at the keyword holds a negator
// among its last words.
func negated(before string) bool {
	if i := strings.LastIndexAny(before, ".,;:!?\n"); i >= 0 {
		before = before[i+1:]
	}
	words := strings.FieldsFunc(before, func(r rune) bool {
		return r == ' ' || r == '\'' || r == '-' || r == '\t'
	})
	for i := max(0, len(words)-negationWindow); i < len(words); i++ {
		if !negators[words[i]] {
			continue
		}
		if words[i] == "pas" && i > 0 && words[i-1] == "pourquoi" {
			continue
		}
		return true
	}
	return false
}

func sentimentOf(c model.ReplyCategory) model.Sentiment {
	switch c {
	case model.ReplyPositive:
		return model.SentimentPositive
	case model.ReplyNegative, model.ReplyUnsubscribe, model.ReplyObjection:
		return model.SentimentNegative
	}
	return model.SentimentNeutral
}

var (
	emailRe       = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})(?:[/.\-](\d{2,4}))?\b`)
	textDateRe    = regexp.MustCompile(`\b(\d{1,2})(?:er)?\s+(janvier|fevrier|mars|avril|mai|juin|juillet|aout|septembre|octobre|novembre|decembre)(?:\s+(\d{4}))?\b`)
)

var months = map[string]time.Month{
	"janvier": time.January, "fevrier": time.February, "mars": time.March,
	"avril": time.April, "mai": time.May, "juin": time.June,
	"juillet": time.July, "aout": time.August, "septembre": time.September,
	"octobre": time.October, "novembre": time.November, "decembre": time.December,
}

// extractReturnDate finds the first day/month date in text. A date without
// a year that has already passed is moved to next year.
func extractReturnDate(text string, now time.Time, loc *time.Location) *time.Time {
	folded := textnorm.Fold(text)
	var day, year int
	var month time.Month
	if m := textDateRe.FindStringSubmatch(folded); m != nil {
		day, _ = strconv.Atoi(m[1])
		month = months[m[2]]
		year, _ = strconv.Atoi(m[3])
	} else if m := numericDateRe.FindStringSubmatch(folded); m != nil {
		day, _ = strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		month = time.Month(mo)
		year, _ = strconv.Atoi(m[3])
		if year > 0 && year < 100 {
			year += 2000
		}
	} else {
		return nil
	}
	if day < 1 || day > 31 || month < time.January || month > time.December {
		return nil
	}
	local := now.In(loc)
	explicitYear := year > 0
	if !explicitYear {
		year = local.Year()
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if d.Day() != day {
		return nil
	}
	if !explicitYear && d.Before(time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)) {
		d = d.AddDate(1, 0, 0)
	}
	return &d
}

// extractReferral pulls the first address in text that is not the
// replier's own.
func extractReferral(text, from string) *model.Referral {
	from = model.NormalizeEmail(from)
	for _, e := range emailRe.FindAllString(text, -1) {
		e = model.NormalizeEmail(strings.TrimRight(e, "."))
		if e != from {
			return &model.Referral{Email: e}
		}
	}
	return nil
}
