// Package scoring rates an enriched company on fit, buying intent and data
// quality, and maps the result to an outreach priority.
package scoring

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Config holds the keyword tables behind the Fit and Intent scores.
type Config struct {
	// SectorCategories groups sector keywords so that a company described
	// as "chauffagiste" matches a "plomberie" target.
	SectorCategories map[string][]string `yaml:"sector_categories" mapstructure:"sector_categories"`

	// GenericSectors are target values meaning "any small business".
	GenericSectors []string `yaml:"generic_sectors" mapstructure:"generic_sectors"`

	// Metros maps a metropolitan area to the cities it contains.
	Metros map[string][]string `yaml:"metros" mapstructure:"metros"`

	// PainKeywords flag a review that describes a problem the offer solves.
	PainKeywords     []string `yaml:"pain_keywords" mapstructure:"pain_keywords"`
	GenericMailboxes []string `yaml:"generic_mailboxes" mapstructure:"generic_mailboxes"`

	// GrowthPct is the headcount or revenue growth that counts as rapid.
	GrowthPct float64 `yaml:"growth_pct" mapstructure:"growth_pct"`
}

// DefaultConfig returns the French SME keyword tables.
func DefaultConfig() Config {
	return Config{
		SectorCategories: map[string][]string{
			"batiment":     {"btp", "batiment", "plomberie", "plombier", "chauffagiste", "electricien", "maconnerie", "menuiserie", "couvreur", "renovation", "peinture"},
			"restauration": {"restaurant", "brasserie", "traiteur", "boulangerie", "patisserie", "cafe", "bar"},
			"sante":        {"sante", "medical", "dentiste", "kinesitherapeute", "pharmacie", "infirmier", "osteopathe", "veterinaire"},
			"beaute":       {"coiffure", "coiffeur", "esthetique", "institut de beaute", "spa", "barbier", "onglerie"},
			"immobilier":   {"immobilier", "agence immobiliere", "syndic", "promoteur", "gestion locative"},
			"automobile":   {"garage", "automobile", "carrosserie", "controle technique", "concession"},
			"commerce":     {"commerce", "boutique", "magasin", "e-commerce", "vente"},
			"conseil":      {"conseil", "consulting", "expert-comptable", "comptabilite", "avocat", "cabinet"},
			"industrie":    {"industrie", "usinage", "fabrication", "atelier", "mecanique"},
			"transport":    {"transport", "logistique", "demenagement", "livraison", "taxi", "vtc"},
		},
		GenericSectors: []string{"pme", "tpe", "sme", "toutes", "tous secteurs", "all"},
		Metros: map[string][]string{
			"lyon":      {"lyon", "villeurbanne", "venissieux", "vaulx-en-velin", "bron", "caluire-et-cuire", "saint-priest", "oullins", "ecully", "tassin-la-demi-lune"},
			"paris":     {"paris", "boulogne-billancourt", "saint-denis", "montreuil", "nanterre", "vincennes", "neuilly-sur-seine", "issy-les-moulineaux", "levallois-perret", "courbevoie"},
			"marseille": {"marseille", "aubagne", "la ciotat", "allauch", "plan-de-cuques", "aix-en-provence"},
			"bordeaux":  {"bordeaux", "merignac", "pessac", "talence", "begles", "le bouscat"},
			"toulouse":  {"toulouse", "blagnac", "colomiers", "tournefeuille", "balma", "ramonville-saint-agne"},
			"lille":     {"lille", "roubaix", "tourcoing", "villeneuve-d'ascq", "marcq-en-baroeul", "lambersart"},
			"nantes":    {"nantes", "saint-herblain", "reze", "orvault", "saint-sebastien-sur-loire"},
		},
		PainKeywords: []string{
			"injoignable", "ne repond", "pas de reponse", "jamais rappele", "aucune reponse",
			"attente", "retard", "en retard", "delai", "desorganise", "impossible de joindre",
			"site ne fonctionne", "site introuvable", "pas de site", "reservation impossible",
			"mauvaise communication", "aucun suivi", "decu",
		},
		GenericMailboxes: []string{
			"info", "contact", "hello", "bonjour", "accueil", "admin", "commercial",
			"secretariat", "office", "sales", "support", "direction", "mail", "agence",
		},
		GrowthPct: 10,
	}
}

// ValidateConfig checks that a Config is usable.
func ValidateConfig(c Config) error {
	var errs []string
	if len(c.PainKeywords) == 0 {
		errs = append(errs, "pain_keywords must not be empty")
	}
	if c.GrowthPct < 0 {
		errs = append(errs, "growth_pct must be >= 0")
	}
	for cat, kws := range c.SectorCategories {
		if len(kws) == 0 {
			errs = append(errs, fmt.Sprintf("sector category %q has no keywords", cat))
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("scoring: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SectorCategories == nil {
		c.SectorCategories = d.SectorCategories
	}
	if c.GenericSectors == nil {
		c.GenericSectors = d.GenericSectors
	}
	if c.Metros == nil {
		c.Metros = d.Metros
	}
	if c.PainKeywords == nil {
		c.PainKeywords = d.PainKeywords
	}
	if c.GenericMailboxes == nil {
		c.GenericMailboxes = d.GenericMailboxes
	}
	if c.GrowthPct <= 0 {
		c.GrowthPct = d.GrowthPct
	}
	return c
}
