package enrich

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/registry"
)

// RegistrySource reads legal identity, accounts and officers from the
// company registry.
type RegistrySource struct {
	client registry.Client
}

// NewRegistrySource creates the registry source.
func NewRegistrySource(client registry.Client) *RegistrySource {
	return &RegistrySource{client: client}
}

// Name implements Source.
func (s *RegistrySource) Name() model.SourceName { return model.SourceRegistry }

var titleCaser = cases.Title(language.French)

// Lookup implements Source.
func (s *RegistrySource) Lookup(ctx context.Context, c model.Contact, _ model.ICP) (*model.EnrichedRecord, error) {
	if strings.TrimSpace(c.CompanyName) == "" {
		return nil, eris.Wrap(ErrNoInput, "registry: no company name")
	}
	resp, err := s.client.Search(ctx, registry.Query{Text: c.CompanyName, PostalCode: c.PostalCode})
	if err != nil {
		return nil, eris.Wrap(err, "registry: search")
	}
	if len(resp.Results) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "registry: %q", c.CompanyName)
	}
	co := resp.Results[0]

	patch := &model.EnrichedRecord{
		Legal: model.LegalData{
			RegistryID:     co.SIREN,
			LegalName:      firstNonEmpty(co.NomRaisonSociale, co.NomComplet),
			LegalForm:      co.NatureJuridique,
			SectorCode:     co.ActivitePrincipale,
			Address:        co.Siege.Adresse,
			HeadOffice:     co.Siege.Adresse != "",
			Establishments: co.NombreEtablissements,
		},
	}
	if created, ok := co.CreatedAt(); ok {
		patch.Legal.CreatedAt = &created
	}
	if n, ok := co.Employees(); ok {
		patch.Financial.Employees = &n
	}
	year, latest, _, prev := co.LatestFinances()
	if latest.CA != nil {
		rev := *latest.CA
		patch.Financial.Revenue = &rev
		patch.Financial.RevenueYear = year
	}
	if prev.CA != nil {
		p := *prev.CA
		patch.Financial.PreviousRevenue = &p
	}
	for _, d := range co.Dirigeants {
		if d.TypeDirigeant != "personne physique" || d.Nom == "" {
			continue
		}
		name := strings.TrimSpace(titleCaser.String(strings.ToLower(d.Prenoms + " " + d.Nom)))
		patch.DecisionMakers = append(patch.DecisionMakers, model.DecisionMaker{Name: name, Role: d.Qualite})
	}
	return patch, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
