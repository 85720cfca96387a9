// Package registry queries the French public company registry search API
// (recherche-entreprises.api.gouv.fr).
package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

const (
	defaultBaseURL   = "https://recherche-entreprises.api.gouv.fr"
	maxRetryAttempts = 3
)

// Client searches the company registry.
type Client interface {
	Search(ctx context.Context, q Query) (*SearchResponse, error)
}

// Query narrows a registry search.
type Query struct {
	Text       string
	PostalCode string
	PerPage    int
}

// SearchResponse is the response from GET /search.
type SearchResponse struct {
	Results      []Company `json:"results"`
	TotalResults int       `json:"total_results"`
}

// Company is one legal unit.
type Company struct {
	SIREN                string              `json:"siren"`
	NomComplet           string              `json:"nom_complet"`
	NomRaisonSociale     string              `json:"nom_raison_sociale"`
	NatureJuridique      string              `json:"nature_juridique"`
	ActivitePrincipale   string              `json:"activite_principale"`
	DateCreation         string              `json:"date_creation"`
	TrancheEffectif      string              `json:"tranche_effectif_salarie"`
	NombreEtablissements int                 `json:"nombre_etablissements"`
	Siege                Establishment       `json:"siege"`
	Dirigeants           []Officer           `json:"dirigeants"`
	Finances             map[string]Finances `json:"finances"`
}

// Establishment is the head office.
type Establishment struct {
	Adresse         string `json:"adresse"`
	CodePostal      string `json:"code_postal"`
	LibelleCommune  string `json:"libelle_commune"`
	DateCreation    string `json:"date_creation"`
	DateDebutActive string `json:"date_debut_activite"`
}

// Officer is a registered company officer.
type Officer struct {
	Nom           string `json:"nom"`
	Prenoms       string `json:"prenoms"`
	Qualite       string `json:"qualite"`
	TypeDirigeant string `json:"type_dirigeant"`
	Denomination  string `json:"denomination"`
}

// Finances is one fiscal year of published accounts.
type Finances struct {
	CA          *float64 `json:"ca"`
	ResultatNet *float64 `json:"resultat_net"`
}

// CreatedAt parses DateCreation.
func (c Company) CreatedAt() (time.Time, bool) {
	t, err := time.Parse("2006-01-02", c.DateCreation)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// LatestFinances returns the most recent and the previous fiscal year with
// a revenue figure. Years are 0 when absent.
func (c Company) LatestFinances() (year int, latest Finances, prevYear int, prev Finances) {
	years := make([]int, 0, len(c.Finances))
	for k, f := range c.Finances {
		y, err := strconv.Atoi(k)
		if err != nil || f.CA == nil {
			continue
		}
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	if len(years) > 0 {
		year = years[0]
		latest = c.Finances[strconv.Itoa(year)]
	}
	if len(years) > 1 {
		prevYear = years[1]
		prev = c.Finances[strconv.Itoa(prevYear)]
	}
	return year, latest, prevYear, prev
}

// trancheLow maps INSEE headcount bands to their lower bound.
var trancheLow = map[string]int{
	"00": 0, "01": 1, "02": 3, "03": 6,
	"11": 10, "12": 20, "21": 50, "22": 100,
	"31": 200, "32": 250, "41": 500, "42": 1000,
	"51": 2000, "52": 5000, "53": 10000,
}

// Employees returns the lower bound of the headcount band.
func (c Company) Employees() (int, bool) {
	n, ok := trancheLow[c.TrancheEffectif]
	return n, ok
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates a registry client. The API is public and keyless.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		retry:   resilience.RetryFromSettings(maxRetryAttempts, 500*time.Millisecond, 5*time.Second),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, q Query) (*SearchResponse, error) {
	if q.Text == "" {
		return nil, eris.New("registry: empty query")
	}
	params := url.Values{}
	params.Set("q", q.Text)
	if q.PostalCode != "" {
		params.Set("code_postal", q.PostalCode)
	}
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = 5
	}
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", "1")
	endpoint := c.baseURL + "/search?" + params.Encode()

	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("registry", "search")
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*SearchResponse, error) {
		return c.get(ctx, endpoint)
	})
}

func (c *httpClient) get(ctx context.Context, endpoint string) (*SearchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "registry: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "registry: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("registry", resp.StatusCode, string(body))
	}

	var out SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal response")
	}
	return &out, nil
}
