package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/llm"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/perplexity"
)

const networkPrompt = `Find the LinkedIn company page of "%s" (%s, website: %s).
Answer with a single JSON object and nothing else:
{
  "linkedin_url": string,
  "followers": number,
  "employee_range": string,
  "posts_last_90_days": number,
  "open_positions": number,
  "headcount_growth_pct": number,
  "management_change_last_year": boolean,
  "relocated_last_year": boolean,
  "funding_last_year": boolean,
  "decision_makers": [{"name": string, "role": string, "profile_url": string}]
}
Use 0, false, "" or [] when the information cannot be found. Do not guess.`

// networkFacts is the JSON shape requested from the network lookup.
type networkFacts struct {
	LinkedInURL      string  `json:"linkedin_url"`
	Followers        int     `json:"followers"`
	EmployeeRange    string  `json:"employee_range"`
	RecentPosts      int     `json:"posts_last_90_days"`
	OpenPositions    int     `json:"open_positions"`
	GrowthPct        float64 `json:"headcount_growth_pct"`
	ManagementChange bool    `json:"management_change_last_year"`
	Relocated        bool    `json:"relocated_last_year"`
	Funding          bool    `json:"funding_last_year"`
	DecisionMakers   []struct {
		Name       string `json:"name"`
		Role       string `json:"role"`
		ProfileURL string `json:"profile_url"`
	} `json:"decision_makers"`
}

// NetworkSource asks a web-grounded model for the company's professional
// network footprint.
type NetworkSource struct {
	client perplexity.Client
}

// NewNetworkSource creates the network source.
func NewNetworkSource(client perplexity.Client) *NetworkSource {
	return &NetworkSource{client: client}
}

// Name implements Source.
func (s *NetworkSource) Name() model.SourceName { return model.SourceNetwork }

// Lookup implements Source.
func (s *NetworkSource) Lookup(ctx context.Context, c model.Contact, _ model.ICP) (*model.EnrichedRecord, error) {
	if strings.TrimSpace(c.CompanyName) == "" {
		return nil, eris.Wrap(ErrNoInput, "network: no company name")
	}
	temp := 0.1
	resp, err := s.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "user", Content: fmt.Sprintf(networkPrompt, c.CompanyName, c.City, c.Website)},
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "network: lookup")
	}

	var facts networkFacts
	if _, err := llm.DecodeJSON(resp.Content(), &facts); err != nil {
		return nil, eris.Wrap(err, "network: decode")
	}
	if facts.LinkedInURL == "" {
		facts.LinkedInURL = linkedInFromCitations(resp.Citations)
	}
	if facts.LinkedInURL == "" && facts.Followers == 0 && len(facts.DecisionMakers) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "network: %q", c.CompanyName)
	}

	patch := &model.EnrichedRecord{
		Social: model.SocialLinks{LinkedIn: facts.LinkedInURL},
		Network: model.NetworkProfile{
			URL:              facts.LinkedInURL,
			Followers:        facts.Followers,
			EmployeeRange:    facts.EmployeeRange,
			RecentPosts:      facts.RecentPosts,
			OpenPositions:    facts.OpenPositions,
			GrowthPct:        facts.GrowthPct,
			ManagementChange: facts.ManagementChange,
			Relocated:        facts.Relocated,
		},
	}
	patch.Financial.FundingRecent = facts.Funding
	for _, d := range facts.DecisionMakers {
		if strings.TrimSpace(d.Name) == "" {
			continue
		}
		patch.DecisionMakers = append(patch.DecisionMakers, model.DecisionMaker{
			Name:    strings.TrimSpace(d.Name),
			Role:    d.Role,
			Profile: d.ProfileURL,
		})
	}
	return patch, nil
}

func linkedInFromCitations(citations []string) string {
	for _, c := range citations {
		if strings.Contains(c, "linkedin.com/company/") {
			return c
		}
	}
	return ""
}
