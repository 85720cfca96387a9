package enrich

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/google"
)

const maxReviews = 5

// MapsSource looks the company up in Google Places for its phone, address,
// rating and recent reviews.
type MapsSource struct {
	client google.Client
}

// NewMapsSource creates the maps source.
func NewMapsSource(client google.Client) *MapsSource {
	return &MapsSource{client: client}
}

// Name implements Source.
func (s *MapsSource) Name() model.SourceName { return model.SourceMaps }

// Lookup implements Source.
func (s *MapsSource) Lookup(ctx context.Context, c model.Contact, _ model.ICP) (*model.EnrichedRecord, error) {
	if strings.TrimSpace(c.CompanyName) == "" {
		return nil, eris.Wrap(ErrNoInput, "maps: no company name")
	}
	query := strings.TrimSpace(strings.Join([]string{c.CompanyName, c.PostalCode, c.City}, " "))

	resp, err := s.client.TextSearch(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "maps: text search")
	}
	if len(resp.Places) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "maps: %q", query)
	}
	place := resp.Places[0]

	patch := &model.EnrichedRecord{
		Address:     place.FormattedAddress,
		ReviewCount: place.UserRatingCount,
	}
	if p := NormalizePhone(place.Phone()); p != "" {
		patch.Phones = []string{p}
	}
	if place.UserRatingCount > 0 {
		rating := place.Rating
		patch.Rating = &rating
	}
	for _, r := range place.Reviews {
		if len(patch.Reviews) == maxReviews {
			break
		}
		if strings.TrimSpace(r.Text.Text) == "" {
			continue
		}
		patch.Reviews = append(patch.Reviews, model.Review{Rating: r.Rating, Text: r.Text.Text, Date: r.PublishTime})
	}
	return patch, nil
}
