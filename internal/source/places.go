package source

import (
	"context"
	"errors"

	"github.com/TalkingHeadsJed/texasmotels/internal/model"
	"github.com/TalkingHeadsJed/texasmotels/internal/ratelimit"
	"github.com/TalkingHeadsJed/texasmotels/internal/resilience"
	"github.com/TalkingHeadsJed/texasmotels/pkg/places"
)

// PlacesResolver is the structured tier: a Places text search by
// name+address. It yields a best-effort single candidate that carries a
// place id and maps URL even when the place has no website.
type PlacesResolver struct {
	client places.Client
}

// NewPlacesResolver creates the structured adapter.
func NewPlacesResolver(client places.Client) *PlacesResolver {
	return &PlacesResolver{client: client}
}

func (r *PlacesResolver) Name() string {
	return string(model.SourcePlaces)
}

func (r *PlacesResolver) Class() ratelimit.Class {
	return ratelimit.ClassPlaces
}

func (r *PlacesResolver) Resolve(ctx context.Context, rec model.Record) ([]model.Candidate, error) {
	resp, err := r.client.TextSearch(ctx, placeQuery(rec))
	if err != nil {
		var se *places.StatusError
		if errors.As(err, &se) {
			return nil, classifyStatus(err, se.StatusCode)
		}
		return nil, err
	}
	if len(resp.Places) == 0 {
		return nil, nil
	}

	// Places ranks by relevance; the first result is the best-effort match.
	p := resp.Places[0]
	return []model.Candidate{{
		Name:    p.DisplayName.Text,
		Address: p.FormattedAddress,
		URL:     p.WebsiteURI,
		PlaceID: p.ID,
		MapsURL: p.GoogleMapsURI,
		Rating:  p.Rating,
		Reviews: p.UserRatingCount,
		Rank:    0,
	}}, nil
}

// classifyStatus maps an HTTP status onto the retry taxonomy.
func classifyStatus(err error, status int) error {
	if resilience.IsTransientHTTPStatus(status) {
		return resilience.NewTransientError(err, status)
	}
	return resilience.NewPermanentError(err, status)
}
