package source

import (
	"context"
	"errors"

	"github.com/TalkingHeadsJed/texasmotels/internal/model"
	"github.com/TalkingHeadsJed/texasmotels/internal/ratelimit"
	"github.com/TalkingHeadsJed/texasmotels/pkg/bing"
	"github.com/TalkingHeadsJed/texasmotels/pkg/serpapi"
)

// SerpAPIResolver is a web-search tier adapter backed by SerpAPI.
type SerpAPIResolver struct {
	client serpapi.Client
}

// NewSerpAPIResolver creates the SerpAPI web-search adapter.
func NewSerpAPIResolver(client serpapi.Client) *SerpAPIResolver {
	return &SerpAPIResolver{client: client}
}

func (r *SerpAPIResolver) Name() string {
	return "serpapi"
}

func (r *SerpAPIResolver) Class() ratelimit.Class {
	return ratelimit.ClassWebSearch
}

func (r *SerpAPIResolver) Resolve(ctx context.Context, rec model.Record) ([]model.Candidate, error) {
	resp, err := r.client.Search(ctx, searchQuery(rec))
	if err != nil {
		var se *serpapi.StatusError
		if errors.As(err, &se) {
			return nil, classifyStatus(err, se.StatusCode)
		}
		return nil, err
	}

	candidates := make([]model.Candidate, 0, len(resp.OrganicResults))
	for i, res := range resp.OrganicResults {
		if res.Link == "" {
			continue
		}
		candidates = append(candidates, model.Candidate{
			Name: res.Title,
			URL:  res.Link,
			Rank: i,
		})
	}
	return candidates, nil
}

// BingResolver is a web-search tier adapter backed by Bing Web Search.
type BingResolver struct {
	client bing.Client
}

// NewBingResolver creates the Bing web-search adapter.
func NewBingResolver(client bing.Client) *BingResolver {
	return &BingResolver{client: client}
}

func (r *BingResolver) Name() string {
	return "bing"
}

func (r *BingResolver) Class() ratelimit.Class {
	return ratelimit.ClassWebSearch
}

func (r *BingResolver) Resolve(ctx context.Context, rec model.Record) ([]model.Candidate, error) {
	resp, err := r.client.Search(ctx, searchQuery(rec))
	if err != nil {
		var se *bing.StatusError
		if errors.As(err, &se) {
			return nil, classifyStatus(err, se.StatusCode)
		}
		return nil, err
	}

	candidates := make([]model.Candidate, 0, len(resp.WebPages.Value))
	for i, page := range resp.WebPages.Value {
		if page.URL == "" {
			continue
		}
		candidates = append(candidates, model.Candidate{
			Name: page.Name,
			URL:  page.URL,
			Rank: i,
		})
	}
	return candidates, nil
}
