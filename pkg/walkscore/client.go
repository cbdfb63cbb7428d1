// Package walkscore wraps the Walk Score API.
package walkscore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.walkscore.com"

// Walk Score API status codes. Anything else is an upstream error.
const (
	statusOK          = 1
	statusCalculating = 2
)

// Client fetches walkability scores for a point. An unconfigured client (empty
// API key) returns (nil, nil) from Score, so callers can wire it
// unconditionally and let absence of the credential disable the enrichment.
type Client interface {
	Score(ctx context.Context, address string, lat, lon float64) (*ScoreResult, error)
}

// ScoreResult holds the walk and transit scores for a point. Score fields are
// nil when the API has not computed them for the location.
type ScoreResult struct {
	WalkScore          *int   `json:"walk_score"`
	WalkDescription    string `json:"walk_description,omitempty"`
	TransitScore       *int   `json:"transit_score"`
	TransitDescription string `json:"transit_description,omitempty"`
}

type scoreResponse struct {
	Status      int    `json:"status"`
	WalkScore   *int   `json:"walkscore"`
	Description string `json:"description"`
	Transit     struct {
		Score       *int   `json:"score"`
		Description string `json:"description"`
	} `json:"transit"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Walk Score API client. An empty apiKey yields a client
// whose Score always returns (nil, nil).
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Score(ctx context.Context, address string, lat, lon float64) (*ScoreResult, error) {
	if c.apiKey == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("address", address)
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("transit", "1")
	params.Set("wsapikey", c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/score?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "walkscore: create request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "walkscore: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "walkscore: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("walkscore: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result scoreResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "walkscore: unmarshal response")
	}

	switch result.Status {
	case statusOK:
	case statusCalculating:
		// Score not yet computed for this point. Not an error.
		return nil, nil
	default:
		return nil, eris.Errorf("walkscore: api status %d", result.Status)
	}

	return &ScoreResult{
		WalkScore:          result.WalkScore,
		WalkDescription:    result.Description,
		TransitScore:       result.Transit.Score,
		TransitDescription: result.Transit.Description,
	}, nil
}
