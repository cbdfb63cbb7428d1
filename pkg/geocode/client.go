// Package geocode resolves street addresses to census geography using the
// Census Bureau geocoder: one call to turn the address into coordinates,
// a second to turn coordinates into tract, county, and state codes.
package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

var (
	// ErrNoMatch means the geocoder found no candidate for the address.
	ErrNoMatch = eris.New("geocode: no address match")

	// ErrNoGeography means the coordinates resolved to no census tract.
	ErrNoGeography = eris.New("geocode: no geography at coordinates")
)

// Client resolves addresses in two steps.
type Client interface {
	// Locate converts a one-line address to coordinates.
	// Unmatched addresses return ErrNoMatch.
	Locate(ctx context.Context, address string) (*Location, error)

	// Geographies converts coordinates to tract, county, and state
	// identifiers. Coordinates outside any tract return ErrNoGeography.
	Geographies(ctx context.Context, lat, lon float64) (*Geography, error)
}

// Location is the coordinate result for a matched address.
type Location struct {
	Latitude       float64
	Longitude      float64
	MatchedAddress string
}

// Geography identifies the census tract containing a point, with the
// county and state names when the responses carry them.
type Geography struct {
	StateFIPS  string
	CountyFIPS string
	TractFIPS  string
	TractName  string
	CountyName string
	StateName  string
	LandAreaM2 int64
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second rate limit for Census API calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

type geocoder struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(50, 50), // Census default: 50 req/s
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}
