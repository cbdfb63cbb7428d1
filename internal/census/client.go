// Package census fetches statistical variables from the Census Bureau data API.
package census

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/marketdata/internal/metrics"
	"github.com/sells-group/marketdata/internal/model"
)

const (
	acsDataset        = "acs/acs5"
	componentsDataset = "pep/components"
	flowsDataset      = "acs/flows"

	// MaxVariablesPerCall is the API cap on variable codes per request
	// (50 including NAME).
	MaxVariablesPerCall = 49

	// sentinelFloor marks ACS suppression sentinels. Estimates at or below it
	// (-111111111, -666666666, ...) decode as missing.
	sentinelFloor = -111111111
)

// VariableResult is one geography/year variable fetch.
type VariableResult struct {
	Name string
	Vars model.VariableMap
}

// Components holds one county's population components of change.
type Components struct {
	Births           *int
	Deaths           *int
	DomesticMig      *int
	InternationalMig *int
	NetMig           *int
	Population       *int
}

// Flows holds one county's migration flow totals, summed across all
// paired geographies.
type Flows struct {
	MovedIn  *int
	MovedOut *int
	MovedNet *int
}

// Client fetches statistical data for a resolved geography. A fetch that
// reaches the API but finds no data returns (nil, nil); callers decide whether
// absence is fatal.
type Client interface {
	FetchVariables(ctx context.Context, geo model.Geography, year int, level model.GeoLevel, codes []string) (*VariableResult, error)
	FetchComponents(ctx context.Context, geo model.Geography, year int) (*Components, error)
	FetchFlows(ctx context.Context, geo model.Geography, year int) (*Flows, error)
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the data API base URL.
func WithBaseURL(u string) Option {
	return func(c *client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithAPIKey sets the Census API key. Without a key the API enforces a low
// anonymous daily quota but requests still work.
func WithAPIKey(key string) Option {
	return func(c *client) {
		c.apiKey = key
	}
}

// WithRateLimit caps requests per second. The limiter is shared by every
// fetch this client performs, including concurrent pipeline tasks.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(math.Max(rps, 1)))
	}
}

type client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
}

// NewClient creates a Census data API client.
func NewClient(opts ...Option) Client {
	c := &client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api.census.gov/data",
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchVariables fetches the given ACS 5-year variable codes for one
// geography and year. len(codes) must not exceed MaxVariablesPerCall.
func (c *client) FetchVariables(ctx context.Context, geo model.Geography, year int, level model.GeoLevel, codes []string) (*VariableResult, error) {
	if len(codes) == 0 {
		return nil, eris.New("census: no variable codes requested")
	}
	if len(codes) > MaxVariablesPerCall {
		return nil, eris.Errorf("census: %d codes exceeds per-call cap %d", len(codes), MaxVariablesPerCall)
	}

	clause, err := geoClause(level, geo)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/%d/%s?get=NAME,%s&%s", c.baseURL, year, acsDataset, strings.Join(codes, ","), clause)

	rows, err := c.fetch(ctx, url, "acs")
	if err != nil {
		return nil, eris.Wrapf(err, "census: fetch variables year %d level %s", year, level)
	}
	if len(rows) < 2 {
		zap.L().Debug("census: no variable data",
			zap.Int("year", year),
			zap.String("level", string(level)),
			zap.String("geoid", geo.FIPS(level)),
		)
		return nil, nil
	}

	colIdx := headerIndex(rows[0])
	record := rows[1]

	result := &VariableResult{
		Name: cell(record, colIdx, "NAME"),
		Vars: make(model.VariableMap, len(codes)),
	}
	for _, code := range codes {
		result.Vars[code] = parseValue(cell(record, colIdx, code))
	}
	return result, nil
}

// FetchComponents fetches county population components of change from the
// population estimates program.
func (c *client) FetchComponents(ctx context.Context, geo model.Geography, year int) (*Components, error) {
	url := fmt.Sprintf("%s/%d/%s?get=BIRTHS,DEATHS,DOMESTICMIG,INTERNATIONALMIG,NETMIG,POP&for=county:%s&in=state:%s",
		c.baseURL, year, componentsDataset, geo.CountyFIPS, geo.StateFIPS)

	rows, err := c.fetch(ctx, url, "pep")
	if err != nil {
		return nil, eris.Wrapf(err, "census: fetch components year %d", year)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	colIdx := headerIndex(rows[0])
	record := rows[1]
	return &Components{
		Births:           toInt(parseValue(cell(record, colIdx, "BIRTHS"))),
		Deaths:           toInt(parseValue(cell(record, colIdx, "DEATHS"))),
		DomesticMig:      toInt(parseValue(cell(record, colIdx, "DOMESTICMIG"))),
		InternationalMig: toInt(parseValue(cell(record, colIdx, "INTERNATIONALMIG"))),
		NetMig:           toInt(parseValue(cell(record, colIdx, "NETMIG"))),
		Population:       toInt(parseValue(cell(record, colIdx, "POP"))),
	}, nil
}

// FetchFlows fetches county migration flows and sums them across all paired
// geographies.
func (c *client) FetchFlows(ctx context.Context, geo model.Geography, year int) (*Flows, error) {
	url := fmt.Sprintf("%s/%d/%s?get=MOVEDIN,MOVEDOUT,MOVEDNET&for=county:%s&in=state:%s",
		c.baseURL, year, flowsDataset, geo.CountyFIPS, geo.StateFIPS)

	rows, err := c.fetch(ctx, url, "flows")
	if err != nil {
		return nil, eris.Wrapf(err, "census: fetch flows year %d", year)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	colIdx := headerIndex(rows[0])
	flows := &Flows{}
	for _, record := range rows[1:] {
		flows.MovedIn = addValue(flows.MovedIn, parseValue(cell(record, colIdx, "MOVEDIN")))
		flows.MovedOut = addValue(flows.MovedOut, parseValue(cell(record, colIdx, "MOVEDOUT")))
		flows.MovedNet = addValue(flows.MovedNet, parseValue(cell(record, colIdx, "MOVEDNET")))
	}
	return flows, nil
}

// fetch performs one rate-limited GET and decodes the array-of-arrays payload.
// A 404 means the dataset/geography combination does not exist: (nil, nil).
func (c *client) fetch(ctx context.Context, url, source string) ([][]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "census: rate limiter")
	}

	reqURL := url
	if c.apiKey != "" {
		reqURL += "&key=" + c.apiKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "census: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(source, "error").Inc()
		return nil, eris.Wrap(err, "census: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		metrics.UpstreamRequests.WithLabelValues(source, "ok").Inc()
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.WithLabelValues(source, "error").Inc()
		return nil, eris.Errorf("census: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(source, "error").Inc()
		return nil, eris.Wrap(err, "census: read response")
	}
	metrics.UpstreamRequests.WithLabelValues(source, "ok").Inc()

	// The API returns a JSON array of arrays: [[header], [row1], ...].
	// Null cells decode as empty strings.
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, eris.Wrap(err, "census: unmarshal response")
	}
	return rows, nil
}

func geoClause(level model.GeoLevel, geo model.Geography) (string, error) {
	switch level {
	case model.LevelTract:
		return fmt.Sprintf("for=tract:%s&in=state:%s%%20county:%s", geo.TractFIPS, geo.StateFIPS, geo.CountyFIPS), nil
	case model.LevelCounty:
		return fmt.Sprintf("for=county:%s&in=state:%s", geo.CountyFIPS, geo.StateFIPS), nil
	case model.LevelState:
		return fmt.Sprintf("for=state:%s", geo.StateFIPS), nil
	case model.LevelNational:
		return "for=us:1", nil
	default:
		return "", eris.Errorf("census: unknown geography level %q", level)
	}
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}
	return idx
}

// cell gets a value from a record by column name.
func cell(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// parseValue decodes one API cell. Empty cells, unparseable cells, and
// suppression sentinels are missing (nil).
func parseValue(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	if v <= sentinelFloor {
		return nil
	}
	return &v
}

func toInt(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}

// addValue accumulates a flow column, staying nil until the first real value.
func addValue(sum *int, v *float64) *int {
	if v == nil {
		return sum
	}
	n := int(math.Round(*v))
	if sum == nil {
		return &n
	}
	total := *sum + n
	return &total
}
