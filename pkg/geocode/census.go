package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
)

const (
	censusOneLineURL     = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
	censusGeographiesURL = "https://geocoding.geo.census.gov/geocoder/geographies/coordinates"

	censusBenchmark = "Public_AR_Current"
	censusVintage   = "Current_Current"

	tractLayer  = "Census Tracts"
	countyLayer = "Counties"
	stateLayer  = "States"
)

// censusOneLineResponse is the JSON response from the Census single-address API.
type censusOneLineResponse struct {
	Result struct {
		AddressMatches []censusAddressMatch `json:"addressMatches"`
	} `json:"result"`
}

type censusAddressMatch struct {
	Coordinates struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"coordinates"`
	MatchedAddress string `json:"matchedAddress"`
}

// censusGeographiesResponse is the JSON response from the Census coordinate
// lookup API. Geographies maps layer names ("Census Tracts", "Counties",
// "States") to the records intersecting the point.
type censusGeographiesResponse struct {
	Result struct {
		Geographies map[string][]censusGeography `json:"geographies"`
	} `json:"result"`
}

type censusGeography struct {
	GEOID     string `json:"GEOID"`
	Name      string `json:"NAME"`
	BaseName  string `json:"BASENAME"`
	State     string `json:"STATE"`
	County    string `json:"COUNTY"`
	Tract     string `json:"TRACT"`
	AreaLand  int64  `json:"AREALAND"`
	AreaWater int64  `json:"AREAWATER"`
}

// Locate geocodes a one-line address using the Census geocoder.
func (g *geocoder) Locate(ctx context.Context, address string) (*Location, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: census rate limit")
	}

	params := url.Values{
		"address":   {address},
		"benchmark": {censusBenchmark},
		"format":    {"json"},
	}

	reqURL := censusOneLineURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: census returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census read body")
	}

	var censusResp censusOneLineResponse
	if err := json.Unmarshal(body, &censusResp); err != nil {
		return nil, eris.Wrap(err, "geocode: census parse response")
	}

	if len(censusResp.Result.AddressMatches) == 0 {
		return nil, eris.Wrapf(ErrNoMatch, "address %q", address)
	}

	match := censusResp.Result.AddressMatches[0]
	return &Location{
		Latitude:       match.Coordinates.Y,
		Longitude:      match.Coordinates.X,
		MatchedAddress: match.MatchedAddress,
	}, nil
}

// Geographies looks up the census layers containing a coordinate.
func (g *geocoder) Geographies(ctx context.Context, lat, lon float64) (*Geography, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: census rate limit")
	}

	params := url.Values{
		"x":         {strconv.FormatFloat(lon, 'f', -1, 64)},
		"y":         {strconv.FormatFloat(lat, 'f', -1, 64)},
		"benchmark": {censusBenchmark},
		"vintage":   {censusVintage},
		"format":    {"json"},
	}

	reqURL := censusGeographiesURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: census returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census read body")
	}

	var censusResp censusGeographiesResponse
	if err := json.Unmarshal(body, &censusResp); err != nil {
		return nil, eris.Wrap(err, "geocode: census parse response")
	}

	return parseGeographies(censusResp.Result.Geographies, lat, lon)
}

// parseGeographies extracts tract identifiers from the layered response.
// The tract layer is required. County and state names are filled in when
// their layers are present but never fail the lookup.
func parseGeographies(layers map[string][]censusGeography, lat, lon float64) (*Geography, error) {
	tracts := layers[tractLayer]
	if len(tracts) == 0 {
		return nil, eris.Wrapf(ErrNoGeography, "point (%f, %f)", lat, lon)
	}

	tract := tracts[0]
	if tract.State == "" || tract.County == "" || tract.Tract == "" {
		return nil, eris.Wrapf(ErrNoGeography, "incomplete tract record %q", tract.GEOID)
	}

	geo := &Geography{
		StateFIPS:  tract.State,
		CountyFIPS: tract.County,
		TractFIPS:  tract.Tract,
		TractName:  tract.Name,
		LandAreaM2: tract.AreaLand,
	}

	stateCode := tract.State
	if counties := layers[countyLayer]; len(counties) > 0 {
		geo.CountyName = counties[0].Name
		if counties[0].State != "" {
			stateCode = counties[0].State
		}
	}
	for _, s := range layers[stateLayer] {
		if s.State == stateCode {
			geo.StateName = s.Name
			break
		}
	}

	return geo, nil
}

// FullGEOID returns the 11-digit tract identifier: state + county + tract.
func (g *Geography) FullGEOID() string {
	return g.StateFIPS + g.CountyFIPS + g.TractFIPS
}
