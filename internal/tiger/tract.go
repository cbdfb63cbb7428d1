// Package tiger downloads Census TIGER/Line tract shapefiles and loads
// their boundaries into the store for offline point-in-tract lookups.
package tiger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://www2.census.gov/geo/tiger"

// tractColumns are the TRACT shapefile DBF attributes the loader reads.
// NAMELSAD carries the full "Census Tract NNN" name; INTPTLAT/INTPTLON
// are signed decimal strings.
var tractColumns = []string{
	"geoid", "namelsad", "aland", "awater", "intptlat", "intptlon",
}

// FIPSCodes maps state abbreviation to 2-digit FIPS code for all 50 states + DC.
var FIPSCodes = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56",
}

// abbrByFIPS is a reverse lookup from FIPS code to state abbreviation.
var abbrByFIPS map[string]string

func init() {
	abbrByFIPS = make(map[string]string, len(FIPSCodes))
	for abbr, fips := range FIPSCodes {
		abbrByFIPS[fips] = abbr
	}
}

// AbbrFromFIPS returns the state abbreviation for a FIPS code.
func AbbrFromFIPS(fips string) (string, bool) {
	abbr, ok := abbrByFIPS[fips]
	return abbr, ok
}

// AllStateFIPS returns a sorted list of all state FIPS codes.
func AllStateFIPS() []string {
	codes := make([]string, 0, len(FIPSCodes))
	for _, fips := range FIPSCodes {
		codes = append(codes, fips)
	}
	sort.Strings(codes)
	return codes
}

// NormalizeStates resolves a mixed list of state abbreviations and FIPS
// codes to sorted, deduplicated FIPS codes. An empty list means every
// state plus DC.
func NormalizeStates(states []string) ([]string, error) {
	if len(states) == 0 {
		return AllStateFIPS(), nil
	}

	seen := make(map[string]bool, len(states))
	var codes []string
	for _, s := range states {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}

		fips := ""
		if _, ok := abbrByFIPS[s]; ok {
			fips = s
		} else if code, ok := FIPSCodes[strings.ToUpper(s)]; ok {
			fips = code
		} else {
			return nil, eris.Errorf("tiger: unknown state %q", s)
		}

		if !seen[fips] {
			seen[fips] = true
			codes = append(codes, fips)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

// DownloadURL builds the download URL for one state's TRACT shapefile.
// An empty baseURL uses the Census Bureau web mirror.
func DownloadURL(baseURL string, year int, stateFIPS string) string {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return fmt.Sprintf("%s/TIGER%d/TRACT/tl_%d_%s_tract.zip",
		strings.TrimRight(baseURL, "/"), year, year, stateFIPS)
}
