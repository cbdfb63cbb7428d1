package census

import (
	_ "embed"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed varsets.yaml
var defaultVarsets []byte

// varsetOrder fixes the fetch order of the sets; map iteration would shuffle
// chunk boundaries between runs.
var varsetOrder = []string{"population", "age_sex", "education", "income", "households", "race", "housing", "economic"}

// Varsets holds the named ACS variable sets fetched per lookup.
type Varsets struct {
	Sets map[string][]string `yaml:"sets"`
}

// LoadVarsets parses the embedded variable-set definitions.
func LoadVarsets() (*Varsets, error) {
	return parseVarsets(defaultVarsets)
}

// LoadVarsetsFile parses variable-set definitions from a YAML file, for
// deployments that trim or extend the default sets.
func LoadVarsetsFile(path string) (*Varsets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "census: read varsets %s", path)
	}
	return parseVarsets(data)
}

func parseVarsets(data []byte) (*Varsets, error) {
	var vs Varsets
	if err := yaml.Unmarshal(data, &vs); err != nil {
		return nil, eris.Wrap(err, "census: parse varsets")
	}
	if len(vs.Sets) == 0 {
		return nil, eris.New("census: varsets define no sets")
	}
	return &vs, nil
}

// Set returns the codes of one named set, or nil when undefined.
func (v *Varsets) Set(name string) []string {
	return v.Sets[name]
}

// DemographicSet returns the ordered union of all sets with duplicates
// removed, preserving first occurrence.
func (v *Varsets) DemographicSet() []string {
	seen := make(map[string]bool)
	var codes []string

	appendSet := func(set []string) {
		for _, code := range set {
			if seen[code] {
				continue
			}
			seen[code] = true
			codes = append(codes, code)
		}
	}

	for _, name := range varsetOrder {
		appendSet(v.Sets[name])
	}
	// Sets added by an override file beyond the known order still fetch.
	var extra []string
	for name := range v.Sets {
		if !knownSet(name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		appendSet(v.Sets[name])
	}
	return codes
}

func knownSet(name string) bool {
	for _, n := range varsetOrder {
		if n == name {
			return true
		}
	}
	return false
}
