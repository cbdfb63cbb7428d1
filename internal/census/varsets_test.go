package census

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadVarsets(t *testing.T) {
	vs, err := LoadVarsets()
	require.NoError(t, err)

	for _, name := range varsetOrder {
		assert.NotEmpty(t, vs.Set(name), "set %s", name)
	}
	assert.Len(t, vs.Set("age_sex"), 49)
	assert.Empty(t, vs.Set("nonexistent"))
}

func TestLoadVarsetsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sets:\n  population:\n    - B01003_001E\n"), 0o644))

	vs, err := LoadVarsetsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"B01003_001E"}, vs.Set("population"))

	_, err = LoadVarsetsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDemographicSet(t *testing.T) {
	vs, err := LoadVarsets()
	require.NoError(t, err)

	all := vs.DemographicSet()
	assert.Equal(t, VarTotalPopulation, all[0])

	seen := make(map[string]bool, len(all))
	for _, code := range all {
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}

	total := 0
	for _, name := range varsetOrder {
		total += len(vs.Set(name))
	}
	assert.LessOrEqual(t, len(all), total)
	assert.Greater(t, len(all), 49)
}

func TestDemographicSet_ExtraSetsAppended(t *testing.T) {
	vs := &Varsets{Sets: map[string][]string{
		"population": {"B01003_001E"},
		"zcustom":    {"B99999_001E"},
		"acustom":    {"B88888_001E"},
	}}

	all := vs.DemographicSet()
	require.Len(t, all, 3)
	assert.Equal(t, "B01003_001E", all[0])
	// Unknown sets follow the canonical ones in name order.
	assert.Equal(t, "B88888_001E", all[1])
	assert.Equal(t, "B99999_001E", all[2])
}

// Every stratum the age pyramid sums must be present in the fetched set,
// otherwise bucket totals silently undercount.
func TestAgeSexSetCoversBuckets(t *testing.T) {
	vs, err := LoadVarsets()
	require.NoError(t, err)

	ageSex := make(map[string]bool)
	for _, code := range vs.Set("age_sex") {
		ageSex[code] = true
	}

	strata := [][]string{
		MaleUnder18, FemaleUnder18,
		Male18To34, Female18To34,
		Male35To64, Female35To64,
		Male65Plus, Female65Plus,
	}
	for _, stratum := range strata {
		for _, code := range stratum {
			assert.True(t, ageSex[code], "missing %s", code)
		}
	}
	assert.True(t, ageSex[VarMaleTotal])
	assert.True(t, ageSex[VarFemaleTotal])
}
