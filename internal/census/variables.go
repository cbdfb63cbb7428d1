package census

import "fmt"

// Variable codes read individually by the derivation layer. Fetch sets live
// in varsets.yaml; these constants name the cells derivation pulls out of the
// merged map.
const (
	VarTotalPopulation  = "B01003_001E"
	VarMedianAge        = "B01002_001E"
	VarMedianHHIncome   = "B19013_001E"
	VarPerCapitaIncome  = "B19301_001E"
	VarAvgHouseholdSize = "B25010_001E"

	// Educational attainment, population 25 and over.
	VarPop25Plus = "B15003_001E"

	// Household composition.
	VarHouseholds            = "B11001_001E"
	VarFamilyHouseholds      = "B11001_002E"
	VarMarriedCoupleFamilies = "B11001_003E"
	VarNonFamilyHouseholds   = "B11001_007E"

	// Race and Hispanic origin.
	VarRaceTotal = "B03002_001E"
	VarWhiteNH   = "B03002_003E"
	VarBlackNH   = "B03002_004E"
	VarAsianNH   = "B03002_006E"
	VarHispanic  = "B03002_012E"

	// Housing tenure and stock.
	VarTenureTotal     = "B25003_001E"
	VarOwnerOccupied   = "B25003_002E"
	VarRenterOccupied  = "B25003_003E"
	VarMedianHomeValue = "B25077_001E"
	VarMedianGrossRent = "B25064_001E"
	VarMedianYearBuilt = "B25035_001E"
	VarHousingUnits    = "B25002_001E"
	VarVacantUnits     = "B25002_003E"
	VarVacantForRent   = "B25004_002E"
	VarVacantForSale   = "B25004_004E"

	// Employment and poverty.
	VarPop16Plus          = "B23025_001E"
	VarLaborForce         = "B23025_002E"
	VarCivilianLaborForce = "B23025_003E"
	VarUnemployed         = "B23025_005E"
	VarPovertyUniverse    = "B17001_001E"
	VarBelowPoverty       = "B17001_002E"

	// Sex by age totals.
	VarAgeSexTotal = "B01001_001E"
	VarMaleTotal   = "B01001_002E"
	VarFemaleTotal = "B01001_026E"
)

// EducationBachelorsPlus are the attainment strata summed for the
// bachelor's-or-higher share.
var EducationBachelorsPlus = []string{"B15003_022E", "B15003_023E", "B15003_024E", "B15003_025E"}

// RaceOtherNH are the non-Hispanic strata folded into the "other" share.
var RaceOtherNH = []string{"B03002_005E", "B03002_007E", "B03002_008E", "B03002_009E"}

// Age bucket strata from the sex-by-age table. Male strata run 003-025,
// female 027-049.
var (
	MaleUnder18   = seq("B01001", 3, 6)
	FemaleUnder18 = seq("B01001", 27, 30)
	Male18To34    = seq("B01001", 7, 12)
	Female18To34  = seq("B01001", 31, 36)
	Male35To64    = seq("B01001", 13, 19)
	Female35To64  = seq("B01001", 37, 43)
	Male65Plus    = seq("B01001", 20, 25)
	Female65Plus  = seq("B01001", 44, 49)
)

// seq builds consecutive estimate codes table_NNNE for NNN in [from, to].
func seq(table string, from, to int) []string {
	codes := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		codes = append(codes, fmt.Sprintf("%s_%03dE", table, i))
	}
	return codes
}
