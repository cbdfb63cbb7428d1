package pipeline

import (
	"math"

	"github.com/sells-group/marketdata/internal/census"
	"github.com/sells-group/marketdata/internal/model"
)

// sqMileM2 converts land area reported in square meters to square miles.
const sqMileM2 = 2589988.11

// growthPeriodYears labels the growth-metrics window. It is a fixed label kept
// for payload compatibility, not the observed span; CAGR always uses the
// actual first-to-last year distance.
const growthPeriodYears = 5

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

// safeDivPercent returns num/den as a percentage rounded to one decimal, or
// nil when either side is missing or the denominator is zero. Ratios must
// never zero-substitute a missing denominator.
func safeDivPercent(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	return model.Float(round1(*num / *den * 100))
}

// bucketSum adds the listed variables treating missing values as zero.
// Only for additive sums over many thin strata; never for ratio denominators.
func bucketSum(vars model.VariableMap, codes []string) int {
	total := 0
	for _, code := range codes {
		if v := vars.Value(code); v != nil {
			total += int(*v)
		}
	}
	return total
}

// toIntPtr narrows an optional float to an optional int.
func toIntPtr(v *float64) *int {
	if v == nil {
		return nil
	}
	return model.Int(int(*v))
}

// computeGrowth summarizes a trend. With fewer than two points everything but
// the fixed period label is nil.
func computeGrowth(trend []model.TrendPoint) model.GrowthMetrics {
	m := model.GrowthMetrics{PeriodYears: growthPeriodYears}
	if len(trend) < 2 {
		return m
	}

	first, last := trend[0], trend[len(trend)-1]
	span := last.Year - first.Year
	if first.Population > 0 && span > 0 {
		cagr := (math.Pow(float64(last.Population)/float64(first.Population), 1/float64(span)) - 1) * 100
		m.CAGR = model.Float(round2(cagr))
	}

	prev := trend[len(trend)-2]
	if prev.Population > 0 {
		yoy := float64(last.Population-prev.Population) / float64(prev.Population) * 100
		m.YoYGrowth = model.Float(round2(yoy))
	}

	m.AbsoluteChange = model.Int(last.Population - first.Population)
	return m
}

// computeDensity derives people per square mile from the latest known
// population and the tract land area. The land area is treated as constant
// over the window, so the change figure reflects population movement only.
func computeDensity(trend []model.TrendPoint, fallbackPop *float64, landAreaM2 int64) *model.PopulationDensity {
	if landAreaM2 <= 0 {
		return nil
	}
	sqMiles := float64(landAreaM2) / sqMileM2

	var current float64
	switch {
	case len(trend) > 0:
		current = float64(trend[len(trend)-1].Population)
	case fallbackPop != nil:
		current = *fallbackPop
	default:
		return nil
	}

	d := &model.PopulationDensity{
		PeopleSqMile: model.Float(round1(current / sqMiles)),
	}
	if len(trend) >= 2 {
		first := float64(trend[0].Population)
		d.ChangeSqMile = model.Float(round1(current/sqMiles - first/sqMiles))
	}
	return d
}

// computeMigration combines county components-of-change and migration flows.
// The group is all-or-nothing: if either source is absent, or the county
// population or net-migration figure is unusable, the whole group is nil.
func computeMigration(comp *census.Components, flows *census.Flows) *model.MigrationData {
	if comp == nil || flows == nil {
		return nil
	}
	if comp.Population == nil || *comp.Population <= 0 || comp.NetMig == nil {
		return nil
	}
	if flows.MovedIn == nil || flows.MovedOut == nil {
		return nil
	}

	rate := float64(*comp.NetMig) / float64(*comp.Population) * 100
	return &model.MigrationData{
		NetMigration:           comp.NetMig,
		DomesticMigration:      comp.DomesticMig,
		InternationalMigration: comp.InternationalMig,
		Inflow:                 flows.MovedIn,
		Outflow:                flows.MovedOut,
		GrossMigration:         model.Int(*flows.MovedIn + *flows.MovedOut),
		NetRatePer100:          model.Float(round2(rate)),
	}
}

// computeNaturalIncrease derives the births-minus-deaths rate per 1,000
// county residents. Nil unless births, deaths, and a positive population are
// all present.
func computeNaturalIncrease(comp *census.Components) *model.NaturalIncreaseData {
	if comp == nil || comp.Births == nil || comp.Deaths == nil {
		return nil
	}
	if comp.Population == nil || *comp.Population <= 0 {
		return nil
	}
	rate := float64(*comp.Births-*comp.Deaths) / float64(*comp.Population) * 1000
	return &model.NaturalIncreaseData{
		Births:      comp.Births,
		Deaths:      comp.Deaths,
		RatePer1000: model.Float(round2(rate)),
	}
}

// computeAgeDistribution buckets the age pyramid. The universe variable gates
// the whole group; within it, strata sum with zero-substitution.
func computeAgeDistribution(vars model.VariableMap) *model.AgeDistribution {
	if vars.Value(census.VarAgeSexTotal) == nil {
		return nil
	}
	return &model.AgeDistribution{
		Under18:   bucketSum(vars, census.MaleUnder18) + bucketSum(vars, census.FemaleUnder18),
		Age18To34: bucketSum(vars, census.Male18To34) + bucketSum(vars, census.Female18To34),
		Age35To64: bucketSum(vars, census.Male35To64) + bucketSum(vars, census.Female35To64),
		Age65Plus: bucketSum(vars, census.Male65Plus) + bucketSum(vars, census.Female65Plus),
	}
}

// computeSexDistribution splits the population by sex with shares of the
// age/sex universe.
func computeSexDistribution(vars model.VariableMap) *model.SexDistribution {
	male := vars.Value(census.VarMaleTotal)
	female := vars.Value(census.VarFemaleTotal)
	if male == nil && female == nil {
		return nil
	}
	total := vars.Value(census.VarAgeSexTotal)
	return &model.SexDistribution{
		Male:          toIntPtr(male),
		Female:        toIntPtr(female),
		PercentMale:   safeDivPercent(male, total),
		PercentFemale: safeDivPercent(female, total),
	}
}

// computeDemographics assembles socioeconomic ratios from the merged
// variable map.
func computeDemographics(vars model.VariableMap) *model.Demographics {
	bachelors := float64(bucketSum(vars, census.EducationBachelorsPlus))
	otherNH := float64(bucketSum(vars, census.RaceOtherNH))
	totalHH := vars.Value(census.VarHouseholds)
	raceTotal := vars.Value(census.VarRaceTotal)

	return &model.Demographics{
		MedianHouseholdIncome:    vars.Value(census.VarMedianHHIncome),
		PerCapitaIncome:          vars.Value(census.VarPerCapitaIncome),
		AvgHouseholdSize:         vars.Value(census.VarAvgHouseholdSize),
		PercentBachelorsOrHigher: safeDivPercent(&bachelors, vars.Value(census.VarPop25Plus)),
		HouseholdComposition: model.HouseholdComposition{
			TotalHouseholds:      toIntPtr(totalHH),
			PercentFamily:        safeDivPercent(vars.Value(census.VarFamilyHouseholds), totalHH),
			PercentMarriedCouple: safeDivPercent(vars.Value(census.VarMarriedCoupleFamilies), totalHH),
			PercentNonFamily:     safeDivPercent(vars.Value(census.VarNonFamilyHouseholds), totalHH),
		},
		RaceAndEthnicity: model.RaceAndEthnicity{
			PercentWhiteNH:  safeDivPercent(vars.Value(census.VarWhiteNH), raceTotal),
			PercentBlackNH:  safeDivPercent(vars.Value(census.VarBlackNH), raceTotal),
			PercentAsianNH:  safeDivPercent(vars.Value(census.VarAsianNH), raceTotal),
			PercentHispanic: safeDivPercent(vars.Value(census.VarHispanic), raceTotal),
			PercentOtherNH:  safeDivPercent(&otherNH, raceTotal),
		},
	}
}

// computeHousing assembles tenure, value, and vacancy measures. The rental
// and homeowner vacancy denominators follow the bureau's convention: occupied
// units of that tenure plus the units vacant for it.
func computeHousing(vars model.VariableMap) *model.HousingMetrics {
	rentalDen := float64(bucketSum(vars, []string{census.VarRenterOccupied, census.VarVacantForRent}))
	ownerDen := float64(bucketSum(vars, []string{census.VarOwnerOccupied, census.VarVacantForSale}))

	return &model.HousingMetrics{
		PercentRenterOccupied: safeDivPercent(vars.Value(census.VarRenterOccupied), vars.Value(census.VarTenureTotal)),
		MedianHomeValue:       vars.Value(census.VarMedianHomeValue),
		MedianGrossRent:       vars.Value(census.VarMedianGrossRent),
		MedianYearBuilt:       toIntPtr(vars.Value(census.VarMedianYearBuilt)),
		VacancyRate:           safeDivPercent(vars.Value(census.VarVacantUnits), vars.Value(census.VarHousingUnits)),
		RentalVacancyRate:     safeDivPercent(vars.Value(census.VarVacantForRent), &rentalDen),
		HomeownerVacancyRate:  safeDivPercent(vars.Value(census.VarVacantForSale), &ownerDen),
	}
}

// computeEconomicContext assembles labor-market ratios, nil when every input
// is missing.
func computeEconomicContext(vars model.VariableMap) *model.EconomicContext {
	ec := &model.EconomicContext{
		UnemploymentRate:        safeDivPercent(vars.Value(census.VarUnemployed), vars.Value(census.VarCivilianLaborForce)),
		PovertyRate:             safeDivPercent(vars.Value(census.VarBelowPoverty), vars.Value(census.VarPovertyUniverse)),
		LaborForceParticipation: safeDivPercent(vars.Value(census.VarLaborForce), vars.Value(census.VarPop16Plus)),
	}
	if ec.UnemploymentRate == nil && ec.PovertyRate == nil && ec.LaborForceParticipation == nil {
		return nil
	}
	return ec
}
