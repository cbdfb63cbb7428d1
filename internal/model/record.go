package model

// SchemaVersion tags cached record payloads. Bumping it invalidates every
// previously cached entry without a migration step.
const SchemaVersion = 1

// GeoLevel is a census geography level.
type GeoLevel string

const (
	LevelTract    GeoLevel = "tract"
	LevelCounty   GeoLevel = "county"
	LevelState    GeoLevel = "state"
	LevelNational GeoLevel = "national"
)

// Geography identifies a resolved census tract and its parent geographies.
// Produced by the geocoder, read-only downstream.
type Geography struct {
	StateFIPS  string `json:"state_fips"`
	CountyFIPS string `json:"county_fips"`
	TractFIPS  string `json:"tract_fips"`
	Name       string `json:"name"`
	CountyName string `json:"county_name"`
	StateName  string `json:"state_name"`
	LandAreaM2 int64  `json:"land_area_m2"`
}

// TractGEOID returns the 11-digit concatenated tract identifier.
func (g Geography) TractGEOID() string {
	return g.StateFIPS + g.CountyFIPS + g.TractFIPS
}

// FIPS returns the identifier for the given level.
func (g Geography) FIPS(level GeoLevel) string {
	switch level {
	case LevelTract:
		return g.TractGEOID()
	case LevelCounty:
		return g.StateFIPS + g.CountyFIPS
	case LevelState:
		return g.StateFIPS
	default:
		return "us"
	}
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// VariableMap maps a statistical variable code to its value. A nil value means
// the source reported the variable as missing or suppressed.
type VariableMap map[string]*float64

// Value returns the value for code, or nil when absent or suppressed.
func (m VariableMap) Value(code string) *float64 {
	if m == nil {
		return nil
	}
	return m[code]
}

// Merge copies all entries of other into m, overwriting on collision.
func (m VariableMap) Merge(other VariableMap) {
	for k, v := range other {
		m[k] = v
	}
}

// TrendPoint is one year of a population time series.
type TrendPoint struct {
	Year         int  `json:"year"`
	Population   int  `json:"population"`
	IsProjection bool `json:"is_projection"`
}

// GrowthMetrics summarizes population change over the historical window.
// PeriodYears is a fixed window label, not the observed span.
type GrowthMetrics struct {
	PeriodYears    int      `json:"period_years"`
	CAGR           *float64 `json:"cagr"`
	YoYGrowth      *float64 `json:"yoy_growth"`
	AbsoluteChange *int     `json:"absolute_change"`
}

// PopulationDensity holds people-per-square-mile figures.
type PopulationDensity struct {
	PeopleSqMile *float64 `json:"people_sq_mile"`
	ChangeSqMile *float64 `json:"change_sq_mile"`
}

// MigrationData breaks down county-level migration. The group is nil as a
// whole when its inputs are unavailable, never partially populated.
type MigrationData struct {
	NetMigration           *int     `json:"net_migration"`
	DomesticMigration      *int     `json:"domestic_migration"`
	InternationalMigration *int     `json:"international_migration"`
	Inflow                 *int     `json:"inflow"`
	Outflow                *int     `json:"outflow"`
	GrossMigration         *int     `json:"gross_migration"`
	NetRatePer100          *float64 `json:"net_rate_per_100"`
}

// NaturalIncreaseData holds county births, deaths, and the rate per 1,000.
type NaturalIncreaseData struct {
	Births      *int     `json:"births"`
	Deaths      *int     `json:"deaths"`
	RatePer1000 *float64 `json:"rate_per_1000"`
}

// AgeDistribution buckets the tract population by age. Buckets sum many thin
// strata, so missing strata count as zero.
type AgeDistribution struct {
	Under18   int `json:"under_18"`
	Age18To34 int `json:"age_18_34"`
	Age35To64 int `json:"age_35_64"`
	Age65Plus int `json:"age_65_plus"`
}

// SexDistribution splits the tract population by sex.
type SexDistribution struct {
	Male          *int     `json:"male"`
	Female        *int     `json:"female"`
	PercentMale   *float64 `json:"percent_male"`
	PercentFemale *float64 `json:"percent_female"`
}

// HouseholdComposition describes household structure shares.
type HouseholdComposition struct {
	TotalHouseholds      *int     `json:"total_households"`
	PercentFamily        *float64 `json:"percent_family_households"`
	PercentMarriedCouple *float64 `json:"percent_married_couple_family"`
	PercentNonFamily     *float64 `json:"percent_non_family_households"`
}

// RaceAndEthnicity holds population shares by race and Hispanic origin.
type RaceAndEthnicity struct {
	PercentWhiteNH  *float64 `json:"percent_white_non_hispanic"`
	PercentBlackNH  *float64 `json:"percent_black_non_hispanic"`
	PercentAsianNH  *float64 `json:"percent_asian_non_hispanic"`
	PercentHispanic *float64 `json:"percent_hispanic"`
	PercentOtherNH  *float64 `json:"percent_other_non_hispanic"`
}

// Demographics groups socioeconomic measures for the tract.
type Demographics struct {
	MedianHouseholdIncome    *float64             `json:"median_household_income"`
	PerCapitaIncome          *float64             `json:"per_capita_income"`
	AvgHouseholdSize         *float64             `json:"avg_household_size"`
	PercentBachelorsOrHigher *float64             `json:"percent_bachelors_or_higher"`
	HouseholdComposition     HouseholdComposition `json:"household_composition"`
	RaceAndEthnicity         RaceAndEthnicity     `json:"race_and_ethnicity"`
}

// HousingMetrics groups housing stock and tenure measures.
type HousingMetrics struct {
	PercentRenterOccupied *float64 `json:"percent_renter_occupied"`
	MedianHomeValue       *float64 `json:"median_home_value"`
	MedianGrossRent       *float64 `json:"median_gross_rent"`
	MedianYearBuilt       *int     `json:"median_year_structure_built"`
	VacancyRate           *float64 `json:"vacancy_rate"`
	RentalVacancyRate     *float64 `json:"rental_vacancy_rate"`
	HomeownerVacancyRate  *float64 `json:"homeowner_vacancy_rate"`
}

// EconomicContext groups labor-market and poverty measures.
type EconomicContext struct {
	UnemploymentRate        *float64 `json:"unemployment_rate"`
	PovertyRate             *float64 `json:"poverty_rate"`
	LaborForceParticipation *float64 `json:"labor_force_participation"`
}

// WalkabilityScores holds Walk Score API results.
type WalkabilityScores struct {
	WalkScore          *int   `json:"walk_score"`
	WalkDescription    string `json:"walk_description,omitempty"`
	TransitScore       *int   `json:"transit_score"`
	TransitDescription string `json:"transit_description,omitempty"`
}

// BenchmarkSeries is one comparison geography's population trend.
type BenchmarkSeries struct {
	Name  string       `json:"name"`
	Trend []TrendPoint `json:"trend"`
	CAGR  *float64     `json:"cagr"`
}

// BenchmarkData holds the fixed benchmark levels for trend comparison.
type BenchmarkData struct {
	County   *BenchmarkSeries `json:"county,omitempty"`
	State    *BenchmarkSeries `json:"state,omitempty"`
	National *BenchmarkSeries `json:"national,omitempty"`
}

// PopulationTrend bundles the historical trend, its projection, and benchmarks.
type PopulationTrend struct {
	Trend      []TrendPoint   `json:"trend"`
	Projection []TrendPoint   `json:"projection"`
	Benchmark  *BenchmarkData `json:"benchmark,omitempty"`
}

// MarketRecord is the full demographic/growth profile for one address lookup.
// Optional groups are nil when their sources were unavailable; consumers must
// not assume presence.
type MarketRecord struct {
	SearchAddress     string               `json:"search_address"`
	DataYear          int                  `json:"data_year"`
	GeographyName     string               `json:"geography_name"`
	GeographyLevel    GeoLevel             `json:"geography_level"`
	FIPS              string               `json:"fips"`
	Coordinates       Coordinates          `json:"coordinates"`
	TractAreaSqMeters int64                `json:"tract_area_sq_meters"`
	TotalPopulation   int                  `json:"total_population"`
	MedianAge         *float64             `json:"median_age"`
	Growth            GrowthMetrics        `json:"growth"`
	Migration         *MigrationData       `json:"migration"`
	NaturalIncrease   *NaturalIncreaseData `json:"natural_increase"`
	PopulationDensity *PopulationDensity   `json:"population_density"`
	AgeDistribution   *AgeDistribution     `json:"age_distribution"`
	SexDistribution   *SexDistribution     `json:"sex_distribution"`
	Demographics      *Demographics        `json:"demographics"`
	Housing           *HousingMetrics      `json:"housing"`
	EconomicContext   *EconomicContext     `json:"economic_context"`
	Walkability       *WalkabilityScores   `json:"walkability,omitempty"`
	PopulationTrends  PopulationTrend      `json:"population_trends"`
}

// Float returns a pointer to v. Convenience for optional fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v. Convenience for optional fields.
func Int(v int) *int { return &v }
