// Package eligibility decides whether a rollover proposal must capture the
// previous policy before anything else.
package eligibility

import (
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"

	"presale/models"
)

const (
	daysPerYear       = 365.25
	compMinAgeInDays  = 300
	saodMinAgeInYears = 1
	saodMaxAgeInYears = 3
	compMaxAgeInYears = 1
	hoursPerDay       = 24
)

// Evaluator wraps the rule with a clock so callers can pin "now" in tests.
type Evaluator struct {
	Now func() time.Time
}

// New returns an evaluator on the wall clock.
func New() *Evaluator {
	return &Evaluator{Now: time.Now}
}

// RequiresPreviousPolicyDetails evaluates the rule at the evaluator's current time.
func (e *Evaluator) RequiresPreviousPolicyDetails(pd models.PolicyDetails) bool {
	clock := e.Now
	if clock == nil {
		clock = time.Now
	}
	return RequiresPreviousPolicyDetails(pd, clock())
}

// RequiresPreviousPolicyDetails reports whether the previous-policy stage applies
// to pd at instant at. A year of manufacture that is not an integer never qualifies.
func RequiresPreviousPolicyDetails(pd models.PolicyDetails, at time.Time) bool {
	if normalize(pd.PolicyType) != models.PolicyTypeGenMotor ||
		normalize(pd.PolicyFor) != models.PolicyForRollover ||
		normalize(pd.VehicleClass) != models.VehicleClassPrivate {
		return false
	}
	switch normalize(pd.VehicleType) {
	case models.VehicleTypePrivate, models.VehicleTypePrivateCar:
	default:
		return false
	}

	year, err := strconv.Atoi(strings.TrimSpace(pd.YearOfManufacture))
	if err != nil {
		return false
	}

	ageInDays, ageInYears := age(year, at)

	switch normalize(pd.PolicyTerm) {
	case models.PolicyTermSAOD:
		return ageInYears > saodMinAgeInYears && ageInYears < saodMaxAgeInYears
	case models.PolicyTermComp1, models.PolicyTermComp2, models.PolicyTermComp3:
		return ageInDays > compMinAgeInDays && ageInYears < compMaxAgeInYears
	}
	return false
}

// age measures from Jan 1 of the manufacture year. Years are always derived
// from days so both thresholds share one instant.
func age(year int, at time.Time) (days, years float64) {
	jan1 := now.With(at).BeginningOfYear().AddDate(year-at.Year(), 0, 0)
	days = at.Sub(jan1).Hours() / hoursPerDay
	return days, days / daysPerYear
}

func normalize(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}
