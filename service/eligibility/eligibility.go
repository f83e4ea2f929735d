// Package eligibility decides whether a volunteer application is confirmed on
// the spot or left for the business owner to review.
//
// Everything here is pure: callers load the volunteer, the opportunity and the
// volunteer's active bookings, and persist whatever the Decision says.
package eligibility

import (
	"errors"
	"fmt"
	"time"
)

// ErrOpportunityFull is returned when every slot of a limited opportunity is taken.
var ErrOpportunityFull = errors.New("this opportunity is already full")

// Policy controls whether auto-approval needs the opportunity to opt in.
type Policy string

const (
	// PolicyAlways auto-approves whenever the age and hours checks pass.
	PolicyAlways Policy = "always"
	// PolicyOptIn additionally requires Opportunity.AutoAccept.
	PolicyOptIn Policy = "opt_in"
)

// ParsePolicy accepts "always" and "opt_in".
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyAlways, PolicyOptIn:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown auto-approve policy %q", s)
}

type Volunteer struct {
	// Age is nil when the volunteer never recorded one.
	Age *int
	// MonthlyHours is the budget for the month of the request, after
	// applying any per-month override.
	MonthlyHours int
}

type Opportunity struct {
	SlotsNeeded    int
	SlotsFilled    int
	MinAge         int
	BusinessMinAge int
	AutoAccept     bool
}

type Request struct {
	Hours     int
	StartDate time.Time
}

// Booking is an existing confirmed or in-progress commitment.
type Booking struct {
	Hours     int
	StartDate time.Time
}

type Decision struct {
	Approved        bool
	MeetsAge        bool
	HasHours        bool
	EffectiveMinAge int
	ScheduledHours  int
	HoursAvailable  int
	// ReserveSlot is set when the approval must take a capacity slot.
	ReserveSlot bool
}

// Full reports whether a limited opportunity has no free slot.
func Full(slotsNeeded, slotsFilled int) bool {
	return slotsNeeded > 0 && slotsFilled >= slotsNeeded
}

// EffectiveMinAge resolves the per-opportunity override against the business default.
func EffectiveMinAge(opportunityMinAge, businessMinAge int) int {
	if opportunityMinAge > 0 {
		return opportunityMinAge
	}
	return businessMinAge
}

// MeetsAge treats a missing age as failing any non-zero minimum.
func MeetsAge(age *int, minAge int) bool {
	if minAge == 0 {
		return true
	}
	return age != nil && *age >= minAge
}

// SameMonth compares calendar year and month in UTC.
func SameMonth(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// ScheduledHours sums the hours of bookings starting in the same calendar month as month.
func ScheduledHours(bookings []Booking, month time.Time) int {
	total := 0
	for _, b := range bookings {
		if b.StartDate.IsZero() {
			continue
		}
		if SameMonth(b.StartDate, month) {
			total += b.Hours
		}
	}
	return total
}

// Evaluate runs the capacity, age and hours checks in that order. A full
// opportunity is an error; every other outcome is a Decision.
func Evaluate(policy Policy, v Volunteer, opp Opportunity, req Request, existing []Booking) (Decision, error) {
	if Full(opp.SlotsNeeded, opp.SlotsFilled) {
		return Decision{}, ErrOpportunityFull
	}

	d := Decision{EffectiveMinAge: EffectiveMinAge(opp.MinAge, opp.BusinessMinAge)}
	d.MeetsAge = MeetsAge(v.Age, d.EffectiveMinAge)

	d.ScheduledHours = ScheduledHours(existing, req.StartDate)
	d.HoursAvailable = v.MonthlyHours - d.ScheduledHours
	d.HasHours = d.HoursAvailable >= req.Hours

	d.Approved = d.MeetsAge && d.HasHours
	if policy == PolicyOptIn && !opp.AutoAccept {
		d.Approved = false
	}
	d.ReserveSlot = d.Approved && opp.SlotsNeeded > 0

	return d, nil
}
