/*
Package band resolves the next date on which a recurring direct-debit
withdrawal may be executed.

KEY CONCEPTS:
  - Anchor day: the day of month on which the withdrawal nominally falls
  - Band: the minimum buffer between "today" and the withdrawal, either a
    number of days or, for fixed-day bands, a day-of-month threshold
  - Roll: moving a candidate exactly one month forward, keeping its day

BAND TYPES:
  working_days_six   Monday to Saturday count ("jours ouvrables")
  working_days_five  Monday to Friday count ("jours ouvrés")
  calendar_days      every day counts ("jours calendaires")
  franc_days         whole 24h days only ("jours francs")
  fixed_day          width is the day of month after which the
                     withdrawal moves one more month ("jours fixes")

USAGE:
  cfg := band.Config{Type: band.WorkingDaysSix, Width: 8, AnchorDay: 5}
  date, err := band.Resolve(cfg, band.NewDate(2018, time.December, 4))
  // date == 2019-01-05

SEE ALSO:
  - resolver.go: The resolution algorithm
  - schedule.go: Upcoming withdrawal dates
*/
package band

import (
	"strconv"
	"strings"
)

// =============================================================================
// BAND TYPE - Closed enumeration of banding rules
// =============================================================================

type BandType string

const (
	WorkingDaysSix  BandType = "working_days_six"
	WorkingDaysFive BandType = "working_days_five"
	CalendarDays    BandType = "calendar_days"
	FrancDays       BandType = "franc_days"
	FixedDay        BandType = "fixed_day"
)

// BandTypes lists every band type in their historical code order (1..5).
var BandTypes = []BandType{WorkingDaysSix, WorkingDaysFive, CalendarDays, FrancDays, FixedDay}

var labels = map[BandType]string{
	WorkingDaysSix:  "Jours ouvrables",
	WorkingDaysFive: "Jours ouvrés",
	CalendarDays:    "Jours calendaires",
	FrancDays:       "Jours francs",
	FixedDay:        "Jours fixes",
}

// Valid reports whether t is one of the five band types.
func (t BandType) Valid() bool {
	_, ok := labels[t]
	return ok
}

// Label returns the French name used on mandates and bank documents.
func (t BandType) Label() string { return labels[t] }

// Code returns the legacy numeric code (1..5), or 0 for an unknown type.
func (t BandType) Code() int {
	for i, bt := range BandTypes {
		if bt == t {
			return i + 1
		}
	}
	return 0
}

// WorkingDaysPerWeek returns 6 or 5 for the working-day bands, 0 otherwise.
func (t BandType) WorkingDaysPerWeek() int {
	switch t {
	case WorkingDaysSix:
		return 6
	case WorkingDaysFive:
		return 5
	default:
		return 0
	}
}

// WidthMeaning tells how Config.Width is read for this band type.
func (t BandType) WidthMeaning() WidthMeaning {
	if t == FixedDay {
		return WidthDayOfMonth
	}
	return WidthDayCount
}

// ParseBandType accepts the canonical names, the French labels and the
// legacy numeric codes 1..5.
func ParseBandType(s string) (BandType, error) {
	s = strings.TrimSpace(s)
	if bt := BandType(strings.ToLower(s)); bt.Valid() {
		return bt, nil
	}
	for bt, label := range labels {
		if strings.EqualFold(label, s) {
			return bt, nil
		}
	}
	// "Jours fixe" is spelled without the s on older mandates
	if strings.EqualFold(s, "Jours fixe") {
		return FixedDay, nil
	}
	if code, err := strconv.Atoi(s); err == nil && code >= 1 && code <= len(BandTypes) {
		return BandTypes[code-1], nil
	}
	return "", &ConfigError{Field: "band_type", Value: s, Reason: "unknown band type"}
}

// WidthMeaning makes explicit what the band width counts.
type WidthMeaning string

const (
	WidthDayCount   WidthMeaning = "day_count"
	WidthDayOfMonth WidthMeaning = "day_of_month"
)

// =============================================================================
// OVERFLOW POLICY - Anchor days that a month does not have
// =============================================================================

type OverflowPolicy string

const (
	// OverflowReject fails with ErrDateOverflow (default).
	OverflowReject OverflowPolicy = "reject"
	// OverflowClamp moves the withdrawal to the last day of the short month.
	OverflowClamp OverflowPolicy = "clamp"
)

// ParseOverflowPolicy maps "" to OverflowReject.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch p := OverflowPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return OverflowReject, nil
	case OverflowReject, OverflowClamp:
		return p, nil
	default:
		return "", &ConfigError{Field: "overflow", Value: s, Reason: "expected reject or clamp"}
	}
}

// =============================================================================
// CONFIG - Immutable band definition, reusable across resolutions
// =============================================================================

// Config is the band definition attached to a mandate.
type Config struct {
	Type BandType

	// Width is a day count for the four day-counting bands and a
	// day-of-month threshold for FixedDay. See BandType.WidthMeaning.
	Width int

	// AnchorDay is the nominal day of month of the withdrawal, 1..31.
	AnchorDay int

	// Overflow decides what happens when AnchorDay is missing from a month.
	// Zero value behaves as OverflowReject.
	Overflow OverflowPolicy
}

// Validate checks the Config before any date arithmetic.
func (c Config) Validate() error {
	if !c.Type.Valid() {
		return &ConfigError{Field: "band_type", Value: string(c.Type), Reason: "unknown band type"}
	}
	if c.Width < 0 {
		return &ConfigError{Field: "band_width", Value: c.Width, Reason: "must not be negative"}
	}
	if c.Type.WidthMeaning() == WidthDayOfMonth && c.Width > 31 {
		return &ConfigError{Field: "band_width", Value: c.Width, Reason: "day-of-month threshold must be within 0..31"}
	}
	if c.AnchorDay < 1 || c.AnchorDay > 31 {
		return &ConfigError{Field: "anchor_day", Value: c.AnchorDay, Reason: "must be within 1..31"}
	}
	switch c.Overflow {
	case "", OverflowReject, OverflowClamp:
	default:
		return &ConfigError{Field: "overflow", Value: string(c.Overflow), Reason: "expected reject or clamp"}
	}
	return nil
}

func (c Config) overflowPolicy() OverflowPolicy {
	if c.Overflow == "" {
		return OverflowReject
	}
	return c.Overflow
}
