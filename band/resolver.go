/*
resolver.go - Next withdrawal date resolution

ALGORITHM:
  1. Candidate: the anchor day in today's month, or in the next month when
     the anchor day is already behind today.
  2. Gap: whole days from today to the candidate (never negative).
  3. Decision, per band type:
       fixed_day        roll when today's day >= threshold, or when
                        today's day <= threshold and the candidate is in
                        today's month
       calendar/franc   roll when gap <= width
       working days     roll when gap <= width, otherwise convert the
                        working-day width into calendar days and roll when
                        fewer calendar weeks remain than the band needs or
                        the gap does not clear the converted width
  4. A roll moves the candidate exactly one month forward, once. The rolled
     date is not checked again.

PURITY:
  Resolve and Explain keep no state between calls. A Config can be shared
  by any number of goroutines.
*/
package band

import "time"

// Rule names the branch that decided a resolution.
type Rule string

const (
	RuleAccepted            Rule = "accepted"
	RuleGapWithinBand       Rule = "gap_within_band"
	RuleFixedDayThreshold   Rule = "fixed_day_threshold"
	RuleFixedDaySameMonth   Rule = "fixed_day_same_month"
	RuleWorkingWeeksShort   Rule = "working_weeks_short"
	RuleWorkingBandCalendar Rule = "working_band_calendar"
)

// Rolls reports whether the rule pushes the candidate one month forward.
func (r Rule) Rolls() bool { return r != RuleAccepted }

// Resolution is the outcome of one resolution together with how it was reached.
type Resolution struct {
	Reference Date // "today"
	Candidate Date // anchor date before any roll
	Date      Date // next eligible withdrawal date
	Gap       int  // days from Reference to Candidate
	Rolled    bool
	Rule      Rule
}

// Resolve returns the next eligible withdrawal date for cfg as seen on today.
func Resolve(cfg Config, today Date) (Date, error) {
	res, err := Explain(cfg, today)
	if err != nil {
		return Date{}, err
	}
	return res.Date, nil
}

// Explain resolves like Resolve and reports the candidate, gap and deciding rule.
func Explain(cfg Config, today Date) (Resolution, error) {
	if err := cfg.Validate(); err != nil {
		return Resolution{}, err
	}

	ref := DateOf(today.Time)
	candidate, err := firstCandidate(cfg, ref)
	if err != nil {
		return Resolution{}, err
	}

	gap := DaysBetween(ref, candidate)
	rule := decide(cfg, ref, candidate, gap)

	res := Resolution{
		Reference: ref,
		Candidate: candidate,
		Date:      candidate,
		Gap:       gap,
		Rule:      rule,
	}
	if rule.Rolls() {
		if res.Date, err = roll(cfg, candidate); err != nil {
			return Resolution{}, err
		}
		res.Rolled = true
	}
	return res, nil
}

// firstCandidate returns the anchor date on or after ref.
func firstCandidate(cfg Config, ref Date) (Date, error) {
	if cfg.AnchorDay < ref.Day() {
		year, month := AdvanceMonth(ref)
		return anchorIn(cfg, year, month)
	}
	return anchorIn(cfg, ref.Year(), ref.Month())
}

// roll moves a candidate one month forward on the anchor day.
func roll(cfg Config, candidate Date) (Date, error) {
	year, month := AdvanceMonth(candidate)
	return anchorIn(cfg, year, month)
}

// anchorIn builds the anchor date of a month, applying the overflow policy.
func anchorIn(cfg Config, year int, month time.Month) (Date, error) {
	if ValidDay(year, month, cfg.AnchorDay) {
		return NewDate(year, month, cfg.AnchorDay), nil
	}
	if cfg.overflowPolicy() == OverflowClamp {
		return NewDate(year, month, DaysIn(year, month)), nil
	}
	return Date{}, &OverflowError{Year: year, Month: month, Day: cfg.AnchorDay}
}

func decide(cfg Config, ref, candidate Date, gap int) Rule {
	if cfg.Type == FixedDay {
		return decideFixedDay(cfg, ref, candidate)
	}

	if gap <= cfg.Width {
		return RuleGapWithinBand
	}

	if perWeek := cfg.Type.WorkingDaysPerWeek(); perWeek > 0 {
		return convertWorkingBand(cfg.Width, gap, perWeek)
	}
	return RuleAccepted
}

func decideFixedDay(cfg Config, ref, candidate Date) Rule {
	threshold := cfg.Width
	switch {
	case ref.Day() >= threshold:
		return RuleFixedDayThreshold
	case ref.Day() <= threshold && ref.Year() == candidate.Year() && ref.Month() == candidate.Month():
		return RuleFixedDaySameMonth
	default:
		return RuleAccepted
	}
}

// convertWorkingBand converts a working-day width into its calendar-day
// footprint and checks the gap against it.
func convertWorkingBand(width, gap, perWeek int) Rule {
	calendarWeeks := gap / 7
	bandWeeks := width / perWeek
	extraDays := width % perWeek
	bandCalendarDays := bandWeeks*7 + extraDays

	if calendarWeeks < bandWeeks {
		return RuleWorkingWeeksShort
	}
	if gap <= bandCalendarDays {
		return RuleWorkingBandCalendar
	}
	return RuleAccepted
}

// =============================================================================
// RESOLVER - Resolution against an injected clock
// =============================================================================

// Clock returns the current instant.
type Clock func() time.Time

// Resolver resolves against its Clock when no reference date is given.
// It holds no per-call state.
type Resolver struct {
	Clock Clock
}

// NewResolver returns a Resolver reading the system clock.
func NewResolver() *Resolver {
	return &Resolver{Clock: time.Now}
}

// Today returns the UTC calendar day of the clock.
func (r *Resolver) Today() Date {
	if r == nil || r.Clock == nil {
		return Today()
	}
	return DateOf(r.Clock().UTC())
}

// Next resolves cfg as seen on the clock's current date.
func (r *Resolver) Next(cfg Config) (Date, error) {
	return Resolve(cfg, r.Today())
}

// Explain resolves cfg against the clock and reports how.
func (r *Resolver) Explain(cfg Config) (Resolution, error) {
	return Explain(cfg, r.Today())
}
