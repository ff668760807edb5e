package band

import (
	"fmt"
	"time"
)

// MaxUpcoming bounds the number of dates Upcoming and Between will produce.
const MaxUpcoming = 120

// Upcoming returns the next n withdrawal dates: the resolved date followed
// by the anchor day of each following month.
func Upcoming(cfg Config, today Date, n int) ([]Date, error) {
	if n <= 0 {
		return nil, nil
	}
	if n > MaxUpcoming {
		return nil, fmt.Errorf("%w: count %d exceeds %d", ErrInvalidConfiguration, n, MaxUpcoming)
	}

	first, err := Resolve(cfg, today)
	if err != nil {
		return nil, err
	}

	dates := make([]Date, 0, n)
	dates = append(dates, first)
	for len(dates) < n {
		next, err := roll(cfg, dates[len(dates)-1])
		if err != nil {
			return dates, err
		}
		dates = append(dates, next)
	}
	return dates, nil
}

// Between returns the withdrawal dates that fall inside period, resolving
// the first one as seen on today.
func Between(cfg Config, today Date, period Period) ([]Date, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("%w: period %s ends before it starts", ErrInvalidConfiguration, period)
	}

	date, err := Resolve(cfg, today)
	if err != nil {
		return nil, err
	}

	var dates []Date
	for date.BeforeOrEqual(period.End) {
		if period.Contains(date) {
			dates = append(dates, date)
		}
		if len(dates) == MaxUpcoming {
			break
		}
		if date, err = roll(cfg, date); err != nil {
			return dates, err
		}
	}
	return dates, nil
}

// leadCycle spans a leap year and the year after it, so every month length
// and weekday alignment is seen at least once.
var leadCycle = Period{Start: NewDate(2020, time.January, 1), End: NewDate(2021, time.December, 31)}

// Lead returns the smallest gap, in days, between a reference day and the
// withdrawal it resolves to. A withdrawal is never due sooner than Lead days
// ahead, so schedulers must look at least that far.
func Lead(cfg Config) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	lead := -1
	for day := leadCycle.Start; day.BeforeOrEqual(leadCycle.End); day = day.AddDays(1) {
		next, err := Resolve(cfg, day)
		if err != nil {
			continue
		}
		if gap := DaysBetween(day, next); lead < 0 || gap < lead {
			lead = gap
		}
	}
	if lead < 0 {
		return 0, &OverflowError{Year: leadCycle.Start.Year(), Month: leadCycle.Start.Month(), Day: cfg.AnchorDay}
	}
	return lead, nil
}
