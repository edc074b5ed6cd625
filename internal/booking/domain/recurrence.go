package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/teambition/rrule-go"
)

// DefaultMaxOccurrences caps how many dates one pattern may expand to.
const DefaultMaxOccurrences = 260

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// TimeOfDay is a wall-clock start time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("time of day %q: expected HH:MM", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown day of week %q", s)
	}
	return wd, nil
}

var rruleWeekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// RecurrencePatternParams is the unvalidated pattern input.
type RecurrencePatternParams struct {
	DayOfWeek       string
	TimeOfDay       string
	DurationMinutes int
	IntervalStart   string
	IntervalEnd     string
	SkipDates       []string
	Location        string
}

// RecurrencePattern is a validated weekly pattern. It is a value type and
// owns its skip set, so it cannot change once expansion starts.
type RecurrencePattern struct {
	dayOfWeek     time.Weekday
	timeOfDay     TimeOfDay
	duration      time.Duration
	intervalStart time.Time
	intervalEnd   time.Time
	skipDates     map[string]struct{}
	location      *time.Location
}

// NewRecurrencePattern validates params. Every failure is a ValidationError.
func NewRecurrencePattern(p RecurrencePatternParams) (RecurrencePattern, error) {
	invalid := func(field string, err error) (RecurrencePattern, error) {
		return RecurrencePattern{}, sharedDomain.NewValidationError(field, err.Error())
	}

	loc := time.UTC
	if p.Location != "" {
		l, err := time.LoadLocation(p.Location)
		if err != nil {
			return invalid("location", err)
		}
		loc = l
	}
	wd, err := ParseWeekday(p.DayOfWeek)
	if err != nil {
		return invalid("dayOfWeek", err)
	}
	tod, err := ParseTimeOfDay(p.TimeOfDay)
	if err != nil {
		return invalid("timeOfDay", err)
	}
	if p.DurationMinutes <= 0 {
		return invalid("durationMinutes", fmt.Errorf("must be positive"))
	}
	start, err := time.Parse(DateLayout, p.IntervalStart)
	if err != nil {
		return invalid("intervalStart", fmt.Errorf("expected YYYY-MM-DD"))
	}
	end, err := time.Parse(DateLayout, p.IntervalEnd)
	if err != nil {
		return invalid("intervalEnd", fmt.Errorf("expected YYYY-MM-DD"))
	}
	if end.Before(start) {
		return invalid("intervalEnd", fmt.Errorf("must not be before intervalStart"))
	}

	skips := make(map[string]struct{}, len(p.SkipDates))
	for _, d := range p.SkipDates {
		parsed, err := time.Parse(DateLayout, d)
		if err != nil {
			return invalid("skipDates", fmt.Errorf("%q: expected YYYY-MM-DD", d))
		}
		skips[parsed.Format(DateLayout)] = struct{}{}
	}

	return RecurrencePattern{
		dayOfWeek:     wd,
		timeOfDay:     tod,
		duration:      time.Duration(p.DurationMinutes) * time.Minute,
		intervalStart: start,
		intervalEnd:   end,
		skipDates:     skips,
		location:      loc,
	}, nil
}

func (p RecurrencePattern) DayOfWeek() time.Weekday  { return p.dayOfWeek }
func (p RecurrencePattern) TimeOfDay() TimeOfDay     { return p.timeOfDay }
func (p RecurrencePattern) Duration() time.Duration  { return p.duration }
func (p RecurrencePattern) Location() *time.Location { return p.location }

// SkipDates returns the skip set as sorted date strings.
func (p RecurrencePattern) SkipDates() []string {
	out := make([]string, 0, len(p.skipDates))
	for d := range p.skipDates {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// IsSkipped reports whether the calendar date was excluded by the caller.
func (p RecurrencePattern) IsSkipped(date time.Time) bool {
	_, ok := p.skipDates[date.Format(DateLayout)]
	return ok
}

// CandidateDates returns every matching weekday from the first one on or
// after IntervalStart through IntervalEnd inclusive, in order. Dates are
// midnight UTC values carrying the local calendar date.
func (p RecurrencePattern) CandidateDates(maxOccurrences int) ([]time.Time, error) {
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}
	// Any inclusive run of 7k days holds k of each weekday, so this bound
	// never rejects a pattern the exact count below would accept.
	spanDays := int(p.intervalEnd.Sub(p.intervalStart).Hours() / 24)
	if (spanDays+1)/7 > maxOccurrences {
		return nil, sharedDomain.NewValidationError("intervalEnd",
			fmt.Sprintf("pattern spans more than %d occurrences", maxOccurrences))
	}

	dtstart := p.localAt(p.intervalStart)
	until := p.localAt(p.intervalEnd)
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   dtstart,
		Until:     until,
		Byweekday: []rrule.Weekday{rruleWeekdays[p.dayOfWeek]},
	})
	if err != nil {
		return nil, fmt.Errorf("build recurrence rule: %w", err)
	}

	occurrences := rule.All()
	dates := make([]time.Time, 0, len(occurrences))
	for _, t := range occurrences {
		local := t.In(p.location)
		dates = append(dates, time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC))
	}
	if len(dates) > maxOccurrences {
		return nil, sharedDomain.NewValidationError("intervalEnd",
			fmt.Sprintf("pattern spans more than %d occurrences", maxOccurrences))
	}
	return dates, nil
}

// WindowFor composes the occurrence window on a calendar date in the
// pattern's location.
func (p RecurrencePattern) WindowFor(date time.Time) TimeWindow {
	start := p.localAt(date)
	return TimeWindow{Start: start.UTC(), End: start.Add(p.duration).UTC()}
}

func (p RecurrencePattern) localAt(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(),
		p.timeOfDay.Hour, p.timeOfDay.Minute, 0, 0, p.location)
}

// FormatDate renders a calendar date.
func FormatDate(date time.Time) string {
	return date.Format(DateLayout)
}
