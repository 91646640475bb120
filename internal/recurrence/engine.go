package recurrence

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyUnspecified indicates the rule frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily repeats every interval days.
	FrequencyDaily
	// FrequencyWeekly repeats every interval weeks, optionally on selected weekdays.
	FrequencyWeekly
	// FrequencyMonthly repeats every interval months on the anchor or configured day.
	FrequencyMonthly
	// FrequencyYearly repeats every interval years on the anchor's month and day.
	FrequencyYearly
)

const (
	// MinInterval and MaxInterval bound Rule.Interval.
	MinInterval = 1
	MaxInterval = 365
	// MaxIterations is the hard ceiling on generated candidates per calculation.
	MaxIterations = 10000
	// DefaultMaxResults applies when callers pass a non-positive result cap.
	DefaultMaxResults = 100
	// NextOccurrenceHorizon bounds the lookahead used by Next.
	NextOccurrenceHorizon = 2
)

var frequencyNames = map[Frequency]string{
	FrequencyDaily:   "daily",
	FrequencyWeekly:  "weekly",
	FrequencyMonthly: "monthly",
	FrequencyYearly:  "yearly",
}

// String returns the wire name of the frequency.
func (f Frequency) String() string {
	if name, ok := frequencyNames[f]; ok {
		return name
	}
	return "unspecified"
}

// ParseFrequency converts a wire name into a Frequency.
func ParseFrequency(value string) (Frequency, error) {
	for freq, name := range frequencyNames {
		if name == value {
			return freq, nil
		}
	}
	return FrequencyUnspecified, fmt.Errorf("%w: %q", ErrInvalidFrequency, value)
}

// Rule describes how an event repeats.
type Rule struct {
	Frequency Frequency
	Interval  int
	// EndDate is inclusive by calendar day, read in EndDate's own location.
	EndDate *time.Time
	// MaxOccurrences of zero means unbounded.
	MaxOccurrences int
	// DaysOfWeek is honoured for weekly rules only.
	DaysOfWeek []time.Weekday
	// DayOfMonth of zero keeps the anchor's day for monthly rules.
	DayOfMonth int
}

// Series is the recurrence view of a single event.
type Series struct {
	EventID   int64
	Anchor    time.Time
	Timezone  string
	Recurring bool
	Rule      *Rule
}

// Occurrence represents one concrete instance of a series.
type Occurrence struct {
	ID         string
	EventID    int64
	Date       time.Time
	IsOriginal bool
	Index      int
}

// Result carries the occurrences emitted for a window.
type Result struct {
	Occurrences   []Occurrence
	LimitExceeded bool
}

// ErrInvalidFrequency indicates the recurrence frequency is not supported.
var ErrInvalidFrequency = errors.New("recurrence: invalid frequency")

// ErrInvalidWindow indicates the window end precedes its start.
var ErrInvalidWindow = errors.New("recurrence: window end precedes window start")

// ErrCalculationLimit indicates the iteration ceiling stopped generation early.
// It is returned together with the partial result.
var ErrCalculationLimit = errors.New("recurrence: calculation limit exceeded")

// endOfTime is a window end no calendar event reaches.
var endOfTime = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

var occurrenceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("milestones://occurrences"))

// OccurrenceID returns the stable identifier of the index-th occurrence of an event.
func OccurrenceID(eventID int64, index int) string {
	return uuid.NewSHA1(occurrenceNamespace, []byte(fmt.Sprintf("%d/%d", eventID, index))).String()
}

// Engine expands series into occurrences.
type Engine struct {
	logger        *slog.Logger
	maxIterations int
}

// NewEngine constructs an Engine. A nil logger falls back to slog.Default.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger, maxIterations: MaxIterations}
}

// Location resolves an IANA zone name, falling back to UTC when unknown.
func Location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Occurrences expands the series within the inclusive window [windowStart, windowEnd].
//
// Candidates are generated from the anchor in order. Generation stops when the
// candidate passes the rule's end date, the rule's occurrence count is used up,
// the candidate passes windowEnd, or MaxIterations candidates were generated.
// Candidates before windowStart are generated and counted but not emitted.
// Hitting MaxIterations returns the partial result along with ErrCalculationLimit.
func (e *Engine) Occurrences(series Series, windowStart, windowEnd time.Time, maxResults int) (Result, error) {
	if e == nil {
		return Result{}, fmt.Errorf("recurrence engine is nil")
	}
	if windowEnd.Before(windowStart) {
		return Result{}, ErrInvalidWindow
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	loc := Location(series.Timezone)
	anchor := series.Anchor.In(loc)

	if !series.Recurring || series.Rule == nil {
		if inWindow(anchor, windowStart, windowEnd) {
			return Result{Occurrences: []Occurrence{newOccurrence(series.EventID, anchor, 0)}}, nil
		}
		return Result{}, nil
	}

	rule := *series.Rule
	step := stepper(rule, anchor)
	if step == nil {
		// A rule that slipped past validation yields the anchor only.
		if inWindow(anchor, windowStart, windowEnd) {
			return Result{Occurrences: []Occurrence{newOccurrence(series.EventID, anchor, 0)}}, nil
		}
		return Result{}, nil
	}

	var endBound time.Time
	hasEnd := rule.EndDate != nil
	if hasEnd {
		// The end date is a calendar day; its own location decides which one.
		y, m, d := rule.EndDate.Date()
		endBound = time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	}

	result := Result{}
	current := anchor
	for index := 0; ; index++ {
		if hasEnd && !current.Before(endBound) {
			break
		}
		if rule.MaxOccurrences > 0 && index >= rule.MaxOccurrences {
			break
		}
		if current.After(windowEnd) {
			break
		}
		if index >= e.maxIterations {
			result.LimitExceeded = true
			e.logger.Warn("recurrence calculation limit exceeded",
				"event_id", series.EventID,
				"frequency", rule.Frequency.String(),
				"interval", rule.Interval,
				"iterations", index,
				"emitted", len(result.Occurrences),
			)
			return result, ErrCalculationLimit
		}

		if !current.Before(windowStart) {
			result.Occurrences = append(result.Occurrences, newOccurrence(series.EventID, current, index))
			if len(result.Occurrences) >= maxResults {
				break
			}
		}

		current = step(current, index+1)
	}

	return result, nil
}

// Next returns the first occurrence strictly after reference, looking ahead
// NextOccurrenceHorizon years. The boolean is false when none exists.
func (e *Engine) Next(series Series, reference time.Time) (Occurrence, bool, error) {
	res, err := e.Occurrences(series, reference, reference.AddDate(NextOccurrenceHorizon, 0, 0), 10)
	for _, occ := range res.Occurrences {
		if occ.Date.After(reference) {
			return occ, true, err
		}
	}
	return Occurrence{}, false, err
}

// NextOnOrAfter returns the first occurrence at or after reference. Unlike
// Next it has no lookahead horizon; only MaxIterations bounds the search.
func (e *Engine) NextOnOrAfter(series Series, reference time.Time) (Occurrence, bool, error) {
	res, err := e.Occurrences(series, reference, endOfTime, 1)
	if len(res.Occurrences) == 0 {
		return Occurrence{}, false, err
	}
	return res.Occurrences[0], true, err
}

// OccursWithin reports whether any occurrence of the series lands in the window.
func (e *Engine) OccursWithin(series Series, windowStart, windowEnd time.Time) (bool, error) {
	res, err := e.Occurrences(series, windowStart, windowEnd, 1)
	return len(res.Occurrences) > 0, err
}

func newOccurrence(eventID int64, date time.Time, index int) Occurrence {
	return Occurrence{
		ID:         OccurrenceID(eventID, index),
		EventID:    eventID,
		Date:       date,
		IsOriginal: index == 0,
		Index:      index,
	}
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// stepper returns a function producing the candidate following current, where
// n is the index of the candidate being produced. It returns nil for rules that
// cannot be expanded.
func stepper(rule Rule, anchor time.Time) func(current time.Time, n int) time.Time {
	if rule.Interval < MinInterval || rule.Interval > MaxInterval {
		return nil
	}
	interval := rule.Interval

	switch rule.Frequency {
	case FrequencyDaily:
		return func(current time.Time, _ int) time.Time {
			return current.AddDate(0, 0, interval)
		}
	case FrequencyWeekly:
		days := normalizeWeekdays(rule.DaysOfWeek)
		if len(days) == 0 {
			return func(current time.Time, _ int) time.Time {
				return current.AddDate(0, 0, 7*interval)
			}
		}
		return func(current time.Time, _ int) time.Time {
			return nextWeekday(current, days, interval)
		}
	case FrequencyMonthly:
		day := rule.DayOfMonth
		if day <= 0 || day > 31 {
			day = anchor.Day()
		}
		// Index k is always the k-th month step after the anchor, so a clamped
		// short month never drags later months down.
		return func(_ time.Time, n int) time.Time {
			return monthStep(anchor, n*interval, day)
		}
	case FrequencyYearly:
		return func(_ time.Time, n int) time.Time {
			return monthStep(anchor, n*interval*12, anchor.Day())
		}
	default:
		return nil
	}
}

// nextWeekday finds the next configured weekday later in the current
// Sunday-start week, or the earliest configured weekday interval weeks on.
func nextWeekday(current time.Time, days []time.Weekday, interval int) time.Time {
	wd := current.Weekday()
	for _, d := range days {
		if d > wd {
			return current.AddDate(0, 0, int(d-wd))
		}
	}
	weekStart := current.AddDate(0, 0, -int(wd))
	return weekStart.AddDate(0, 0, 7*interval+int(days[0]))
}

func normalizeWeekdays(days []time.Weekday) []time.Weekday {
	seen := make(map[time.Weekday]struct{}, len(days))
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// monthStep moves anchor forward by months and places it on day, clamped to
// the last day of the target month. The wall-clock time is preserved.
func monthStep(anchor time.Time, months, day int) time.Time {
	total := int(anchor.Month()) - 1 + months
	year := anchor.Year() + total/12
	month := time.Month(total%12 + 1)
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), anchor.Location())
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
