// Package reminder plans and delivers notifications ahead of event occurrences.
package reminder

import (
	"log/slog"
	"sort"
	"time"

	"github.com/example/milestone-calendar/internal/recurrence"
)

// Lead times added by event attributes, in minutes.
const (
	highPriorityShortLead = 5
	highPriorityLead      = 15
	oneDayLead            = 24 * 60
	oneWeekLead           = 7 * 24 * 60
	lowPriorityMinLead    = 60
	sameDayHour           = 9
)

// maxLookahead bounds how many occurrences a plan may skip because every
// reminder for them already lies in the past.
const maxLookahead = 64

// Event is the part of a calendar event the scheduler needs.
type Event struct {
	ID              int64
	Title           string
	Category        string
	Priority        string
	ReminderMinutes *int
	Deleted         bool
	Series          recurrence.Series
}

// Preferences holds the household-wide reminder defaults.
type Preferences struct {
	// LeadMinutes are applied to every event on top of its own reminder_minutes.
	LeadMinutes []int
}

// Planned is one reminder the planner wants delivered.
type Planned struct {
	FireTime    time.Time
	LeadMinutes int
	Occurrence  time.Time
}

// Planner computes reminder plans against the next occurrence of an event.
type Planner struct {
	engine *recurrence.Engine
}

// NewPlanner returns a Planner. A nil logger falls back to slog.Default.
func NewPlanner(logger *slog.Logger) *Planner {
	return &Planner{engine: recurrence.NewEngine(logger)}
}

// Plan is a convenience wrapper around a default Planner.
func Plan(event Event, prefs Preferences, now time.Time) []Planned {
	return NewPlanner(nil).Plan(event, prefs, now)
}

// Plan returns the reminders for the next occurrence of event at or after now
// that still has a reminder ahead of now, deduplicated by fire time and
// ordered ascending. Fire times before now are dropped.
func (p *Planner) Plan(event Event, prefs Preferences, now time.Time) []Planned {
	return p.plan(event, prefs, now, now)
}

// PlanAfter is Plan restricted to occurrences strictly after the given one.
// The scheduler uses it to move a recurring event on once the reminders for
// an occurrence have gone out.
func (p *Planner) PlanAfter(event Event, prefs Preferences, now, after time.Time) []Planned {
	return p.plan(event, prefs, now, after.Add(time.Nanosecond))
}

func (p *Planner) plan(event Event, prefs Preferences, now, from time.Time) []Planned {
	if event.Deleted {
		return nil
	}
	if from.Before(now) {
		from = now
	}
	leads := leadsFor(event, prefs)
	if len(leads) == 0 {
		return nil
	}
	for i := 0; i < maxLookahead; i++ {
		occ, ok, _ := p.engine.NextOnOrAfter(event.Series, from)
		if !ok {
			return nil
		}
		if plan := planOccurrence(event, leads, now, occ.Date); len(plan) > 0 {
			return plan
		}
		if !event.Series.Recurring {
			return nil
		}
		from = occ.Date.Add(time.Nanosecond)
	}
	return nil
}

func leadsFor(event Event, prefs Preferences) map[int]struct{} {
	leads := make(map[int]struct{})
	for _, lead := range prefs.LeadMinutes {
		leads[lead] = struct{}{}
	}
	if event.ReminderMinutes != nil {
		leads[*event.ReminderMinutes] = struct{}{}
	}
	if event.Priority == "high" {
		leads[highPriorityShortLead] = struct{}{}
		leads[highPriorityLead] = struct{}{}
		leads[oneDayLead] = struct{}{}
	}
	if isSpecialCategory(event.Category) {
		leads[oneDayLead] = struct{}{}
		leads[oneWeekLead] = struct{}{}
	}
	return leads
}

func planOccurrence(event Event, leads map[int]struct{}, now, at time.Time) []Planned {
	special := isSpecialCategory(event.Category)
	byFire := make(map[int64]Planned)
	for lead := range leads {
		if lead < 0 {
			continue
		}
		if event.Priority == "low" && lead < lowPriorityMinLead {
			continue
		}
		fire := at.Add(-time.Duration(lead) * time.Minute)
		if fire.Before(now) {
			continue
		}
		add(byFire, Planned{FireTime: fire, LeadMinutes: lead, Occurrence: at})
	}

	if event.Priority == "high" || special {
		local := at.In(recurrence.Location(event.Series.Timezone))
		morning := time.Date(local.Year(), local.Month(), local.Day(), sameDayHour, 0, 0, 0, local.Location())
		if morning.After(now) {
			lead := int(at.Sub(morning) / time.Minute)
			add(byFire, Planned{FireTime: morning, LeadMinutes: lead, Occurrence: at})
		}
	}

	plan := make([]Planned, 0, len(byFire))
	for _, planned := range byFire {
		plan = append(plan, planned)
	}
	sort.Slice(plan, func(i, j int) bool {
		return plan[i].FireTime.Before(plan[j].FireTime)
	})
	return plan
}

// add keeps the first entry per instant; an equal fire time from a larger
// lead never displaces an existing one.
func add(byFire map[int64]Planned, planned Planned) {
	key := planned.FireTime.UnixNano()
	if existing, ok := byFire[key]; ok && existing.LeadMinutes <= planned.LeadMinutes {
		return
	}
	byFire[key] = planned
}

func isSpecialCategory(category string) bool {
	return category == "anniversary" || category == "birthday"
}
