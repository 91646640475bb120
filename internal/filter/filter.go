// Package filter narrows, orders and pages event result sets. Every function
// is pure and tolerates malformed input.
package filter

import (
	"sort"
	"strings"
	"time"
)

const (
	// DefaultPageSize applies when the requested size is not positive.
	DefaultPageSize = 20
	// MaxPageSize caps the requested size.
	MaxPageSize = 100
)

// Item is the view of an event that filtering needs.
type Item struct {
	ID          int64
	Title       string
	Description string
	Location    string
	Category    string
	Priority    string
	Date        time.Time
	Recurring   bool
	Deleted     bool
}

// RecurringMode controls how recurring items are treated.
type RecurringMode int

const (
	// RecurringInclude keeps recurring and one-off items.
	RecurringInclude RecurringMode = iota
	// RecurringExclude drops recurring items.
	RecurringExclude
	// RecurringOnly keeps only recurring items.
	RecurringOnly
)

// ParseRecurringMode accepts "", "true", "false" and "only".
func ParseRecurringMode(value string) (RecurringMode, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "true", "include":
		return RecurringInclude, true
	case "false", "exclude":
		return RecurringExclude, true
	case "only":
		return RecurringOnly, true
	default:
		return RecurringInclude, false
	}
}

// OccursFunc reports whether a recurring item has an occurrence in [from, to].
type OccursFunc func(item Item, from, to time.Time) bool

// Criteria is the closed set of supported filters. Zero values disable a filter.
type Criteria struct {
	IncludeDeleted bool
	From           *time.Time
	To             *time.Time
	Categories     []string
	Priorities     []string
	Search         string
	Recurring      RecurringMode
	// Occurs windows recurring items whose anchor precedes From. When nil such
	// items are kept as long as their anchor is not after To.
	Occurs OccursFunc
}

// Apply returns the items matching criteria, preserving input order.
// Filters run in a fixed order: deletion, date range, category, priority,
// search, then recurrence.
func Apply(items []Item, criteria Criteria) []Item {
	categories := toSet(criteria.Categories)
	priorities := toSet(criteria.Priorities)

	out := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Deleted && !criteria.IncludeDeleted {
			continue
		}
		if !inWindow(item, criteria) {
			continue
		}
		if len(categories) > 0 && !categories[strings.ToLower(item.Category)] {
			continue
		}
		if len(priorities) > 0 && !priorities[strings.ToLower(item.Priority)] {
			continue
		}
		if !MatchesSearch(item, criteria.Search) {
			continue
		}
		switch criteria.Recurring {
		case RecurringExclude:
			if item.Recurring {
				continue
			}
		case RecurringOnly:
			if !item.Recurring {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}

func inWindow(item Item, criteria Criteria) bool {
	if criteria.From == nil && criteria.To == nil {
		return true
	}
	if item.Date.IsZero() {
		return false
	}
	if criteria.To != nil && item.Date.After(*criteria.To) {
		return false
	}
	if criteria.From == nil || !item.Date.Before(*criteria.From) {
		return true
	}
	if !item.Recurring {
		return false
	}
	if criteria.Occurs == nil {
		return true
	}
	to := farFuture
	if criteria.To != nil {
		to = *criteria.To
	}
	return criteria.Occurs(item, *criteria.From, to)
}

var farFuture = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// MatchesSearch reports whether every whitespace separated token of term
// appears, case-insensitively, in the title, description or location.
// An empty term matches everything.
func MatchesSearch(item Item, term string) bool {
	tokens := strings.Fields(strings.ToLower(term))
	if len(tokens) == 0 {
		return true
	}
	haystack := strings.ToLower(item.Title + "\n" + item.Description + "\n" + item.Location)
	for _, token := range tokens {
		if !strings.Contains(haystack, token) {
			return false
		}
	}
	return true
}

// Order selects the primary sort direction.
type Order int

const (
	// DateAscending lists the soonest first.
	DateAscending Order = iota
	// DateDescending lists the most recent first.
	DateDescending
)

// Sort returns a copy of items ordered by date, then priority rank, then id.
func Sort(items []Item, order Order) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			if order == DateDescending {
				return a.Date.After(b.Date)
			}
			return a.Date.Before(b.Date)
		}
		if ra, rb := PriorityRank(a.Priority), PriorityRank(b.Priority); ra != rb {
			return ra < rb
		}
		return a.ID < b.ID
	})
	return out
}

// PriorityRank orders priorities high < medium < low < unknown.
func PriorityRank(priority string) int {
	switch strings.ToLower(priority) {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 3
	}
}

// NormalizePage clamps a page request into the supported range.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// Paginate returns the requested page and the total number of items.
func Paginate(items []Item, page, size int) ([]Item, int) {
	page, size = NormalizePage(page, size)
	total := len(items)
	start := (page - 1) * size
	if start >= total {
		return []Item{}, total
	}
	end := start + size
	if end > total {
		end = total
	}
	out := make([]Item, end-start)
	copy(out, items[start:end])
	return out, total
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = true
		}
	}
	return set
}
