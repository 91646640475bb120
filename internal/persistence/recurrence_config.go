package persistence

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	recurrenceConfigType    = "recurrence"
	recurrenceConfigVersion = 1
	recurrenceDateLayout    = "2006-01-02"
)

// RecurrenceConfig is the tagged JSON document stored in events.recurrence_config.
type RecurrenceConfig struct {
	Type           string  `json:"type"`
	Version        int     `json:"version"`
	Frequency      string  `json:"frequency"`
	Interval       int     `json:"interval"`
	EndDate        *string `json:"end_date,omitempty"`
	MaxOccurrences *int    `json:"max_occurrences,omitempty"`
	DaysOfWeek     []int   `json:"days_of_week,omitempty"`
	DayOfMonth     *int    `json:"day_of_month,omitempty"`
}

// NewRecurrenceConfig fills in the document tag for a rule.
func NewRecurrenceConfig(frequency string, interval int) *RecurrenceConfig {
	return &RecurrenceConfig{
		Type:      recurrenceConfigType,
		Version:   recurrenceConfigVersion,
		Frequency: frequency,
		Interval:  interval,
	}
}

// SetEndDate stores the calendar day of t.
func (c *RecurrenceConfig) SetEndDate(t *time.Time) {
	if t == nil {
		c.EndDate = nil
		return
	}
	value := t.Format(recurrenceDateLayout)
	c.EndDate = &value
}

// EndTime parses EndDate as midnight UTC.
func (c *RecurrenceConfig) EndTime() (*time.Time, error) {
	if c == nil || c.EndDate == nil {
		return nil, nil
	}
	t, err := time.Parse(recurrenceDateLayout, *c.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: end_date %q", ErrCorruptRecurrence, *c.EndDate)
	}
	return &t, nil
}

// Validate checks the document shape.
func (c *RecurrenceConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: empty document", ErrCorruptRecurrence)
	}
	if c.Type != recurrenceConfigType {
		return fmt.Errorf("%w: unexpected type %q", ErrCorruptRecurrence, c.Type)
	}
	if c.Version != recurrenceConfigVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptRecurrence, c.Version)
	}
	switch c.Frequency {
	case "daily", "weekly", "monthly", "yearly":
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrCorruptRecurrence, c.Frequency)
	}
	if c.Interval < 1 || c.Interval > 365 {
		return fmt.Errorf("%w: interval %d out of range", ErrCorruptRecurrence, c.Interval)
	}
	if c.MaxOccurrences != nil && *c.MaxOccurrences < 1 {
		return fmt.Errorf("%w: max_occurrences %d", ErrCorruptRecurrence, *c.MaxOccurrences)
	}
	for _, day := range c.DaysOfWeek {
		if day < 0 || day > 6 {
			return fmt.Errorf("%w: day_of_week %d", ErrCorruptRecurrence, day)
		}
	}
	if c.DayOfMonth != nil && (*c.DayOfMonth < 1 || *c.DayOfMonth > 31) {
		return fmt.Errorf("%w: day_of_month %d", ErrCorruptRecurrence, *c.DayOfMonth)
	}
	if _, err := c.EndTime(); err != nil {
		return err
	}
	return nil
}

// EncodeRecurrenceConfig validates and serializes a document. A nil config encodes to nil.
func EncodeRecurrenceConfig(c *RecurrenceConfig) (*string, error) {
	if c == nil {
		return nil, nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode recurrence config: %w", err)
	}
	out := string(data)
	return &out, nil
}

// DecodeRecurrenceConfig parses and validates a stored document.
func DecodeRecurrenceConfig(raw string) (*RecurrenceConfig, error) {
	var c RecurrenceConfig
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecurrence, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
