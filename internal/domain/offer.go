package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OfferKind distinguishes one-off promotions from weekly recurring ones.
type OfferKind string

const (
	OfferOneTime OfferKind = "one_time"
	OfferWeekly  OfferKind = "weekly"
)

// Offer is a promotional record shown to players. It plays no part in scoring.
type Offer struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Kind        OfferKind  `json:"kind"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	Weekdays    []int      `json:"weekdays,omitempty"`
	DailyStart  string     `json:"daily_start,omitempty"`
	DailyEnd    string     `json:"daily_end,omitempty"`
	RewardType  string     `json:"reward_type"`
	RewardValue string     `json:"reward_value"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate checks that the offer carries a coherent schedule for its kind.
func (o *Offer) Validate() error {
	if o.Title == "" {
		return fmt.Errorf("title is required")
	}
	if o.RewardType == "" {
		return fmt.Errorf("reward_type is required")
	}
	switch o.Kind {
	case OfferOneTime:
		if o.StartsAt == nil || o.EndsAt == nil {
			return fmt.Errorf("one_time offers need starts_at and ends_at")
		}
		if !o.EndsAt.After(*o.StartsAt) {
			return fmt.Errorf("ends_at must be after starts_at")
		}
	case OfferWeekly:
		if len(o.Weekdays) == 0 {
			return fmt.Errorf("weekly offers need at least one weekday")
		}
		for _, d := range o.Weekdays {
			if d < 0 || d > 6 {
				return fmt.Errorf("weekday %d out of range 0-6", d)
			}
		}
		start, err := parseClock(o.DailyStart)
		if err != nil {
			return fmt.Errorf("daily_start: %w", err)
		}
		end, err := parseClock(o.DailyEnd)
		if err != nil {
			return fmt.Errorf("daily_end: %w", err)
		}
		if end <= start {
			return fmt.Errorf("daily_end must be after daily_start")
		}
	default:
		return fmt.Errorf("unknown offer kind %q", o.Kind)
	}
	return nil
}

// ActiveAt reports whether the offer applies at instant t. Weekly windows are
// evaluated in t's location.
func (o *Offer) ActiveAt(t time.Time) bool {
	if !o.Active {
		return false
	}
	switch o.Kind {
	case OfferOneTime:
		if o.StartsAt == nil || o.EndsAt == nil {
			return false
		}
		return !t.Before(*o.StartsAt) && t.Before(*o.EndsAt)
	case OfferWeekly:
		dayMatch := false
		for _, d := range o.Weekdays {
			if time.Weekday(d) == t.Weekday() {
				dayMatch = true
				break
			}
		}
		if !dayMatch {
			return false
		}
		start, err := parseClock(o.DailyStart)
		if err != nil {
			return false
		}
		end, err := parseClock(o.DailyEnd)
		if err != nil {
			return false
		}
		minute := t.Hour()*60 + t.Minute()
		return minute >= start && minute < end
	}
	return false
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
