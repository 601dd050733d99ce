package models

import "time"

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusLive      EventStatus = "live"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

// Event is a bookable event. PointsReward is granted once per registration;
// zero means the event carries no reward.
type Event struct {
	ID           int64       `json:"id"`
	Title        string      `json:"title"`
	Slug         string      `json:"slug"`
	Status       EventStatus `json:"status"`
	PointsReward int         `json:"points_reward"`
	StartsAt     time.Time   `json:"starts_at"`
	EndsAt       *time.Time  `json:"ends_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// OpenForRegistration is false for cancelled events.
func (e *Event) OpenForRegistration() bool {
	return e.Status != EventStatusCancelled
}
