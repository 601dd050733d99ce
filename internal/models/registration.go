package models

import "time"

// Registration is a user's registration for an event. AwardedPoints is zero
// until the award task grants the event's reward, after which it never changes.
type Registration struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	EventID       int64      `json:"event_id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	AwardedPoints int        `json:"awarded_points"`
	AwardedAt     *time.Time `json:"awarded_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Awarded reports whether points were already granted for this registration.
func (r *Registration) Awarded() bool {
	return r.AwardedPoints != 0
}
