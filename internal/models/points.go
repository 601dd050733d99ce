package models

import "time"

// PointsEntry is one credit in the internal points ledger. A user's balance is
// the sum of their entries.
type PointsEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}
