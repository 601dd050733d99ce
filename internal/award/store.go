// Package award runs the background task that grants an event's points for a
// registration exactly once.
package award

import (
	"context"
	"time"

	"github.com/eventpoints/backend/internal/models"
	"github.com/eventpoints/backend/internal/rewards"
)

// Registrations reads registrations and records grants. ClaimAward must only
// write when awarded_points is still zero, reporting whether it wrote.
type Registrations interface {
	GetRegistrationByID(ctx context.Context, id int64) (*models.Registration, error)
	ClaimAward(ctx context.Context, id int64, points int, at time.Time) (bool, error)
}

// Events resolves the reward amount for an event.
type Events interface {
	GetEventByID(ctx context.Context, id int64) (*models.Event, error)
}

// Users resolves the user a registration belongs to.
type Users interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Rewarder adds points to a user through whichever service is available.
type Rewarder interface {
	Award(ctx context.Context, userID int64, points int) rewards.Result
}

// Enqueuer hands a registration to the award scheduler without waiting for
// the task to run.
type Enqueuer interface {
	EnqueueAward(ctx context.Context, registrationID int64) error
}
