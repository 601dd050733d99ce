package award

import "github.com/eventpoints/backend/internal/models"

// Snapshot is a point-in-time copy of the records an award decision reads.
// Any of them may be nil when it could not be resolved.
type Snapshot struct {
	Registration *models.Registration
	User         *models.User
	Event        *models.Event
}

// ShouldAward reports whether the registration still needs its grant.
func ShouldAward(s Snapshot) bool {
	return skipReason(s) == ""
}

func skipReason(s Snapshot) models.AwardOutcome {
	switch {
	case s.Registration == nil || s.User == nil || s.Event == nil:
		return models.AwardOutcomeSkippedNotFound
	case s.Event.PointsReward <= 0:
		return models.AwardOutcomeSkippedNoReward
	case s.Registration.Awarded():
		return models.AwardOutcomeSkippedAlreadyAwarded
	default:
		return ""
	}
}
