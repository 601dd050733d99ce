package models

// AwardSource names which reward service accepted a grant.
type AwardSource string

const (
	AwardSourceNone     AwardSource = "none"
	AwardSourcePrimary  AwardSource = "primary"
	AwardSourceFallback AwardSource = "fallback"
)

// AwardOutcome is the result of one award task run.
type AwardOutcome string

const (
	AwardOutcomeSkippedNotFound       AwardOutcome = "skipped-not-found"
	AwardOutcomeSkippedNoReward       AwardOutcome = "skipped-no-reward"
	AwardOutcomeSkippedAlreadyAwarded AwardOutcome = "skipped-already-awarded"
	AwardOutcomeGrantedPrimary        AwardOutcome = "granted-via-primary"
	AwardOutcomeGrantedFallback       AwardOutcome = "granted-via-fallback"
	AwardOutcomeFailed                AwardOutcome = "failed"
)

// TaskState is the state of a single award task. Every state but pending is terminal.
type TaskState string

const (
	TaskStatePending TaskState = "pending"
	TaskStateSkipped TaskState = "skipped"
	TaskStateGranted TaskState = "granted"
	TaskStateFailed  TaskState = "failed"
)

// State maps an outcome to its terminal task state.
func (o AwardOutcome) State() TaskState {
	switch o {
	case AwardOutcomeSkippedNotFound, AwardOutcomeSkippedNoReward, AwardOutcomeSkippedAlreadyAwarded:
		return TaskStateSkipped
	case AwardOutcomeGrantedPrimary, AwardOutcomeGrantedFallback:
		return TaskStateGranted
	case AwardOutcomeFailed:
		return TaskStateFailed
	default:
		return TaskStatePending
	}
}
