package award

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/eventpoints/backend/internal/models"
	"github.com/eventpoints/backend/internal/store"
)

// Report is the terminal result of one task run.
type Report struct {
	RegistrationID int64
	UserID         int64
	Points         int
	State          models.TaskState
	Outcome        models.AwardOutcome
	Source         models.AwardSource
	// Recorded is true when this run wrote the grant to the registration.
	Recorded bool
	Err      error
}

// Task grants the event reward for one registration.
type Task struct {
	registrations Registrations
	events        Events
	users         Users
	rewarder      Rewarder
	audit         *Auditor
	tracer        trace.Tracer
	logger        *zap.Logger
	now           func() time.Time
}

// NewTask wires a task to its stores and reward client.
func NewTask(registrations Registrations, events Events, users Users, rewarder Rewarder, logger *zap.Logger) *Task {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Task{
		registrations: registrations,
		events:        events,
		users:         users,
		rewarder:      rewarder,
		audit:         NewAuditor(logger),
		tracer:        otel.Tracer("github.com/eventpoints/backend/internal/award"),
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the task. It never panics and never returns an error; storage
// failures end the run in the failed state with Report.Err set.
func (t *Task) Run(ctx context.Context, registrationID int64) (rep Report) {
	ctx, span := t.tracer.Start(ctx, "award.run",
		trace.WithAttributes(attribute.Int64("registration.id", registrationID)))
	defer span.End()

	rep = Report{RegistrationID: registrationID, State: models.TaskStatePending, Source: models.AwardSourceNone}
	defer func() {
		if r := recover(); r != nil {
			rep = t.fail(rep, fmt.Errorf("panic: %v", r), debug.Stack())
		}
		span.SetAttributes(
			attribute.String("award.outcome", string(rep.Outcome)),
			attribute.String("award.source", string(rep.Source)),
		)
		if rep.Err != nil {
			span.RecordError(rep.Err)
			span.SetStatus(codes.Error, rep.Err.Error())
		}
	}()

	snap, err := t.load(ctx, registrationID)
	if err != nil {
		return t.fail(rep, err, nil)
	}
	if snap.User != nil {
		rep.UserID = snap.User.ID
	}
	if snap.Event != nil {
		rep.Points = snap.Event.PointsReward
	}
	if reason := skipReason(snap); reason != "" {
		return t.finish(rep, reason)
	}

	claimed, err := t.registrations.ClaimAward(ctx, registrationID, rep.Points, t.now())
	if errors.Is(err, store.ErrNotFound) {
		return t.finish(rep, models.AwardOutcomeSkippedNotFound)
	}
	if err != nil {
		return t.fail(rep, fmt.Errorf("claim award: %w", err), nil)
	}
	if !claimed {
		return t.finish(rep, models.AwardOutcomeSkippedAlreadyAwarded)
	}
	rep.Recorded = true

	res := t.rewarder.Award(ctx, rep.UserID, rep.Points)
	rep.Source = res.Source
	switch {
	case !res.OK:
		// The grant stays recorded; reconciliation happens out of band.
		return t.finish(rep, models.AwardOutcomeFailed)
	case res.Source == models.AwardSourcePrimary:
		return t.finish(rep, models.AwardOutcomeGrantedPrimary)
	default:
		return t.finish(rep, models.AwardOutcomeGrantedFallback)
	}
}

// load resolves the registration, its user and its event. Missing records
// leave nil fields; any other storage error is returned.
func (t *Task) load(ctx context.Context, registrationID int64) (Snapshot, error) {
	var snap Snapshot
	reg, err := t.registrations.GetRegistrationByID(ctx, registrationID)
	if err != nil {
		return snap, notFoundOK(err, "load registration")
	}
	snap.Registration = reg

	user, err := t.users.GetUserByID(ctx, reg.UserID)
	if err != nil {
		return snap, notFoundOK(err, "load user")
	}
	snap.User = user

	event, err := t.events.GetEventByID(ctx, reg.EventID)
	if err != nil {
		return snap, notFoundOK(err, "load event")
	}
	snap.Event = event
	return snap, nil
}

func notFoundOK(err error, op string) error {
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (t *Task) finish(rep Report, outcome models.AwardOutcome) Report {
	rep.Outcome = outcome
	rep.State = outcome.State()
	t.audit.Record(rep)
	return rep
}

func (t *Task) fail(rep Report, err error, stack []byte) Report {
	if stack == nil {
		stack = debug.Stack()
	}
	rep.Err = err
	rep.Outcome = models.AwardOutcomeFailed
	rep.State = models.TaskStateFailed
	t.logger.Error("award task failed",
		zap.Int64("registration_id", rep.RegistrationID),
		zap.Int64("user_id", rep.UserID),
		zap.Int("points", rep.Points),
		zap.Bool("recorded", rep.Recorded),
		zap.Error(err),
		zap.ByteString("stack", stack),
	)
	t.audit.Record(rep)
	return rep
}
