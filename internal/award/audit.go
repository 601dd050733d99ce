package award

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eventpoints/backend/internal/models"
)

// AuditEventAward is the event name on every award audit record.
const AuditEventAward = "award.points"

// Auditor writes one structured audit record per terminal task transition.
type Auditor struct {
	logger *zap.Logger
}

// NewAuditor logs through a child logger named "audit".
func NewAuditor(logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{logger: logger.Named("audit")}
}

// Record logs rep at a level matching its severity: info for skips and
// primary grants, warn for fallback grants, error for failures.
func (a *Auditor) Record(rep Report) {
	level := zapcore.InfoLevel
	switch {
	case rep.Outcome == models.AwardOutcomeGrantedFallback:
		level = zapcore.WarnLevel
	case rep.State == models.TaskStateFailed:
		level = zapcore.ErrorLevel
	}
	fields := []zap.Field{
		zap.String("event", AuditEventAward),
		zap.Int64("registration_id", rep.RegistrationID),
		zap.Int64("user_id", rep.UserID),
		zap.Int("points", rep.Points),
		zap.String("state", string(rep.State)),
		zap.String("outcome", string(rep.Outcome)),
		zap.String("source", string(rep.Source)),
		zap.Bool("recorded", rep.Recorded),
	}
	if rep.Err != nil {
		fields = append(fields, zap.Error(rep.Err))
	}
	if ce := a.logger.Check(level, "audit"); ce != nil {
		ce.Write(fields...)
	}
}
