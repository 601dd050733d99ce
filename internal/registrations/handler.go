package registrations

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventpoints/backend/internal/award"
	"github.com/eventpoints/backend/internal/models"
	"github.com/eventpoints/backend/internal/store"
	"github.com/eventpoints/backend/pkg/response"
)

// Store is the registration persistence the handler needs.
type Store interface {
	FirstOrCreateRegistration(ctx context.Context, reg *models.Registration) (bool, error)
	GetRegistrationByID(ctx context.Context, id int64) (*models.Registration, error)
}

// BalanceReader looks up a user's current points total.
type BalanceReader interface {
	Balance(ctx context.Context, userID int64) (int, models.AwardSource, error)
}

// RegisterRequest is the body for POST /events/:id/register.
type RegisterRequest struct {
	UserID int64  `json:"user_id" binding:"required,gt=0"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty" binding:"omitempty,email"`
	Phone  string `json:"phone,omitempty"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	repo     Store
	events   award.Events
	users    award.Users
	enqueuer award.Enqueuer
	balances BalanceReader
	logger   *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(repo Store, events award.Events, users award.Users, enqueuer award.Enqueuer, balances BalanceReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, events: events, users: users, enqueuer: enqueuer, balances: balances, logger: logger}
}

// Register handles POST /events/:id/register. Creates or finds the
// registration, queues the points award and reports the user's balance.
func (h *Handler) Register(c *gin.Context) {
	ctx := c.Request.Context()
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || eventID <= 0 {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	event, err := h.events.GetEventByID(ctx, eventID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !event.OpenForRegistration()) {
		response.NotFound(c, "event not found")
		return
	}
	if err != nil {
		h.logger.Error("load event failed", zap.Error(err), zap.Int64("event_id", eventID))
		response.Internal(c, "failed to register")
		return
	}
	user, err := h.users.GetUserByID(ctx, req.UserID)
	if errors.Is(err, store.ErrNotFound) {
		response.NotFound(c, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("load user failed", zap.Error(err), zap.Int64("user_id", req.UserID))
		response.Internal(c, "failed to register")
		return
	}

	reg := &models.Registration{
		UserID:  user.ID,
		EventID: event.ID,
		Name:    firstNonEmpty(req.Name, user.Name),
		Email:   firstNonEmpty(req.Email, user.Email),
		Phone:   firstNonEmpty(req.Phone, user.Phone),
	}
	created, err := h.repo.FirstOrCreateRegistration(ctx, reg)
	if err != nil {
		h.logger.Error("create registration failed", zap.Error(err), zap.Int64("event_id", eventID), zap.Int64("user_id", user.ID))
		response.Internal(c, "failed to register")
		return
	}

	if err := h.enqueuer.EnqueueAward(ctx, reg.ID); err != nil {
		h.logger.Error("enqueue award failed", zap.Error(err), zap.Int64("registration_id", reg.ID))
	}

	pointsAfter, source, err := h.balances.Balance(ctx, user.ID)
	if err != nil {
		pointsAfter = 0
	}

	h.logger.Named("audit").Info("audit",
		zap.String("event", "registration.created"),
		zap.Int64("registration_id", reg.ID),
		zap.Int64("user_id", user.ID),
		zap.Int64("event_id", event.ID),
		zap.Bool("created", created),
		zap.Int("points_after", pointsAfter),
		zap.String("balance_source", string(source)),
	)
	response.OK(c, gin.H{
		"registration_id": reg.ID,
		"event_id":        event.ID,
		"created":         created,
		"points_after":    pointsAfter,
	})
}

// Get handles GET /registrations/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	reg, err := h.repo.GetRegistrationByID(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		response.NotFound(c, "registration not found")
		return
	}
	if err != nil {
		h.logger.Error("load registration failed", zap.Error(err), zap.Int64("registration_id", id))
		response.Internal(c, "failed to load registration")
		return
	}
	response.OK(c, reg)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
