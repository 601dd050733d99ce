// Package points serves the internal points ledger. It is the fallback
// reward service the award client calls when the external users API fails.
package points

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventpoints/backend/internal/models"
	"github.com/eventpoints/backend/internal/store"
	"github.com/eventpoints/backend/pkg/response"
)

// Ledger stores point credits.
type Ledger interface {
	AddPoints(ctx context.Context, userID int64, points int) (*models.PointsEntry, error)
	Balance(ctx context.Context, userID int64) (int, error)
}

// AddRequest is the body for POST /api/v1/users/:id/points/add.
type AddRequest struct {
	Points int `json:"points" binding:"required,gt=0"`
}

// Handler handles the internal points endpoints.
type Handler struct {
	ledger Ledger
	logger *zap.Logger
}

// NewHandler creates a points handler.
func NewHandler(ledger Ledger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ledger: ledger, logger: logger}
}

// Register mounts the handler on an /api/v1 group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/users/:id/points/add", h.Add)
	rg.GET("/users/:id/points", h.Get)
}

// Add handles POST /api/v1/users/:id/points/add.
func (h *Handler) Add(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	var req AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	entry, err := h.ledger.AddPoints(c.Request.Context(), userID, req.Points)
	switch {
	case errors.Is(err, store.ErrNotFound):
		response.NotFound(c, "user not found")
		return
	case errors.Is(err, store.ErrInvalidPoints):
		response.BadRequest(c, err.Error())
		return
	case err != nil:
		h.logger.Error("add points failed", zap.Error(err), zap.Int64("user_id", userID))
		response.Internal(c, "failed to add points")
		return
	}
	balance, err := h.ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		h.logger.Warn("balance after add failed", zap.Error(err), zap.Int64("user_id", userID))
	}
	h.logger.Info("points added", zap.Int64("user_id", userID), zap.Int("points", entry.Points), zap.Int64("entry_id", entry.ID))
	response.OK(c, gin.H{"entry": entry, "points": balance})
}

// Get handles GET /api/v1/users/:id/points.
func (h *Handler) Get(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	balance, err := h.ledger.Balance(c.Request.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		response.NotFound(c, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("balance failed", zap.Error(err), zap.Int64("user_id", userID))
		response.Internal(c, "failed to load points")
		return
	}
	response.OK(c, gin.H{"user_id": userID, "points": balance})
}

func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid user id")
		return 0, false
	}
	return id, true
}
