// Package admin exposes operator endpoints for the award pipeline.
package admin

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventpoints/backend/internal/award"
	"github.com/eventpoints/backend/internal/worker"
	"github.com/eventpoints/backend/pkg/queue"
	"github.com/eventpoints/backend/pkg/response"
)

// DeadLetters is implemented by the Redis queue.
type DeadLetters interface {
	DeadLetters(ctx context.Context, limit int64) ([]queue.Job, error)
	RequeueDead(ctx context.Context) (int, error)
}

// Handler handles /admin endpoints.
type Handler struct {
	enqueuer award.Enqueuer
	pool     *worker.Pool
	dlq      DeadLetters
	logger   *zap.Logger
}

// NewHandler creates an admin handler. dlq may be nil when the in-memory
// queue backend is used.
func NewHandler(enqueuer award.Enqueuer, pool *worker.Pool, dlq DeadLetters, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{enqueuer: enqueuer, pool: pool, dlq: dlq, logger: logger}
}

// Register mounts the admin routes.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/awards/stats", h.Stats)
	rg.POST("/registrations/:registration_id/award", h.Reenqueue)
	rg.GET("/awards/dead-letters", h.ListDeadLetters)
	rg.POST("/awards/dead-letters/requeue", h.RequeueDeadLetters)
}

// Stats handles GET /admin/awards/stats.
func (h *Handler) Stats(c *gin.Context) {
	response.OK(c, h.pool.Stats())
}

// Reenqueue handles POST /admin/registrations/:registration_id/award.
func (h *Handler) Reenqueue(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("registration_id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid registration id")
		return
	}
	if err := h.enqueuer.EnqueueAward(c.Request.Context(), id); err != nil {
		h.logger.Warn("re-enqueue award failed", zap.Error(err), zap.Int64("registration_id", id))
		response.ServiceUnavailable(c, "award queue unavailable")
		return
	}
	h.logger.Info("award re-enqueued", zap.Int64("registration_id", id))
	response.OK(c, gin.H{"registration_id": id, "queued": true})
}

// ListDeadLetters handles GET /admin/awards/dead-letters.
func (h *Handler) ListDeadLetters(c *gin.Context) {
	if h.dlq == nil {
		response.NotFound(c, "dead-letter queue not configured")
		return
	}
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)
	jobs, err := h.dlq.DeadLetters(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list dead letters failed", zap.Error(err))
		response.Internal(c, "failed to list dead letters")
		return
	}
	response.OK(c, jobs)
}

// RequeueDeadLetters handles POST /admin/awards/dead-letters/requeue.
func (h *Handler) RequeueDeadLetters(c *gin.Context) {
	if h.dlq == nil {
		response.NotFound(c, "dead-letter queue not configured")
		return
	}
	moved, err := h.dlq.RequeueDead(c.Request.Context())
	if err != nil {
		h.logger.Error("requeue dead letters failed", zap.Error(err), zap.Int("moved", moved))
		response.Internal(c, "failed to requeue dead letters")
		return
	}
	h.logger.Info("dead letters requeued", zap.Int("moved", moved))
	response.OK(c, gin.H{"requeued": moved})
}
