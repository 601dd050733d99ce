package events

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventpoints/backend/internal/models"
	"github.com/eventpoints/backend/internal/store"
)

// Repository reads events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetEventByID returns an event by ID.
func (r *Repository) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	const q = `SELECT id, title, slug, status, points_reward, starts_at, ends_at, created_at FROM events WHERE id = $1`
	var e models.Event
	err := r.pool.QueryRow(ctx, q, id).Scan(&e.ID, &e.Title, &e.Slug, &e.Status, &e.PointsReward, &e.StartsAt, &e.EndsAt, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}
