package points

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventpoints/backend/internal/models"
	"github.com/eventpoints/backend/internal/store"
)

// Repository is the internal points ledger on Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a points ledger repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AddPoints appends a ledger credit for an existing user.
func (r *Repository) AddPoints(ctx context.Context, userID int64, points int) (*models.PointsEntry, error) {
	if points <= 0 {
		return nil, store.ErrInvalidPoints
	}
	const q = `INSERT INTO user_points (user_id, points)
		SELECT id, $2 FROM users WHERE id = $1
		RETURNING id, user_id, points, created_at`
	var e models.PointsEntry
	if err := r.pool.QueryRow(ctx, q, userID, points).Scan(&e.ID, &e.UserID, &e.Points, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Balance sums a user's ledger credits.
func (r *Repository) Balance(ctx context.Context, userID int64) (int, error) {
	const q = `SELECT COALESCE((SELECT SUM(points) FROM user_points WHERE user_id = u.id), 0)::int
		FROM users u WHERE u.id = $1`
	var total int
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return total, nil
}
