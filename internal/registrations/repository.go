package registrations

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventpoints/backend/internal/models"
	"github.com/eventpoints/backend/internal/store"
)

const registrationColumns = `id, user_id, event_id, name, email, phone, awarded_points, awarded_at, created_at, updated_at`

// Repository handles registration persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FirstOrCreateRegistration inserts a registration unless one exists for
// (user_id, event_id), and fills reg with the stored row. created is false
// when the row already existed.
func (r *Repository) FirstOrCreateRegistration(ctx context.Context, reg *models.Registration) (bool, error) {
	const insert = `INSERT INTO registrations (user_id, event_id, name, email, phone)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, event_id) DO NOTHING
		RETURNING ` + registrationColumns
	err := scanRegistration(r.pool.QueryRow(ctx, insert, reg.UserID, reg.EventID, reg.Name, reg.Email, reg.Phone), reg)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}
	const q = `SELECT ` + registrationColumns + ` FROM registrations WHERE user_id = $1 AND event_id = $2`
	if err := scanRegistration(r.pool.QueryRow(ctx, q, reg.UserID, reg.EventID), reg); err != nil {
		return false, mapErr(err)
	}
	return false, nil
}

// GetRegistrationByID returns a registration by ID.
func (r *Repository) GetRegistrationByID(ctx context.Context, id int64) (*models.Registration, error) {
	const q = `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	var reg models.Registration
	if err := scanRegistration(r.pool.QueryRow(ctx, q, id), &reg); err != nil {
		return nil, mapErr(err)
	}
	return &reg, nil
}

// ClaimAward sets awarded_points and awarded_at only if nothing was awarded yet.
func (r *Repository) ClaimAward(ctx context.Context, id int64, points int, at time.Time) (bool, error) {
	const q = `UPDATE registrations SET awarded_points = $2, awarded_at = $3, updated_at = NOW()
		WHERE id = $1 AND awarded_points = 0`
	tag, err := r.pool.Exec(ctx, q, id, points, at)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM registrations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, store.ErrNotFound
	}
	return false, nil
}

func scanRegistration(row pgx.Row, reg *models.Registration) error {
	return row.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.Name, &reg.Email, &reg.Phone,
		&reg.AwardedPoints, &reg.AwardedAt, &reg.CreatedAt, &reg.UpdatedAt)
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
