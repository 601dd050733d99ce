// Package sqlite is a gorm-backed store for local development against a
// SQLite file.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eventpoints/backend/internal/models"
	"github.com/eventpoints/backend/internal/store"
)

// Store implements the registration, event, user and ledger stores on gorm.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open opens (or creates) the SQLite database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY under load.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return New(db)
}

// New wraps an open gorm DB and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&userRow{}, &eventRow{}, &registrationRow{}, &pointsEntryRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateUser inserts a user.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	row := userRow{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, CreatedAt: s.now()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	u.ID, u.CreatedAt = row.ID, row.CreatedAt
	return nil
}

// CreateEvent inserts an event.
func (s *Store) CreateEvent(ctx context.Context, e *models.Event) error {
	status := e.Status
	if status == "" {
		status = models.EventStatusScheduled
	}
	row := eventRow{
		ID:           e.ID,
		Title:        e.Title,
		Slug:         e.Slug,
		Status:       string(status),
		PointsReward: e.PointsReward,
		StartsAt:     e.StartsAt,
		EndsAt:       e.EndsAt,
		CreatedAt:    s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	e.ID, e.Status, e.CreatedAt = row.ID, status, row.CreatedAt
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return row.toModel(), nil
}

func (s *Store) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	var row eventRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return row.toModel(), nil
}

func (s *Store) GetRegistrationByID(ctx context.Context, id int64) (*models.Registration, error) {
	var row registrationRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return row.toModel(), nil
}

// FirstOrCreateRegistration returns the registration for (user, event),
// inserting reg when none exists. A concurrent insert that loses the unique
// index race reads back the winner's row.
func (s *Store) FirstOrCreateRegistration(ctx context.Context, reg *models.Registration) (bool, error) {
	db := s.db.WithContext(ctx)
	now := s.now()
	row := registrationRow{}
	attrs := registrationRow{Name: reg.Name, Email: reg.Email, Phone: reg.Phone, CreatedAt: now, UpdatedAt: now}
	res := db.Where(registrationRow{UserID: reg.UserID, EventID: reg.EventID}).Attrs(attrs).FirstOrCreate(&row)
	if res.Error != nil {
		if !isUniqueConstraintError(res.Error) {
			return false, fmt.Errorf("first or create registration: %w", res.Error)
		}
		if err := db.Where("user_id = ? AND event_id = ?", reg.UserID, reg.EventID).First(&row).Error; err != nil {
			return false, mapErr(err)
		}
		*reg = *row.toModel()
		return false, nil
	}
	*reg = *row.toModel()
	return res.RowsAffected > 0, nil
}

// ClaimAward writes the award fields in one conditional UPDATE guarded by
// awarded_points = 0.
func (s *Store) ClaimAward(ctx context.Context, id int64, points int, at time.Time) (bool, error) {
	db := s.db.WithContext(ctx)
	res := db.Model(&registrationRow{}).
		Where("id = ? AND awarded_points = 0", id).
		Updates(map[string]any{
			"awarded_points": points,
			"awarded_at":     at.UTC(),
			"updated_at":     s.now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("claim award: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	var count int64
	if err := db.Model(&registrationRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("claim award: %w", err)
	}
	if count == 0 {
		return false, store.ErrNotFound
	}
	return false, nil
}

func (s *Store) AddPoints(ctx context.Context, userID int64, points int) (*models.PointsEntry, error) {
	if points <= 0 {
		return nil, store.ErrInvalidPoints
	}
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	row := pointsEntryRow{UserID: userID, Points: points, CreatedAt: s.now()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("add points: %w", err)
	}
	return &models.PointsEntry{ID: row.ID, UserID: row.UserID, Points: row.Points, CreatedAt: row.CreatedAt}, nil
}

func (s *Store) Balance(ctx context.Context, userID int64) (int, error) {
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return 0, err
	}
	var total int
	err := s.db.WithContext(ctx).Model(&pointsEntryRow{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return total, nil
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
