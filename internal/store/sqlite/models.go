package sqlite

import (
	"time"

	"github.com/eventpoints/backend/internal/models"
)

type userRow struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Email     string    `gorm:"column:email;not null"`
	Phone     string    `gorm:"column:phone"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (userRow) TableName() string { return "users" }

func (r userRow) toModel() *models.User {
	return &models.User{ID: r.ID, Name: r.Name, Email: r.Email, Phone: r.Phone, CreatedAt: r.CreatedAt}
}

type eventRow struct {
	ID           int64      `gorm:"column:id;primaryKey"`
	Title        string     `gorm:"column:title;not null"`
	Slug         string     `gorm:"column:slug;uniqueIndex"`
	Status       string     `gorm:"column:status;not null;default:draft"`
	PointsReward int        `gorm:"column:points_reward;not null;default:0;check:points_reward >= 0"`
	StartsAt     time.Time  `gorm:"column:starts_at"`
	EndsAt       *time.Time `gorm:"column:ends_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
}

func (eventRow) TableName() string { return "events" }

func (r eventRow) toModel() *models.Event {
	return &models.Event{
		ID:           r.ID,
		Title:        r.Title,
		Slug:         r.Slug,
		Status:       models.EventStatus(r.Status),
		PointsReward: r.PointsReward,
		StartsAt:     r.StartsAt,
		EndsAt:       r.EndsAt,
		CreatedAt:    r.CreatedAt,
	}
}

// registrationRow enforces one registration per (user, event).
type registrationRow struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	UserID        int64      `gorm:"column:user_id;not null;uniqueIndex:idx_registrations_user_event"`
	EventID       int64      `gorm:"column:event_id;not null;uniqueIndex:idx_registrations_user_event"`
	Name          string     `gorm:"column:name"`
	Email         string     `gorm:"column:email"`
	Phone         string     `gorm:"column:phone"`
	AwardedPoints int        `gorm:"column:awarded_points;not null;default:0"`
	AwardedAt     *time.Time `gorm:"column:awarded_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;not null"`
}

func (registrationRow) TableName() string { return "registrations" }

func (r registrationRow) toModel() *models.Registration {
	return &models.Registration{
		ID:            r.ID,
		UserID:        r.UserID,
		EventID:       r.EventID,
		Name:          r.Name,
		Email:         r.Email,
		Phone:         r.Phone,
		AwardedPoints: r.AwardedPoints,
		AwardedAt:     r.AwardedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type pointsEntryRow struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    int64     `gorm:"column:user_id;not null;index"`
	Points    int       `gorm:"column:points;not null;check:points > 0"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (pointsEntryRow) TableName() string { return "user_points" }
