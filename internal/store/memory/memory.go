// Package memory is an in-process store used when no database is configured
// and by tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/eventpoints/backend/internal/models"
	"github.com/eventpoints/backend/internal/store"
)

type pairKey struct {
	userID  int64
	eventID int64
}

// Store keeps users, events, registrations and the points ledger in maps.
type Store struct {
	mu            sync.RWMutex
	users         map[int64]models.User
	events        map[int64]models.Event
	registrations map[int64]models.Registration
	byPair        map[pairKey]int64
	ledger        []models.PointsEntry
	nextRegID     int64
	now           func() time.Time
}

func New() *Store {
	return &Store{
		users:         make(map[int64]models.User),
		events:        make(map[int64]models.Event),
		registrations: make(map[int64]models.Registration),
		byPair:        make(map[pairKey]int64),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = u
}

// PutEvent inserts or replaces an event.
func (s *Store) PutEvent(e models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Status == "" {
		e.Status = models.EventStatusScheduled
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.events[e.ID] = e
}

// PutRegistration inserts or replaces a registration as-is, award fields included.
func (s *Store) PutRegistration(r models.Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID > s.nextRegID {
		s.nextRegID = r.ID
	}
	s.registrations[r.ID] = r
	s.byPair[pairKey{r.UserID, r.EventID}] = r.ID
}

// DeleteRegistration removes a registration.
func (s *Store) DeleteRegistration(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.registrations[id]; ok {
		delete(s.byPair, pairKey{r.UserID, r.EventID})
		delete(s.registrations, id)
	}
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (s *Store) GetRegistrationByID(ctx context.Context, id int64) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.registrations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneRegistration(r), nil
}

// FirstOrCreateRegistration returns the existing registration for the
// (user, event) pair or inserts reg. reg is filled in either way.
func (s *Store) FirstOrCreateRegistration(ctx context.Context, reg *models.Registration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byPair[pairKey{reg.UserID, reg.EventID}]; ok {
		*reg = *cloneRegistration(s.registrations[id])
		return false, nil
	}
	s.nextRegID++
	now := s.now()
	reg.ID = s.nextRegID
	reg.AwardedPoints = 0
	reg.AwardedAt = nil
	reg.CreatedAt = now
	reg.UpdatedAt = now
	s.registrations[reg.ID] = *reg
	s.byPair[pairKey{reg.UserID, reg.EventID}] = reg.ID
	return true, nil
}

// ClaimAward sets the award fields only while awarded_points is still zero.
// It reports whether this call made the write.
func (s *Store) ClaimAward(ctx context.Context, id int64, points int, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if r.AwardedPoints != 0 {
		return false, nil
	}
	at = at.UTC()
	r.AwardedPoints = points
	r.AwardedAt = &at
	r.UpdatedAt = s.now()
	s.registrations[id] = r
	return true, nil
}

func (s *Store) AddPoints(ctx context.Context, userID int64, points int) (*models.PointsEntry, error) {
	if points <= 0 {
		return nil, store.ErrInvalidPoints
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return nil, store.ErrNotFound
	}
	entry := models.PointsEntry{
		ID:        int64(len(s.ledger) + 1),
		UserID:    userID,
		Points:    points,
		CreatedAt: s.now(),
	}
	s.ledger = append(s.ledger, entry)
	return &entry, nil
}

func (s *Store) Balance(ctx context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[userID]; !ok {
		return 0, store.ErrNotFound
	}
	total := 0
	for _, e := range s.ledger {
		if e.UserID == userID {
			total += e.Points
		}
	}
	return total, nil
}

func cloneRegistration(r models.Registration) *models.Registration {
	if r.AwardedAt != nil {
		at := *r.AwardedAt
		r.AwardedAt = &at
	}
	return &r
}
