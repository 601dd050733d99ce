package registrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventpoints/backend/internal/models"
	"github.com/eventpoints/backend/internal/store/memory"
)

type recordingEnqueuer struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (e *recordingEnqueuer) EnqueueAward(_ context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = append(e.ids, id)
	return e.err
}

type fixedBalance struct {
	points int
	err    error
}

func (f fixedBalance) Balance(context.Context, int64) (int, models.AwardSource, error) {
	if f.err != nil {
		return 0, models.AwardSourceNone, f.err
	}
	return f.points, models.AwardSourcePrimary, nil
}

type envelope struct {
	Success bool `json:"success"`
	Data    struct {
		RegistrationID int64 `json:"registration_id"`
		Created        bool  `json:"created"`
		PointsAfter    int   `json:"points_after"`
	} `json:"data"`
	Error string `json:"error"`
}

func newRouter(t *testing.T, enq *recordingEnqueuer, bal fixedBalance) (*gin.Engine, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := memory.New()
	s.PutUser(models.User{ID: 42, Name: "Kah Wei", Email: "kw@example.com"})
	s.PutEvent(models.Event{ID: 1, Title: "Book fair", PointsReward: 100})
	s.PutEvent(models.Event{ID: 2, Title: "Cancelled", Status: models.EventStatusCancelled, PointsReward: 50})
	h := NewHandler(s, s, s, enq, bal, nil)
	r := gin.New()
	r.POST("/events/:id/register", h.Register)
	r.GET("/registrations/:id", h.Get)
	return r, s
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_Register_CreatesAndEnqueues(t *testing.T) {
	enq := &recordingEnqueuer{}
	r, s := newRouter(t, enq, fixedBalance{points: 300})

	w := doJSON(r, http.MethodPost, "/events/1/register", gin.H{"user_id": 42})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Data.Created)
	assert.Equal(t, 300, resp.Data.PointsAfter)
	assert.Equal(t, []int64{resp.Data.RegistrationID}, enq.ids)

	reg, err := s.GetRegistrationByID(context.Background(), resp.Data.RegistrationID)
	require.NoError(t, err)
	assert.Equal(t, "Kah Wei", reg.Name)
	assert.Equal(t, 0, reg.AwardedPoints, "award happens asynchronously")
}

func TestHandler_Register_DuplicateReturnsExisting(t *testing.T) {
	enq := &recordingEnqueuer{}
	r, _ := newRouter(t, enq, fixedBalance{})

	var first, second envelope
	w := doJSON(r, http.MethodPost, "/events/1/register", gin.H{"user_id": 42})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	w = doJSON(r, http.MethodPost, "/events/1/register", gin.H{"user_id": 42})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))

	assert.Equal(t, first.Data.RegistrationID, second.Data.RegistrationID)
	assert.False(t, second.Data.Created)
	assert.Len(t, enq.ids, 2, "duplicate trigger enqueues again; the task guard dedupes")
}

func TestHandler_Register_EnqueueAndBalanceFailuresDoNotFail(t *testing.T) {
	enq := &recordingEnqueuer{err: errors.New("queue full")}
	r, _ := newRouter(t, enq, fixedBalance{err: errors.New("down")})

	w := doJSON(r, http.MethodPost, "/events/1/register", gin.H{"user_id": 42})

	require.Equal(t, http.StatusOK, w.Code)
	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Data.PointsAfter)
}

func TestHandler_Register_Errors(t *testing.T) {
	r, _ := newRouter(t, &recordingEnqueuer{}, fixedBalance{})

	tests := []struct {
		name string
		path string
		body any
		code int
	}{
		{"bad event id", "/events/abc/register", gin.H{"user_id": 42}, http.StatusBadRequest},
		{"missing user id", "/events/1/register", gin.H{}, http.StatusBadRequest},
		{"unknown event", "/events/99/register", gin.H{"user_id": 42}, http.StatusNotFound},
		{"cancelled event", "/events/2/register", gin.H{"user_id": 42}, http.StatusNotFound},
		{"unknown user", "/events/1/register", gin.H{"user_id": 5}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestHandler_Get(t *testing.T) {
	r, s := newRouter(t, &recordingEnqueuer{}, fixedBalance{})
	s.PutRegistration(models.Registration{ID: 8, UserID: 42, EventID: 1, AwardedPoints: 100})

	w := doJSON(r, http.MethodGet, "/registrations/8", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"awarded_points":100`)

	w = doJSON(r, http.MethodGet, "/registrations/9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
