// Package rewards grants points through the external users API and falls back
// to the internal points API when the external one fails.
package rewards

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/eventpoints/backend/internal/models"
)

const (
	// DefaultPrimaryTimeout bounds calls to the external users API.
	DefaultPrimaryTimeout = 5 * time.Second
	// DefaultFallbackTimeout bounds calls to the internal points API.
	DefaultFallbackTimeout = 10 * time.Second
)

var (
	// ErrNoSource is returned by Balance when neither service answered.
	ErrNoSource = errors.New("no reward service available")
	// ErrPrimaryNotConfigured is the primary attempt's error when
	// USERS_API_BASE is empty; the fallback is used directly.
	ErrPrimaryNotConfigured = errors.New("primary reward service not configured")
)

// Config locates both reward services.
type Config struct {
	PrimaryBaseURL  string
	PrimaryTimeout  time.Duration
	FallbackBaseURL string
	FallbackTimeout time.Duration
}

// Client calls the primary service first and the fallback on any failure.
// It keeps no state between calls.
type Client struct {
	cfg    Config
	http   *http.Client
	tracer trace.Tracer
	logger *zap.Logger
}

// NewClient creates a reward client. A nil httpClient uses http.DefaultClient;
// zero timeouts take the package defaults.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.PrimaryTimeout <= 0 {
		cfg.PrimaryTimeout = DefaultPrimaryTimeout
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = DefaultFallbackTimeout
	}
	cfg.PrimaryBaseURL = strings.TrimRight(cfg.PrimaryBaseURL, "/")
	cfg.FallbackBaseURL = strings.TrimRight(cfg.FallbackBaseURL, "/")
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		tracer: otel.Tracer("github.com/eventpoints/backend/internal/rewards"),
		logger: logger,
	}
}

type addPointsRequest struct {
	Points int `json:"points"`
}

// Award adds points to the user, trying the primary service once and then the
// fallback. Failures are reported in the Result, never returned as errors.
func (c *Client) Award(ctx context.Context, userID int64, points int) Result {
	body, err := encodeAddPoints(points)
	if err != nil {
		c.logger.Error("encode reward request", zap.Int64("user_id", userID), zap.Int("points", points), zap.Error(err))
		return Result{
			OK:      false,
			Source:  models.AwardSourceNone,
			Primary: Attempt{Source: models.AwardSourcePrimary, Status: StatusPermanent, Err: err},
		}
	}

	var primary Attempt
	if c.primaryConfigured() {
		primary = c.post(ctx, models.AwardSourcePrimary, c.cfg.PrimaryBaseURL, c.cfg.PrimaryTimeout, userID, body)
		if primary.OK() {
			return Result{OK: true, Source: models.AwardSourcePrimary, Primary: primary}
		}
		c.logger.Warn("primary reward service failed",
			zap.Int64("user_id", userID),
			zap.Int("points", points),
			zap.String("status", string(primary.Status)),
			zap.Int("status_code", primary.StatusCode),
			zap.Error(primary.Err),
		)
	} else {
		primary = c.skipPrimary(userID)
	}

	fallback := c.post(ctx, models.AwardSourceFallback, c.cfg.FallbackBaseURL, c.cfg.FallbackTimeout, userID, body)
	if fallback.OK() {
		return Result{OK: true, Source: models.AwardSourceFallback, Primary: primary, Fallback: &fallback}
	}
	c.logger.Error("fallback reward service failed",
		zap.Int64("user_id", userID),
		zap.Int("points", points),
		zap.String("status", string(fallback.Status)),
		zap.Int("status_code", fallback.StatusCode),
		zap.Error(fallback.Err),
	)
	return Result{OK: false, Source: models.AwardSourceNone, Primary: primary, Fallback: &fallback}
}

func (c *Client) primaryConfigured() bool {
	return c.cfg.PrimaryBaseURL != ""
}

func (c *Client) skipPrimary(userID int64) Attempt {
	c.logger.Debug("primary reward service not configured, using fallback", zap.Int64("user_id", userID))
	return Attempt{Source: models.AwardSourcePrimary, Status: StatusPermanent, Err: ErrPrimaryNotConfigured}
}

func encodeAddPoints(points int) ([]byte, error) {
	body, err := json.Marshal(addPointsRequest{Points: points})
	if err != nil {
		return nil, fmt.Errorf("marshal add points: %w", err)
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, source models.AwardSource, base string, timeout time.Duration, userID int64, body []byte) Attempt {
	ctx, span := c.tracer.Start(ctx, "rewards.add_points",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("reward.source", string(source)),
			attribute.Int64("user.id", userID),
		))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	attempt := Attempt{Source: source}
	url := fmt.Sprintf("%s/users/%d/points/add", base, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		attempt.Status = StatusPermanent
		attempt.Err = fmt.Errorf("create request: %w", err)
		return finish(span, attempt, start)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		attempt.Status = classifyErr(err)
		attempt.Err = err
		return finish(span, attempt, start)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	attempt.StatusCode = resp.StatusCode
	attempt.Status = classifyStatus(resp.StatusCode)
	if attempt.Status != StatusSuccess {
		attempt.Err = &StatusError{Code: resp.StatusCode}
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	return finish(span, attempt, start)
}

func finish(span trace.Span, a Attempt, start time.Time) Attempt {
	a.Duration = time.Since(start)
	span.SetAttributes(attribute.String("reward.attempt_status", string(a.Status)))
	if a.Err != nil {
		span.RecordError(a.Err)
		span.SetStatus(codes.Error, a.Err.Error())
	}
	return a
}
