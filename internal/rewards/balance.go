package rewards

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eventpoints/backend/internal/models"
)

type balanceResponse struct {
	Data struct {
		Points *int `json:"points"`
	} `json:"data"`
}

// Balance reads the user's points total, primary first then fallback.
func (c *Client) Balance(ctx context.Context, userID int64) (int, models.AwardSource, error) {
	if c.primaryConfigured() {
		points, err := c.getBalance(ctx, c.cfg.PrimaryBaseURL, c.cfg.PrimaryTimeout, userID)
		if err == nil {
			return points, models.AwardSourcePrimary, nil
		}
		c.logger.Warn("primary points fetch failed", zap.Int64("user_id", userID), zap.Error(err))
	} else {
		c.skipPrimary(userID)
	}

	points, err := c.getBalance(ctx, c.cfg.FallbackBaseURL, c.cfg.FallbackTimeout, userID)
	if err == nil {
		return points, models.AwardSourceFallback, nil
	}
	c.logger.Error("fallback points fetch failed", zap.Int64("user_id", userID), zap.Error(err))
	return 0, models.AwardSourceNone, fmt.Errorf("%w: %v", ErrNoSource, err)
}

func (c *Client) getBalance(ctx context.Context, base string, timeout time.Duration, userID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/users/%d/points", base, userID), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{Code: resp.StatusCode}
	}
	var body balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode balance: %w", err)
	}
	if body.Data.Points == nil {
		return 0, fmt.Errorf("decode balance: missing data.points")
	}
	return *body.Data.Points, nil
}
