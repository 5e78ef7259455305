package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arnavshah/limits-settings-go/pkg/models"
)

// HTTPValidator calls a remote schedule validator service
type HTTPValidator struct {
	url    string
	client *http.Client
}

type validateRequest struct {
	ScheduleID  string              `json:"scheduleId"`
	DailyLimits []models.DailyLimit `json:"dailyLimits"`
	Staff       []models.Staff      `json:"staff"`
}

type validateResponse struct {
	Violations []string `json:"violations"`
}

// NewHTTPValidator creates a validator client. A zero timeout means none.
func NewHTTPValidator(url string, timeout time.Duration) *HTTPValidator {
	return &HTTPValidator{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Validate posts the proposed limits and decodes the violation list
func (v *HTTPValidator) Validate(ctx context.Context, scheduleID string, proposed []models.DailyLimit, roster []models.Staff) ([]string, error) {
	body, err := json.Marshal(validateRequest{
		ScheduleID:  scheduleID,
		DailyLimits: proposed,
		Staff:       roster,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("validator returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode validator response: %w", err)
	}
	return out.Violations, nil
}
