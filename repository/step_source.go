package repository

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

	"aptchat/logging"
	"aptchat/models"
)

// maxResponseBytes bounds the size of backend responses read into memory.
const maxResponseBytes = 1 << 20

// ErrStepNotFound is returned when no step exists for a key.
var ErrStepNotFound = errors.New("assessment step not found")

// StepSource resolves a step key to its definition.
type StepSource interface {
	FetchStep(ctx context.Context, key models.StepID) (*models.AssessmentStep, error)
}

// RemoteStepSource fetches steps from the backend's /api/get_assessment_step endpoint.
type RemoteStepSource struct {
	endpoint string
	client   *http.Client
}

// NewRemoteStepSource creates a client for the backend at baseURL.
func NewRemoteStepSource(baseURL string, timeout time.Duration) *RemoteStepSource {
	return &RemoteStepSource{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/get_assessment_step",
		client:   &http.Client{Timeout: timeout},
	}
}

type stepResponse struct {
	Text    string          `json:"text"`
	Options []models.Option `json:"options"`
	Error   string          `json:"error,omitempty"`
}

// FetchStep posts {stepKey} and decodes the returned step. Non-2xx responses are errors;
// 404 wraps ErrStepNotFound.
func (s *RemoteStepSource) FetchStep(ctx context.Context, key models.StepID) (*models.AssessmentStep, error) {
	payload, err := json.Marshal(models.StepRequest{StepKey: string(key)})
	if err != nil {
		return nil, fmt.Errorf("encode step request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build step request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logging.L().Debugf("[StepSource] Requesting step '%s' from %s", key, s.endpoint)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch step '%s': %w", key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read step '%s' response: %w", key, err)
	}

	var decoded stepResponse
	decodeErr := json.Unmarshal(body, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := resp.Status
		if decodeErr == nil && decoded.Error != "" {
			msg = decoded.Error
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("step '%s': %s: %w", key, msg, ErrStepNotFound)
		}
		return nil, fmt.Errorf("backend returned %d for step '%s': %s", resp.StatusCode, key, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode step '%s': %w", key, decodeErr)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("backend reported error for step '%s': %s", key, decoded.Error)
	}

	return &models.AssessmentStep{
		Key:     key,
		Text:    decoded.Text,
		Options: decoded.Options,
	}, nil
}

// FallbackStepSource tries a primary source and, on any failure, a secondary one.
type FallbackStepSource struct {
	primary   StepSource
	secondary StepSource
}

// NewFallbackStepSource chains two sources.
func NewFallbackStepSource(primary, secondary StepSource) *FallbackStepSource {
	return &FallbackStepSource{primary: primary, secondary: secondary}
}

func (s *FallbackStepSource) FetchStep(ctx context.Context, key models.StepID) (*models.AssessmentStep, error) {
	step, err := s.primary.FetchStep(ctx, key)
	if err == nil {
		return step, nil
	}
	logging.L().Warnf("[StepSource] Primary source failed for step '%s', using local catalog: %v", key, err)

	step, fallbackErr := s.secondary.FetchStep(ctx, key)
	if fallbackErr != nil {
		return nil, errors.Join(err, fallbackErr)
	}
	return step, nil
}
