package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"aptchat/logging"
	"aptchat/models"
)

// TrainingSource loads the static training resource.
type TrainingSource interface {
	LoadTraining(ctx context.Context) (models.TrainingData, error)
}

// NewTrainingSource picks an HTTP source for http(s) locations and a file source otherwise.
func NewTrainingSource(location string, timeout time.Duration) TrainingSource {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPTrainingSource(location, timeout)
	}
	return NewFileTrainingSource(location)
}

// HTTPTrainingSource fetches training_data.json over HTTP.
type HTTPTrainingSource struct {
	url    string
	client *http.Client
}

func NewHTTPTrainingSource(url string, timeout time.Duration) *HTTPTrainingSource {
	return &HTTPTrainingSource{url: url, client: &http.Client{Timeout: timeout}}
}

func (s *HTTPTrainingSource) LoadTraining(ctx context.Context) (models.TrainingData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build training request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch training data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch training data: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read training data: %w", err)
	}
	return decodeTraining(body)
}

// FileTrainingSource reads training data from disk.
type FileTrainingSource struct {
	path string
}

func NewFileTrainingSource(path string) *FileTrainingSource {
	return &FileTrainingSource{path: path}
}

func (s *FileTrainingSource) LoadTraining(_ context.Context) (models.TrainingData, error) {
	body, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read training file %s: %w", s.path, err)
	}
	return decodeTraining(body)
}

func decodeTraining(body []byte) (models.TrainingData, error) {
	var data models.TrainingData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode training data: %w", err)
	}
	logging.L().Debugf("[TrainingSource] Loaded training data with %d tiers.", len(data))
	return data, nil
}
