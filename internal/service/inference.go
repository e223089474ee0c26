package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/agrilens/leafsight/internal/config"
	"github.com/agrilens/leafsight/internal/domain"
	"github.com/go-resty/resty/v2"
)

// DetectionService runs object detection against a hosted inference
// endpoint. The image is sent base64-encoded as a urlencoded body, the way
// the serverless detection API expects it. Results are never cached: two
// uploads of the same bytes are still two independent diagnoses.
type DetectionService struct {
	client   *resty.Client
	endpoint string
	apiKey   string
}

func NewDetectionService(cfg *config.DetectionConfig) *DetectionService {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://serverless.roboflow.com"
	}

	return &DetectionService{
		client:   client,
		endpoint: fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(baseURL, "/"), cfg.Model, cfg.Version),
		apiKey:   cfg.APIKey,
	}
}

type detectionResponse struct {
	Predictions []domain.Prediction `json:"predictions"`
}

// Classify sends one image and returns every prediction the model emits,
// in response order. An empty slice is a valid answer meaning no disease
// regions were found.
func (s *DetectionService) Classify(ctx context.Context, image []byte) ([]domain.Prediction, error) {
	encoded := base64.StdEncoding.EncodeToString(image)

	var resp detectionResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("api_key", s.apiKey).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(encoded).
		SetResult(&resp).
		Post(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call detection API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return nil, fmt.Errorf("detection API returned HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
	}

	return resp.Predictions, nil
}
