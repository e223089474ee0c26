package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agrilens/leafsight/internal/cache"
	"github.com/agrilens/leafsight/internal/config"
	"github.com/agrilens/leafsight/internal/domain"
	"github.com/agrilens/leafsight/internal/logger"
	"github.com/agrilens/leafsight/internal/prompts"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"
)

const cacheKeyDiseaseInfo = "combined_disease_info"

// enrichmentConcurrency bounds the fan-out of per-label completion calls.
const enrichmentConcurrency = 4

// Sentinel texts carried by a degraded KnowledgeRecord when catalog
// enrichment fails for one label.
const (
	degradedDescription  = "Error generating description."
	degradedPrescription = "Error generating prescription."
	degradedMitigation   = "Error generating mitigation."
)

// KnowledgeService produces structured disease explanations by prompting a
// generative text model. Two entry points with different failure contracts:
// DiseaseText degrades to a sentinel record so batch catalog assembly stays
// total, Suggest propagates errors because a live diagnosis explanation
// failing must be surfaced.
type KnowledgeService struct {
	client      *resty.Client
	endpoint    string
	model       string
	temperature float32
	sourceURL   string

	catalog *CatalogService
	images  *ImageMapService
	cache   *cache.Store
}

// NewKnowledgeService creates an enrichment service reading through store.
// sourceURL is the knowledge-base page cited in prompts and source fields.
func NewKnowledgeService(cfg *config.LLMConfig, sourceURL string, catalog *CatalogService, images *ImageMapService, store *cache.Store) *KnowledgeService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(cfg.Timeout)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}

	return &KnowledgeService{
		client:      client,
		endpoint:    strings.TrimSuffix(baseURL, "/") + "/chat/completions",
		model:       cfg.Model,
		temperature: cfg.Temperature,
		sourceURL:   sourceURL,
		catalog:     catalog,
		images:      images,
		cache:       store,
	}
}

// OpenAI-compatible Chat Completion API request/response structures
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// complete sends one system/user prompt pair and returns the raw model
// text.
func (s *KnowledgeService) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	req := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: s.temperature,
		MaxTokens:   maxTokens,
	}

	var resp chatResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to call completion API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d", httpResp.StatusCode())
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		} else if len(httpResp.Body()) > 0 {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
		}
		return "", fmt.Errorf("completion API returned error: %s", errorMsg)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("completion API error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response (status: %d)", httpResp.StatusCode())
	}

	return resp.Choices[0].Message.Content, nil
}

// DiseaseText returns the knowledge record for one label, cache-fronted
// per label. Transport or parse failure yields a degraded record with
// sentinel text instead of an error, so one bad label never poisons the
// catalog batch. Degraded records are not cached; the next read retries.
func (s *KnowledgeService) DiseaseText(ctx context.Context, label string) domain.KnowledgeRecord {
	key := cache.Key("disease_info", slug(label))
	if v, ok := s.cache.Get(key); ok {
		if rec, ok := v.(domain.KnowledgeRecord); ok {
			return rec
		}
	}

	raw, err := s.complete(ctx, prompts.CatalogSystemPrompt(s.sourceURL), prompts.CatalogUserPrompt(label), 900)
	if err != nil {
		logger.FromContext(ctx).WithField(logger.FieldDisease, label).WithError(err).
			Warn("Catalog enrichment failed, returning degraded record")
		return s.degradedRecord(label)
	}

	var parsed struct {
		Description  string `json:"description"`
		Prescription string `json:"prescription"`
		Mitigation   string `json:"mitigation"`
		Source       string `json:"source"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		logger.FromContext(ctx).WithField(logger.FieldDisease, label).WithError(err).
			Warn("Catalog enrichment returned malformed JSON, returning degraded record")
		return s.degradedRecord(label)
	}

	rec := domain.KnowledgeRecord{
		DiseaseType:  label,
		Description:  strings.TrimSpace(parsed.Description),
		Prescription: strings.TrimSpace(parsed.Prescription),
		Mitigation:   strings.TrimSpace(parsed.Mitigation),
		Source:       strings.TrimSpace(parsed.Source),
	}
	if rec.Source == "" {
		rec.Source = s.sourceURL
	}

	s.cache.Set(key, rec)
	return rec
}

func (s *KnowledgeService) degradedRecord(label string) domain.KnowledgeRecord {
	return domain.KnowledgeRecord{
		DiseaseType:  label,
		Description:  degradedDescription,
		Prescription: degradedPrescription,
		Mitigation:   degradedMitigation,
		Source:       s.sourceURL,
		Failed:       true,
	}
}

// Suggest returns an explanation for one freshly classified image,
// cache-fronted per (label, confidence). Unlike DiseaseText, transport and
// parse failures propagate: this path has no fallback text.
func (s *KnowledgeService) Suggest(ctx context.Context, disease string, confidence int, imageURL string) (domain.Suggestion, error) {
	key := cache.Key("ai", slug(disease), confidence)
	if v, ok := s.cache.Get(key); ok {
		if sugg, ok := v.(domain.Suggestion); ok {
			return sugg, nil
		}
	}

	raw, err := s.complete(ctx, prompts.SuggestionSystemPrompt, prompts.SuggestionUserPrompt(disease, confidence, imageURL), 800)
	if err != nil {
		return domain.Suggestion{}, err
	}

	var sugg domain.Suggestion
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &sugg); err != nil {
		return domain.Suggestion{}, fmt.Errorf("failed to parse suggestion JSON: %w (raw response: %s)", err, raw)
	}

	sugg.Summary = strings.TrimSpace(sugg.Summary)
	sugg.Prescription = strings.TrimSpace(sugg.Prescription)
	sugg.Mitigation = strings.TrimSpace(sugg.Mitigation)

	s.cache.Set(key, sugg)
	return sugg, nil
}

// DiseaseInfo assembles the combined catalog: every non-healthy label with
// its knowledge text and reference image, cached under one key. The image
// map fetch and per-label enrichment run concurrently; a failure in the
// label or image branch fails the whole call, while individual enrichment
// failures surface as degraded entries.
//
// The write path never invalidates this key: a new diagnosis does not
// change disease knowledge or taxonomy.
func (s *KnowledgeService) DiseaseInfo(ctx context.Context) ([]domain.DiseaseInfo, error) {
	if v, ok := s.cache.Get(cacheKeyDiseaseInfo); ok {
		if infos, ok := v.([]domain.DiseaseInfo); ok {
			return infos, nil
		}
	}

	labels, err := s.catalog.Labels(ctx)
	if err != nil {
		return nil, err
	}

	diseased := make([]string, 0, len(labels))
	for _, label := range labels {
		if !domain.IsHealthyLabel(label) {
			diseased = append(diseased, label)
		}
	}

	records := make([]domain.KnowledgeRecord, len(diseased))
	var imageMap map[string]string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichmentConcurrency)

	g.Go(func() error {
		m, err := s.images.Resolve(gctx, labels)
		if err != nil {
			return err
		}
		imageMap = m
		return nil
	})

	for i, label := range diseased {
		i, label := i, label
		g.Go(func() error {
			records[i] = s.DiseaseText(gctx, label)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	infos := make([]domain.DiseaseInfo, len(diseased))
	degraded := false
	for i, rec := range records {
		if rec.Failed {
			degraded = true
		}
		infos[i] = domain.DiseaseInfo{
			KnowledgeRecord: rec,
			Image:           imageMap[rec.DiseaseType],
		}
	}

	// A batch with degraded entries stays uncached so the next read
	// retries the failed labels.
	if !degraded {
		s.cache.Set(cacheKeyDiseaseInfo, infos)
	}
	return infos, nil
}

// slug normalizes a label for use inside a cache key.
func slug(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "_")
}
