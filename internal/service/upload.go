package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/agrilens/leafsight/internal/cache"
	"github.com/agrilens/leafsight/internal/domain"
	"github.com/agrilens/leafsight/internal/logger"
	"github.com/agrilens/leafsight/internal/storage"
	"github.com/google/uuid"
)

// Validation failures reported before the pipeline starts. They never
// trigger cache invalidation because no state has changed.
var (
	ErrMissingImage   = errors.New("no image provided")
	ErrAmbiguousImage = errors.New("both file and base64 image provided")
)

// Diagnosis timestamps are recorded in local farm time rather than UTC.
var recordZone = time.FixedZone("UTC+8", 8*60*60)

// Fixed texts attached to a healthy result, which skips enrichment.
const (
	healthyDescription  = "Image is healthy, no disease detected."
	healthyPrescription = "No action needed."
	healthyMitigation   = "Maintain healthy practices."
)

// Classifier produces raw model predictions for an image.
type Classifier interface {
	Classify(ctx context.Context, image []byte) ([]domain.Prediction, error)
}

// Annotator renders predictions onto an image.
type Annotator interface {
	Annotate(img []byte, preds []domain.Prediction) ([]byte, error)
}

// Suggester produces a per-diagnosis explanation.
type Suggester interface {
	Suggest(ctx context.Context, disease string, confidence int, imageURL string) (domain.Suggestion, error)
}

// DiagnosisStore is the persistence surface the pipeline needs.
type DiagnosisStore interface {
	Create(ctx context.Context, rec *domain.DiagnosisRecord) error
	Page(ctx context.Context, offset, limit int) ([]domain.DiagnosisRecord, error)
	Count(ctx context.Context) (int64, error)
	CountByDisease(ctx context.Context) ([]domain.DiseaseCount, error)
	Now(ctx context.Context) (time.Time, error)
}

// UploadService runs the diagnosis pipeline: classify, annotate, upload,
// explain, persist, invalidate. Persistence is the commit point; any
// failure before it leaves the database untouched.
type UploadService struct {
	detector  Classifier
	renderer  Annotator
	suggester Suggester
	store     DiagnosisStore
	storage   storage.ObjectStorage
	cache     *cache.Store
	folder    string
}

func NewUploadService(detector Classifier, renderer Annotator, suggester Suggester, store DiagnosisStore, objStorage storage.ObjectStorage, cacheStore *cache.Store, folder string) *UploadService {
	return &UploadService{
		detector:  detector,
		renderer:  renderer,
		suggester: suggester,
		store:     store,
		storage:   objStorage,
		cache:     cacheStore,
		folder:    folder,
	}
}

// UploadInput carries exactly one image source: a temp file saved from a
// multipart upload, or a base64 payload from a JSON/form body.
type UploadInput struct {
	FilePath string
	Base64   string
}

// Process runs one image through the full diagnosis pipeline and returns
// the stored record. The temp file, when present, is removed regardless of
// outcome.
func (s *UploadService) Process(ctx context.Context, input UploadInput) (*domain.DiagnosisRecord, error) {
	if input.FilePath != "" {
		defer os.Remove(input.FilePath)
	}

	image, err := decodeInput(input)
	if err != nil {
		return nil, err
	}

	rec, err := s.run(ctx, image)
	if err != nil {
		// The pipeline may have died between persist and invalidation
		// or mid-flight with external side effects; dropping the
		// summary forces the next read to recompute from the database.
		s.cache.Delete(summaryCacheKey)
		return nil, err
	}
	return rec, nil
}

func decodeInput(input UploadInput) ([]byte, error) {
	switch {
	case input.FilePath == "" && input.Base64 == "":
		return nil, ErrMissingImage
	case input.FilePath != "" && input.Base64 != "":
		return nil, ErrAmbiguousImage
	case input.FilePath != "":
		data, err := os.ReadFile(input.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read uploaded file: %w", err)
		}
		return data, nil
	default:
		payload := input.Base64
		if idx := strings.Index(payload, ","); idx != -1 && strings.HasPrefix(payload, "data:") {
			payload = payload[idx+1:]
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 image: %w", err)
		}
		return data, nil
	}
}

func (s *UploadService) run(ctx context.Context, image []byte) (*domain.DiagnosisRecord, error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	preds, err := s.detector.Classify(ctx, image)
	if err != nil {
		return nil, err
	}

	top, found := domain.TopPrediction(preds)
	if !found || domain.IsHealthyLabel(top.Class) {
		log.WithField(logger.FieldStage, "classify").
			WithField(logger.FieldDurationMs, time.Since(start).Milliseconds()).
			Info("No disease detected, returning healthy result")
		return healthyRecord(), nil
	}

	annotated, err := s.renderer.Annotate(image, preds)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	key := fmt.Sprintf("%s/%s.jpg", s.folder, id)
	if err := s.storage.Upload(ctx, key, bytes.NewReader(annotated), int64(len(annotated)), "image/jpeg"); err != nil {
		return nil, fmt.Errorf("failed to upload annotated image: %w", err)
	}
	imageURL := s.storage.GetURL(key)

	confidence := int(math.Round(top.Confidence * 100))

	sugg, err := s.suggester.Suggest(ctx, top.Class, confidence, imageURL)
	if err != nil {
		return nil, err
	}

	predsJSON, err := json.Marshal(preds)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize predictions: %w", err)
	}
	predsStr := string(predsJSON)

	now, err := s.store.Now(ctx)
	if err != nil {
		return nil, err
	}

	rec := &domain.DiagnosisRecord{
		ID:                   id,
		DiseaseType:          top.Class,
		ConfidenceScore:      confidence,
		AnnotatedImageURL:    &imageURL,
		Description:          sugg.Summary,
		Prescription:         sugg.Prescription,
		MitigationStrategies: sugg.Mitigation,
		Predictions:          &predsStr,
		CreatedAt:            now.In(recordZone),
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.cache.Delete(summaryCacheKey)
	s.cache.DeleteByPrefix(historyPagePrefix)

	log.WithField(logger.FieldUploadID, id).
		WithField(logger.FieldDisease, top.Class).
		WithField(logger.FieldDurationMs, time.Since(start).Milliseconds()).
		Info("Diagnosis stored")

	return rec, nil
}

// healthyRecord builds the fixed healthy response. It is never persisted
// and never invalidates caches: only disease diagnoses enter history.
func healthyRecord() *domain.DiagnosisRecord {
	return &domain.DiagnosisRecord{
		ID:                   uuid.New().String(),
		DiseaseType:          domain.LabelHealthy,
		ConfidenceScore:      100,
		Description:          healthyDescription,
		Prescription:         healthyPrescription,
		MitigationStrategies: healthyMitigation,
		CreatedAt:            time.Now().In(recordZone),
	}
}
