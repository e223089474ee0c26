package domain

import (
	"strings"
	"time"
)

// LabelHealthy is the reserved classification label for a leaf with no
// detected disease. Comparisons against it are case-insensitive.
const LabelHealthy = "Healthy"

// IsHealthyLabel reports whether label is the reserved healthy label.
func IsHealthyLabel(label string) bool {
	return strings.EqualFold(label, LabelHealthy)
}

// Prediction is a single detection returned by the inference endpoint.
// Geometry is in source-image pixel space with (X, Y) at the box centroid.
type Prediction struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// TopPrediction returns the prediction with the maximum confidence.
// Exact ties resolve to the first-listed prediction; ok is false for an
// empty list.
func TopPrediction(preds []Prediction) (Prediction, bool) {
	if len(preds) == 0 {
		return Prediction{}, false
	}
	top := preds[0]
	for _, p := range preds[1:] {
		if p.Confidence > top.Confidence {
			top = p
		}
	}
	return top, true
}

// DiagnosisRecord is one persisted diagnosis event. Rows are append-only
// and immutable once written. AnnotatedImageURL and Predictions are nil
// for the healthy case.
type DiagnosisRecord struct {
	ID                   string    `gorm:"type:text;primaryKey" json:"id"`
	DiseaseType          string    `gorm:"type:text;not null;index:idx_logs_disease_type" json:"disease_type"`
	ConfidenceScore      int       `gorm:"not null" json:"confidence_score"`
	AnnotatedImageURL    *string   `gorm:"type:text" json:"annotated_image_url"`
	Description          string    `gorm:"type:text" json:"description"`
	Prescription         string    `gorm:"type:text" json:"prescription"`
	MitigationStrategies string    `gorm:"type:text" json:"mitigation_strategies"`
	Predictions          *string   `gorm:"type:text" json:"predictions"`
	CreatedAt            time.Time `json:"created_at"`
}

// TableName maps the record onto the legacy logs table.
func (DiagnosisRecord) TableName() string {
	return "logs"
}

// KnowledgeRecord is the generated explanation for one disease label.
// Failed marks a degraded record whose text fields carry sentinel error
// strings because enrichment did not complete. Never persisted.
type KnowledgeRecord struct {
	DiseaseType  string `json:"disease_type"`
	Description  string `json:"description"`
	Prescription string `json:"prescription"`
	Mitigation   string `json:"mitigation"`
	Source       string `json:"source"`
	Failed       bool   `json:"error,omitempty"`
}

// Suggestion is the live, per-upload enrichment result attached to a
// freshly classified image.
type Suggestion struct {
	Summary      string `json:"summary"`
	Prescription string `json:"prescription"`
	Mitigation   string `json:"mitigation"`
}

// DiseaseInfo is one entry of the combined catalog: knowledge text plus
// a representative reference image.
type DiseaseInfo struct {
	KnowledgeRecord
	Image string `json:"image"`
}

// DiseaseCount is a grouped history count for one disease label.
type DiseaseCount struct {
	DiseaseType string `json:"disease_type"`
	Count       int64  `json:"count"`
}

// SummaryEntry is one row of the per-disease frequency report.
type SummaryEntry struct {
	DiseaseType string `json:"disease_type"`
	Image       string `json:"image"`
	Count       int64  `json:"count"`
}

// HistoryPage is a window of diagnosis history plus the total row count
// for pagination metadata.
type HistoryPage struct {
	Data  []DiagnosisRecord `json:"data"`
	Total int64             `json:"total"`
}
