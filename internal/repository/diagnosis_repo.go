package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/agrilens/leafsight/internal/domain"
	"gorm.io/gorm"
)

// DiagnosisRepository handles diagnosis history rows in the logs table.
// The table is append-only; there are no update or delete operations.
type DiagnosisRepository struct {
	db *gorm.DB
}

// NewDiagnosisRepository creates a repository bound to db.
func NewDiagnosisRepository(db *gorm.DB) *DiagnosisRepository {
	return &DiagnosisRepository{db: db}
}

// Create inserts one diagnosis record. The insert is the pipeline's single
// commit point; a failure here means no diagnosis happened.
func (r *DiagnosisRepository) Create(ctx context.Context, rec *domain.DiagnosisRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to insert diagnosis record: %w", err)
	}
	return nil
}

// Page returns up to limit records starting at offset, newest first.
func (r *DiagnosisRepository) Page(ctx context.Context, offset, limit int) ([]domain.DiagnosisRecord, error) {
	var records []domain.DiagnosisRecord
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query history page: %w", err)
	}
	return records, nil
}

// Count returns the total number of diagnosis records.
func (r *DiagnosisRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.DiagnosisRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count history rows: %w", err)
	}
	return count, nil
}

// CountByDisease returns per-label row counts, descending by count.
func (r *DiagnosisRepository) CountByDisease(ctx context.Context) ([]domain.DiseaseCount, error) {
	var counts []domain.DiseaseCount
	if err := r.db.WithContext(ctx).
		Model(&domain.DiagnosisRecord{}).
		Select("disease_type, COUNT(*) AS count").
		Group("disease_type").
		Order("count DESC").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count rows by disease: %w", err)
	}
	return counts, nil
}

// Now returns the persistence-layer clock. On PostgreSQL this is the
// server's now(); other drivers fall back to the process clock so records
// still carry a usable timestamp.
func (r *DiagnosisRepository) Now(ctx context.Context) (time.Time, error) {
	if r.db.Dialector.Name() != "postgres" {
		return time.Now(), nil
	}
	var now time.Time
	if err := r.db.WithContext(ctx).Raw("SELECT now()").Scan(&now).Error; err != nil {
		return time.Time{}, fmt.Errorf("failed to read database clock: %w", err)
	}
	return now, nil
}
