package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ScanRecord links a user, a permanent artifact, and its predicted scores.
// Records are written exactly once per successful submission and never
// mutated afterwards.
type ScanRecord struct {
	ID             uint      `gorm:"primaryKey"`
	ScanID         string    `gorm:"column:scan_id;uniqueIndex;size:64"`
	UserID         uint      `gorm:"column:user_id;index"`
	ImagePath      string    `gorm:"column:image_path;size:255"`
	Flavor         float64   `gorm:"column:flavor"`
	Aroma          float64   `gorm:"column:aroma"`
	Body           float64   `gorm:"column:body"`
	Acidity        float64   `gorm:"column:acidity"`
	OverallQuality float64   `gorm:"column:overall_quality"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (ScanRecord) TableName() string {
	return "scan_history"
}

// WriteErrorKind distinguishes record-write failures.
type WriteErrorKind string

const (
	// WriteKindStoreUnavailable covers connection and execution failures.
	WriteKindStoreUnavailable WriteErrorKind = "store_unavailable"
	// WriteKindConstraintViolation covers unique/foreign key violations.
	WriteKindConstraintViolation WriteErrorKind = "constraint_violation"
)

// WriteError reports a failed scan record insert.
type WriteError struct {
	Kind WriteErrorKind
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("scan record write failed (%s): %v", e.Kind, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// MetricsAggregation holds store-side aggregates over all scan records.
type MetricsAggregation struct {
	TotalScans            int64   `gorm:"column:total_scans"`
	AverageFlavor         float64 `gorm:"column:avg_flavor"`
	AverageAroma          float64 `gorm:"column:avg_aroma"`
	AverageBody           float64 `gorm:"column:avg_body"`
	AverageAcidity        float64 `gorm:"column:avg_acidity"`
	AverageOverallQuality float64 `gorm:"column:avg_overall_quality"`
}

// ScanRepository provides persistence APIs for scan records.
type ScanRepository struct {
	db *gorm.DB
	retrier
}

// NewScanRepository creates a new repository instance.
func NewScanRepository(db *gorm.DB, logger *zap.Logger) *ScanRepository {
	return &ScanRepository{db: db, retrier: newRetrier(logger.Named("scan_repository"))}
}

// AutoMigrate ensures the scan_history schema is available.
func (r *ScanRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&ScanRecord{})
}

// Save persists a scan record as a single insert.
func (r *ScanRepository) Save(ctx context.Context, record *ScanRecord) error {
	err := r.executeWithRetry(ctx, "repository.save_scan", record.ScanID, func() error {
		return r.db.WithContext(ctx).Create(record).Error
	})
	if err == nil {
		return nil
	}
	kind := WriteKindStoreUnavailable
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		kind = WriteKindConstraintViolation
	}
	return &WriteError{Kind: kind, Err: err}
}

// FindByScanIDAndUser retrieves a scan record matching the scan and owner.
func (r *ScanRepository) FindByScanIDAndUser(ctx context.Context, scanID string, userID uint) (*ScanRecord, error) {
	var record ScanRecord
	err := r.executeWithRetry(ctx, "repository.find_scan", scanID, func() error {
		return r.db.WithContext(ctx).First(&record, "scan_id = ? AND user_id = ?", scanID, userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByUser returns a user's scans, newest first.
func (r *ScanRepository) ListByUser(ctx context.Context, userID uint) ([]*ScanRecord, error) {
	var records []*ScanRecord
	err := r.executeWithRetry(ctx, "repository.list_scans", "", func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ?", userID).
			Order("created_at DESC").
			Find(&records).Error
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// AggregateMetrics computes store-side aggregates over all scan records.
func (r *ScanRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var aggregation MetricsAggregation
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		return r.db.WithContext(ctx).
			Model(&ScanRecord{}).
			Select("COUNT(*) AS total_scans, " +
				"COALESCE(AVG(flavor), 0) AS avg_flavor, " +
				"COALESCE(AVG(aroma), 0) AS avg_aroma, " +
				"COALESCE(AVG(body), 0) AS avg_body, " +
				"COALESCE(AVG(acidity), 0) AS avg_acidity, " +
				"COALESCE(AVG(overall_quality), 0) AS avg_overall_quality").
			Scan(&aggregation).Error
	})
	if err != nil {
		return nil, err
	}
	return &aggregation, nil
}
