package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/coffee-scan/internal/artifact"
	"github.com/example/coffee-scan/internal/logging"
	"github.com/example/coffee-scan/internal/predictor"
	"github.com/example/coffee-scan/internal/repository"
)

// ScanStore defines the persistence operations needed by the scan flow.
type ScanStore interface {
	Save(ctx context.Context, record *repository.ScanRecord) error
	FindByScanIDAndUser(ctx context.Context, scanID string, userID uint) (*repository.ScanRecord, error)
	ListByUser(ctx context.Context, userID uint) ([]*repository.ScanRecord, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// Artifacts is the slice of the artifact manager the scan flow uses.
type Artifacts interface {
	Commit(ctx context.Context, stagedPath, name string) (*artifact.Ref, error)
	Discard(stagedPath string)
}

// ScanUseCase orchestrates a submission through its stages: invoke the
// predictor, validate its output, commit the artifact, write the record.
// Stages run strictly in sequence and the staged upload is removed in every
// outcome; the permanent copy is never rolled back once committed.
type ScanUseCase struct {
	records        ScanStore
	cache          Cache
	invoker        predictor.Invoker
	artifacts      Artifacts
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// ScanResponse is the caller-facing result of a completed submission.
type ScanResponse struct {
	ScanID         string  `json:"scan_id"`
	Flavor         float64 `json:"flavor"`
	Aroma          float64 `json:"aroma"`
	Body           float64 `json:"body"`
	Acidity        float64 `json:"acidity"`
	OverallQuality float64 `json:"overall_quality"`
	ImagePath      string  `json:"image_path"`
}

// ScanHistoryEntry is one row of a user's scan history.
type ScanHistoryEntry struct {
	ID             uint      `json:"id"`
	ScanID         string    `json:"scan_id"`
	ImagePath      string    `json:"image_path"`
	Flavor         float64   `json:"flavor"`
	Aroma          float64   `json:"aroma"`
	Body           float64   `json:"body"`
	Acidity        float64   `json:"acidity"`
	OverallQuality float64   `json:"overall_quality"`
	CreatedAt      time.Time `json:"created_at"`
}

type cachedScan struct {
	ScanID         string    `json:"scan_id"`
	UserID         uint      `json:"user_id"`
	Flavor         float64   `json:"flavor"`
	Aroma          float64   `json:"aroma"`
	Body           float64   `json:"body"`
	Acidity        float64   `json:"acidity"`
	OverallQuality float64   `json:"overall_quality"`
	ImagePath      string    `json:"image_path"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewScanUseCase constructs a new scan use case instance.
func NewScanUseCase(records ScanStore, cache Cache, invoker predictor.Invoker, artifacts Artifacts, logger *zap.Logger) *ScanUseCase {
	return &ScanUseCase{
		records:        records,
		cache:          cache,
		invoker:        invoker,
		artifacts:      artifacts,
		logger:         logger.Named("scan_usecase"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// Submit drives one staged upload through the pipeline. Whatever the outcome,
// the staged file is discarded before returning.
func (uc *ScanUseCase) Submit(ctx context.Context, userID uint, stagedPath, stagedName string) (*ScanResponse, error) {
	scanID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.submit_scan", scanID)

	// The permanent store copies rather than moves, so discard applies on
	// the success path too.
	defer uc.artifacts.Discard(stagedPath)

	cacheKey := fmt.Sprintf("scan:%s", scanID)
	uc.cacheSet(ctx, scanID, "cache.set.processing", cacheKey, "processing", time.Minute)

	raw, err := uc.invoker.Invoke(ctx, stagedPath)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.invoke_predictor", scanID, err)
		opLogger.Error("predictor invocation failed", zap.Error(wrapped))
		return nil, wrapped
	}

	result, err := predictor.Parse(raw)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.validate_output", scanID, err)
		opLogger.Error("predictor output rejected", zap.Error(wrapped))
		return nil, wrapped
	}

	ref, err := uc.artifacts.Commit(ctx, stagedPath, stagedName)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.commit_artifact", scanID, err)
		opLogger.Error("artifact commit failed", zap.Error(wrapped))
		return nil, wrapped
	}

	record := &repository.ScanRecord{
		ScanID:         scanID,
		UserID:         userID,
		ImagePath:      ref.Name,
		Flavor:         result.Flavor,
		Aroma:          result.Aroma,
		Body:           result.Body,
		Acidity:        result.Acidity,
		OverallQuality: result.OverallQuality,
		CreatedAt:      time.Now().UTC(),
	}
	if err := uc.records.Save(ctx, record); err != nil {
		wrapped := logging.NewOperationError("usecase.save_record", scanID, err)
		// The committed artifact is not rolled back; log the ref so the
		// orphan can be reconciled out of band.
		opLogger.Error("failed to persist scan record, permanent artifact orphaned",
			zap.Error(wrapped),
			zap.String("artifact", ref.Name))
		return nil, wrapped
	}

	cached := cachedScan{
		ScanID:         scanID,
		UserID:         userID,
		Flavor:         record.Flavor,
		Aroma:          record.Aroma,
		Body:           record.Body,
		Acidity:        record.Acidity,
		OverallQuality: record.OverallQuality,
		ImagePath:      record.ImagePath,
		CreatedAt:      record.CreatedAt,
	}
	if serialized, err := json.Marshal(cached); err == nil {
		uc.cacheSet(ctx, scanID, "cache.set.result", cacheKey, string(serialized), 5*time.Minute)
	}

	return &ScanResponse{
		ScanID:         scanID,
		Flavor:         result.Flavor,
		Aroma:          result.Aroma,
		Body:           result.Body,
		Acidity:        result.Acidity,
		OverallQuality: result.OverallQuality,
		ImagePath:      ref.URL,
	}, nil
}

// Result retrieves a scan outcome from cache, falling back to the store.
func (uc *ScanUseCase) Result(ctx context.Context, userID uint, scanID string) (*repository.ScanRecord, error) {
	cacheKey := fmt.Sprintf("scan:%s", scanID)
	if cached, err := uc.withRedisGet(ctx, scanID, "cache.get.result", cacheKey); err == nil {
		var payload cachedScan
		if err := json.Unmarshal([]byte(cached), &payload); err != nil || payload.ScanID == "" {
			logging.WithOperation(uc.logger, "usecase.get_result", scanID).Warn("failed to decode cached result", zap.Error(err))
		} else if payload.UserID == userID {
			return &repository.ScanRecord{
				ScanID:         payload.ScanID,
				UserID:         payload.UserID,
				ImagePath:      payload.ImagePath,
				Flavor:         payload.Flavor,
				Aroma:          payload.Aroma,
				Body:           payload.Body,
				Acidity:        payload.Acidity,
				OverallQuality: payload.OverallQuality,
				CreatedAt:      payload.CreatedAt,
			}, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.get_result", scanID).Warn("failed to read cache", zap.Error(err))
	}

	return uc.records.FindByScanIDAndUser(ctx, scanID, userID)
}

// History lists a user's scans, newest first.
func (uc *ScanUseCase) History(ctx context.Context, userID uint) ([]ScanHistoryEntry, error) {
	records, err := uc.records.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries := make([]ScanHistoryEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, ScanHistoryEntry{
			ID:             record.ID,
			ScanID:         record.ScanID,
			ImagePath:      record.ImagePath,
			Flavor:         record.Flavor,
			Aroma:          record.Aroma,
			Body:           record.Body,
			Acidity:        record.Acidity,
			OverallQuality: record.OverallQuality,
			CreatedAt:      record.CreatedAt,
		})
	}
	return entries, nil
}

// cacheSet writes to the cache with retries; cache failures never abort a
// submission, they are logged and the pipeline continues.
func (uc *ScanUseCase) cacheSet(ctx context.Context, scanID, operation, key, value string, ttl time.Duration) {
	err := uc.withRedisRetry(ctx, scanID, operation, func() error {
		return uc.cache.Set(ctx, key, value, ttl)
	})
	if err != nil {
		logging.WithOperation(uc.logger, operation, scanID).Warn("cache write failed", zap.Error(err))
	}
}

func (uc *ScanUseCase) withRedisRetry(ctx context.Context, scanID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		return logging.NewOperationError(operation, scanID, fn())
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, scanID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, scanID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			return logging.NewOperationError(operation, scanID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, scanID, err)
}

func (uc *ScanUseCase) withRedisGet(ctx context.Context, scanID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, scanID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
