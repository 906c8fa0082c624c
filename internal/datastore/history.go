package datastore

import (
	"context"
	"time"

	"github.com/lesionscan/lesionscan/internal/observability/metrics"
)

// Record appends one history entry stamped with the current time.
func (ds *DataStore) Record(ctx context.Context, userID uint, image, prediction string) (entry *HistoryEntry, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpRecord, start, err) }()

	if ds.DB == nil {
		return nil, ErrNotInitialized
	}
	if userID == 0 {
		return nil, validationError("user id is required", "user_id")
	}
	if image == "" || prediction == "" {
		return nil, validationError("image and prediction are required", "image")
	}

	entry = &HistoryEntry{
		UserID:     userID,
		Image:      image,
		Prediction: prediction,
		Date:       ds.now(),
	}
	if err := ds.DB.WithContext(ctx).Omit("User").Create(entry).Error; err != nil {
		return nil, dbError(err, "record", "user_id", userID)
	}
	return entry, nil
}

// ListFor returns a user's history newest first. It returns an empty,
// non-nil slice when there is none.
func (ds *DataStore) ListFor(ctx context.Context, userID uint) (entries []HistoryEntry, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpListFor, start, err) }()

	if ds.DB == nil {
		return nil, ErrNotInitialized
	}

	entries = make([]HistoryEntry, 0)
	if err := ds.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC").
		Order("id DESC").
		Find(&entries).Error; err != nil {
		return nil, dbError(err, "list_for", "user_id", userID)
	}
	return entries, nil
}

// Count returns the number of history entries for a user.
func (ds *DataStore) Count(ctx context.Context, userID uint) (n int64, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpCount, start, err) }()

	if ds.DB == nil {
		return 0, ErrNotInitialized
	}
	if err := ds.DB.WithContext(ctx).Model(&HistoryEntry{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, dbError(err, "count", "user_id", userID)
	}
	return n, nil
}
