package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aqualaguna/direct-commerce-sub002/internal/config"
	"github.com/aqualaguna/direct-commerce-sub002/internal/models"
	"github.com/aqualaguna/direct-commerce-sub002/internal/repository"
)

func retentionConfig() config.RetentionConfig {
	return config.RetentionConfig{
		RetentionDays:        90,
		FailedRetentionDays:  30,
		SessionRetentionDays: 7,
		AnonymizeAfterDays:   180,
		ArchiveAfterDays:     365,
		PageSize:             500,
	}
}

func daysAgo(n int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -n)
}

func TestRunDailyCleanup(t *testing.T) {
	store := repository.NewMemoryActivityRepository()
	svc := NewRetentionService(store, retentionConfig(), testLogger(), nil, nil)

	addRecord(t, store, models.ActivityPageView, daysAgo(100), nil)
	addRecord(t, store, models.ActivityPageView, daysAgo(40), func(r *models.ActivityRecord) {
		r.Success = false
	})
	addRecord(t, store, models.ActivityLogin, daysAgo(10), nil)
	addRecord(t, store, models.ActivityPageView, daysAgo(1), nil)

	result := svc.RunDaily(context.Background())

	// 100d record falls to the primary window, the 40d failed record
	// to the failed window; the 10d login is only swept, not deleted.
	assert.Equal(t, 2, result.Deleted)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Errors)

	n, err := store.Count(context.Background(), repository.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRunDailyCleanupIdempotent(t *testing.T) {
	store := repository.NewMemoryActivityRepository()
	svc := NewRetentionService(store, retentionConfig(), testLogger(), nil, nil)

	addRecord(t, store, models.ActivityPageView, daysAgo(120), nil)
	addRecord(t, store, models.ActivityPageView, daysAgo(5), nil)

	first := svc.RunDaily(context.Background())
	assert.Equal(t, 1, first.Deleted)

	second := svc.RunDaily(context.Background())
	assert.Equal(t, 0, second.Deleted)
	assert.Equal(t, 0, second.Errors)
}

func TestRunDailyCleanupAbortsWhenStoreDown(t *testing.T) {
	svc := NewRetentionService(failingStore{}, retentionConfig(), testLogger(), nil, nil)
	result := svc.RunDaily(context.Background())
	assert.Equal(t, 0, result.Deleted)
	assert.NotZero(t, result.Errors)
}

func TestWeeklyAnonymization(t *testing.T) {
	store := repository.NewMemoryActivityRepository()
	svc := NewRetentionService(store, retentionConfig(), testLogger(), nil, nil)

	addRecord(t, store, models.ActivityLogin, daysAgo(200), func(r *models.ActivityRecord) {
		r.IPAddress = "192.168.1.100"
		r.UserAgent = "Chrome/120.0.6099.71"
	})
	addRecord(t, store, models.ActivityLogin, daysAgo(10), func(r *models.ActivityRecord) {
		r.IPAddress = "10.0.0.1"
	})

	result := svc.RunWeekly(context.Background())
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Errors)

	records, err := store.FindMany(context.Background(), repository.RecordFilter{}, repository.FindOptions{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	aged := records[0] // ascending sort: the 200d record comes first
	assert.Equal(t, "192.168.1.0", aged.IPAddress)
	assert.NotContains(t, aged.UserAgent, "120.0.6099.71")
	assert.Equal(t, true, aged.Metadata["anonymized"])
	assert.NotEmpty(t, aged.Metadata["anonymized_at"])

	recent := records[1]
	assert.Equal(t, "10.0.0.1", recent.IPAddress)

	// Re-running anonymizes nothing further.
	again := svc.RunWeekly(context.Background())
	assert.Equal(t, 0, again.Processed)
}

func TestWeeklyDeduplication(t *testing.T) {
	store := repository.NewMemoryActivityRepository()
	svc := NewRetentionService(store, retentionConfig(), testLogger(), nil, nil)
	actor := primitive.NewObjectID()

	minute := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Minute)

	// Two records inside the same minute bucket collapse to one.
	addRecord(t, store, models.ActivityPageView, minute.Add(1*time.Second), func(r *models.ActivityRecord) {
		r.UserID = &actor
	})
	addRecord(t, store, models.ActivityPageView, minute.Add(30*time.Second), func(r *models.ActivityRecord) {
		r.UserID = &actor
	})
	// 61 seconds later lands in the next bucket and survives.
	addRecord(t, store, models.ActivityPageView, minute.Add(62*time.Second), func(r *models.ActivityRecord) {
		r.UserID = &actor
	})
	// Same minute, different type: distinct key.
	addRecord(t, store, models.ActivityLogin, minute.Add(5*time.Second), func(r *models.ActivityRecord) {
		r.UserID = &actor
	})

	result := svc.RunWeekly(context.Background())
	assert.Equal(t, 1, result.Deleted)

	n, err := store.Count(context.Background(), repository.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

// captureSink records what the archive policy hands it.
type captureSink struct {
	records []models.ActivityRecord
	fail    bool
}

func (s *captureSink) Archive(ctx context.Context, records []models.ActivityRecord) error {
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.records = append(s.records, records...)
	return nil
}

func TestMonthlyArchive(t *testing.T) {
	store := repository.NewMemoryActivityRepository()
	sink := &captureSink{}
	svc := NewRetentionService(store, retentionConfig(), testLogger(), nil, sink)

	addRecord(t, store, models.ActivityPageView, daysAgo(400), nil)
	addRecord(t, store, models.ActivityPageView, daysAgo(5), nil)

	result := svc.RunMonthlyArchive(context.Background())
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Errors)
	assert.Len(t, sink.records, 1)

	n, err := store.Count(context.Background(), repository.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMonthlyArchiveKeepsRecordsWhenSinkFails(t *testing.T) {
	store := repository.NewMemoryActivityRepository()
	sink := &captureSink{fail: true}
	svc := NewRetentionService(store, retentionConfig(), testLogger(), nil, sink)

	addRecord(t, store, models.ActivityPageView, daysAgo(400), nil)

	result := svc.RunMonthlyArchive(context.Background())
	assert.NotZero(t, result.Errors)
	assert.Equal(t, 0, result.Processed)

	// Extract-then-remove: nothing deleted without a successful extract.
	n, err := store.Count(context.Background(), repository.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestManualCleanupDryRun(t *testing.T) {
	store := repository.NewMemoryActivityRepository()
	svc := NewRetentionService(store, retentionConfig(), testLogger(), nil, nil)

	addRecord(t, store, models.ActivityPageView, daysAgo(100), nil)
	addRecord(t, store, models.ActivityPageView, daysAgo(95), nil)
	addRecord(t, store, models.ActivityPageView, daysAgo(1), nil)

	result, err := svc.RunManualCleanup(context.Background(), ManualCleanupOptions{
		RetentionDays: 90,
		CleanupType:   CleanupAll,
		DryRun:        true,
	})
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 0, result.Deleted)

	n, err := store.Count(context.Background(), repository.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestManualCleanupFailedOnly(t *testing.T) {
	store := repository.NewMemoryActivityRepository()
	svc := NewRetentionService(store, retentionConfig(), testLogger(), nil, nil)

	addRecord(t, store, models.ActivityPageView, daysAgo(50), func(r *models.ActivityRecord) {
		r.Success = false
	})
	addRecord(t, store, models.ActivityPageView, daysAgo(50), nil)

	result, err := svc.RunManualCleanup(context.Background(), ManualCleanupOptions{
		RetentionDays: 30,
		CleanupType:   CleanupFailed,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)

	records, err := store.FindMany(context.Background(), repository.RecordFilter{}, repository.FindOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
}

func TestManualCleanupRejectsUnknownType(t *testing.T) {
	svc := NewRetentionService(repository.NewMemoryActivityRepository(), retentionConfig(), testLogger(), nil, nil)
	_, err := svc.RunManualCleanup(context.Background(), ManualCleanupOptions{CleanupType: "bogus"})
	assert.Error(t, err)
}
