package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aqualaguna/direct-commerce-sub002/internal/models"
)

func seedRecord(t *testing.T, store *MemoryActivityRepository, kind string, createdAt time.Time, mutate func(*models.ActivityRecord)) *models.ActivityRecord {
	t.Helper()
	record := &models.ActivityRecord{
		ActivityType: kind,
		Success:      true,
		CreatedAt:    createdAt,
	}
	if mutate != nil {
		mutate(record)
	}
	created, err := store.Create(context.Background(), record)
	require.NoError(t, err)
	return created
}

func TestMemoryRepositoryFilters(t *testing.T) {
	store := NewMemoryActivityRepository()
	now := time.Now().UTC()
	actor := primitive.NewObjectID()

	seedRecord(t, store, models.ActivityLogin, now.Add(-1*time.Hour), func(r *models.ActivityRecord) {
		r.UserID = &actor
		r.IPAddress = "10.0.0.5"
	})
	seedRecord(t, store, models.ActivityLogout, now.Add(-2*time.Hour), nil)
	seedRecord(t, store, models.ActivityPageView, now.Add(-48*time.Hour), func(r *models.ActivityRecord) {
		r.Success = false
	})

	ctx := context.Background()

	records, err := store.FindMany(ctx, RecordFilter{Types: []string{models.ActivityLogin, models.ActivityLogout}}, FindOptions{})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	cut := now.Add(-24 * time.Hour)
	records, err = store.FindMany(ctx, RecordFilter{CreatedBefore: &cut}, FindOptions{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, models.ActivityPageView, records[0].ActivityType)

	records, err = store.FindMany(ctx, RecordFilter{CreatedAfter: &cut}, FindOptions{})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = store.FindMany(ctx, RecordFilter{UserID: &actor}, FindOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.ActivityLogin, records[0].ActivityType)

	records, err = store.FindMany(ctx, RecordFilter{HasIPAddress: true}, FindOptions{})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	records, err = store.FindMany(ctx, RecordFilter{Success: BoolPtr(false)}, FindOptions{})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	n, err := store.Count(ctx, RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestMemoryRepositorySortAndPaging(t *testing.T) {
	store := NewMemoryActivityRepository()
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		seedRecord(t, store, models.ActivityPageView, now.Add(time.Duration(-i)*time.Hour), nil)
	}

	ctx := context.Background()

	records, err := store.FindMany(ctx, RecordFilter{}, FindOptions{})
	require.NoError(t, err)
	require.Len(t, records, 5)
	for i := 1; i < len(records); i++ {
		assert.True(t, records[i].CreatedAt.After(records[i-1].CreatedAt))
	}

	records, err = store.FindMany(ctx, RecordFilter{}, FindOptions{SortDesc: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].CreatedAt.After(records[1].CreatedAt))

	records, err = store.FindMany(ctx, RecordFilter{}, FindOptions{Skip: 4, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	records, err = store.FindMany(ctx, RecordFilter{}, FindOptions{Skip: 99})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemoryRepositoryUpdateAnonymizationFields(t *testing.T) {
	store := NewMemoryActivityRepository()
	record := seedRecord(t, store, models.ActivityLogin, time.Now().UTC(), func(r *models.ActivityRecord) {
		r.IPAddress = "192.168.1.100"
		r.UserAgent = "Chrome/120.0"
	})

	ctx := context.Background()
	err := store.Update(ctx, record.ID, map[string]interface{}{
		"ip_address":          "192.168.1.0",
		"user_agent":          "Chrome/x.x",
		"metadata.anonymized": true,
	})
	require.NoError(t, err)

	records, err := store.FindMany(ctx, RecordFilter{}, FindOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "192.168.1.0", records[0].IPAddress)
	assert.Equal(t, "Chrome/x.x", records[0].UserAgent)
	assert.Equal(t, true, records[0].Metadata["anonymized"])

	// Anonymized records drop out of the NotAnonymized filter.
	records, err = store.FindMany(ctx, RecordFilter{NotAnonymized: true}, FindOptions{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemoryRepositoryNotFound(t *testing.T) {
	store := NewMemoryActivityRepository()
	ctx := context.Background()

	err := store.Delete(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Update(ctx, primitive.NewObjectID(), map[string]interface{}{"ip_address": ""})
	assert.ErrorIs(t, err, ErrNotFound)
}
