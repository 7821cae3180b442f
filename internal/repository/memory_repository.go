package repository

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aqualaguna/direct-commerce-sub002/internal/models"
)

// MemoryActivityRepository is an in-memory ActivityStore with the same
// filter semantics as the Mongo implementation. It backs tests and
// local development when no MONGO_URI is configured.
type MemoryActivityRepository struct {
	mu      sync.RWMutex
	records map[primitive.ObjectID]*models.ActivityRecord
}

// NewMemoryActivityRepository creates an empty in-memory store.
func NewMemoryActivityRepository() *MemoryActivityRepository {
	return &MemoryActivityRepository{
		records: make(map[primitive.ObjectID]*models.ActivityRecord),
	}
}

func (f RecordFilter) matches(r *models.ActivityRecord) bool {
	if f.UserID != nil {
		if r.UserID == nil || *r.UserID != *f.UserID {
			return false
		}
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if r.ActivityType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Success != nil && r.Success != *f.Success {
		return false
	}
	if f.CreatedBefore != nil && !r.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	if f.CreatedAfter != nil && r.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.HasIPAddress && r.IPAddress == "" {
		return false
	}
	if f.NotAnonymized {
		if v, ok := r.Metadata["anonymized"].(bool); ok && v {
			return false
		}
	}
	if f.SessionID != "" && r.SessionID != f.SessionID {
		return false
	}
	return true
}

// Create appends one record, assigning a fresh ID.
func (m *MemoryActivityRepository) Create(ctx context.Context, record *models.ActivityRecord) (*models.ActivityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}
	stored := *record
	m.records[record.ID] = &stored
	return record, nil
}

// FindMany returns copies of matching records sorted by CreatedAt.
func (m *MemoryActivityRepository) FindMany(ctx context.Context, filter RecordFilter, opts FindOptions) ([]models.ActivityRecord, error) {
	m.mu.RLock()
	matched := make([]models.ActivityRecord, 0)
	for _, r := range m.records {
		if filter.matches(r) {
			matched = append(matched, *r)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if opts.SortDesc {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if opts.Skip > 0 {
		if opts.Skip >= int64(len(matched)) {
			return []models.ActivityRecord{}, nil
		}
		matched = matched[opts.Skip:]
	}
	if opts.Limit > 0 && int64(len(matched)) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

// Update sets fields on one record. Only the anonymization field names
// used by the retention policy are understood.
func (m *MemoryActivityRepository) Update(ctx context.Context, id primitive.ObjectID, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "ip_address":
			r.IPAddress, _ = v.(string)
		case "user_agent":
			r.UserAgent, _ = v.(string)
		case "metadata.anonymized":
			if r.Metadata == nil {
				r.Metadata = make(map[string]interface{})
			}
			r.Metadata["anonymized"] = v
		case "metadata.anonymized_at":
			if r.Metadata == nil {
				r.Metadata = make(map[string]interface{})
			}
			r.Metadata["anonymized_at"] = v
		case "session_duration":
			if d, ok := v.(int64); ok {
				r.SessionDuration = d
			}
		}
	}
	return nil
}

// Delete removes one record by ID.
func (m *MemoryActivityRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

// Count returns the number of records matching the filter.
func (m *MemoryActivityRepository) Count(ctx context.Context, filter RecordFilter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, r := range m.records {
		if filter.matches(r) {
			n++
		}
	}
	return n, nil
}
