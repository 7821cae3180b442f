package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aqualaguna/direct-commerce-sub002/internal/models"
)

// ErrNotFound is returned when an update or delete matches no record.
var ErrNotFound = errors.New("activity record not found")

// ActivityStore is the record-store contract consumed by the recorder,
// the aggregation engine and the retention policies. No implementation
// provides transactional isolation across records; callers must not
// assume it.
type ActivityStore interface {
	Create(ctx context.Context, record *models.ActivityRecord) (*models.ActivityRecord, error)
	FindMany(ctx context.Context, filter RecordFilter, opts FindOptions) ([]models.ActivityRecord, error)
	Update(ctx context.Context, id primitive.ObjectID, fields map[string]interface{}) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	Count(ctx context.Context, filter RecordFilter) (int64, error)
}

// ActivityRepository is the MongoDB-backed ActivityStore.
type ActivityRepository struct {
	collection *mongo.Collection
}

// NewActivityRepository creates a new instance of ActivityRepository.
func NewActivityRepository(db *mongo.Database) *ActivityRepository {
	return &ActivityRepository{
		collection: db.Collection("activities"),
	}
}

func (f RecordFilter) toBSON() bson.M {
	filter := bson.M{}
	if f.UserID != nil {
		filter["user_id"] = *f.UserID
	}
	if len(f.Types) == 1 {
		filter["activity_type"] = f.Types[0]
	} else if len(f.Types) > 1 {
		filter["activity_type"] = bson.M{"$in": f.Types}
	}
	if f.Success != nil {
		filter["success"] = *f.Success
	}
	created := bson.M{}
	if f.CreatedBefore != nil {
		created["$lt"] = *f.CreatedBefore
	}
	if f.CreatedAfter != nil {
		created["$gte"] = *f.CreatedAfter
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}
	if f.HasIPAddress {
		filter["ip_address"] = bson.M{"$exists": true, "$ne": ""}
	}
	if f.NotAnonymized {
		filter["metadata.anonymized"] = bson.M{"$ne": true}
	}
	if f.SessionID != "" {
		filter["session_id"] = f.SessionID
	}
	return filter
}

// Create appends one activity record and returns it with its ID set.
func (r *ActivityRepository) Create(ctx context.Context, record *models.ActivityRecord) (*models.ActivityRecord, error) {
	result, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to insert activity record: %v", err)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("failed to cast inserted ID")
	}
	record.ID = insertedID
	return record, nil
}

// FindMany fetches records matching the filter, sorted by created_at.
func (r *ActivityRepository) FindMany(ctx context.Context, filter RecordFilter, opts FindOptions) ([]models.ActivityRecord, error) {
	order := 1
	if opts.SortDesc {
		order = -1
	}
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: order}})
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := r.collection.Find(ctx, filter.toBSON(), findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activity records: %v", err)
	}
	defer cursor.Close(ctx)

	var records []models.ActivityRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode activity records: %v", err)
	}
	return records, nil
}

// Update sets the given fields on one record. Only the anonymization
// policy uses this path.
func (r *ActivityRepository) Update(ctx context.Context, id primitive.ObjectID, fields map[string]interface{}) error {
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update activity record %s: %v", id.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one record by ID.
func (r *ActivityRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete activity record %s: %v", id.Hex(), err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of records matching the filter.
func (r *ActivityRepository) Count(ctx context.Context, filter RecordFilter) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, filter.toBSON())
	if err != nil {
		return 0, fmt.Errorf("failed to count activity records: %v", err)
	}
	return n, nil
}
