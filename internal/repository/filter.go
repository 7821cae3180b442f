package repository

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecordFilter selects activity records. Nil/empty fields are ignored.
// The predicates mirror what the store can index: equality, $in,
// range comparisons on created_at, and not-null checks.
type RecordFilter struct {
	UserID        *primitive.ObjectID
	Types         []string
	Success       *bool
	CreatedBefore *time.Time // exclusive upper bound
	CreatedAfter  *time.Time // inclusive lower bound
	HasIPAddress  bool       // only records that still carry an address
	NotAnonymized bool       // metadata.anonymized != true
	SessionID     string
}

// FindOptions controls sorting and paging. Limit == 0 means the store
// default page size; callers that page must always set it.
type FindOptions struct {
	SortDesc bool // sort by created_at descending instead of ascending
	Skip     int64
	Limit    int64
}

// BoolPtr is a convenience for filter literals.
func BoolPtr(b bool) *bool { return &b }
