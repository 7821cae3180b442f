package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aqualaguna/direct-commerce-sub002/pkg/devices"
)

// Activity type tags. One per observed user action.
const (
	ActivityLogin              = "login"
	ActivityLogout             = "logout"
	ActivityProfileUpdate      = "profile_update"
	ActivityPreferenceChange   = "preference_change"
	ActivityPageView           = "page_view"
	ActivityProductInteraction = "product_interaction"
	ActivityAccountCreated     = "account_created"
	ActivityPasswordChange     = "password_change"
	ActivitySessionExpired     = "session_expired"
)

// ActivityRecord is one persisted observation of a user action.
//
// CreatedAt is assigned once at record time and is the sole ordering key.
// ActivityType and ActivityData are immutable after creation. IPAddress,
// UserAgent and Metadata may be narrowed in place by the anonymization
// policy, and by nothing else.
type ActivityRecord struct {
	ID              primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	UserID          *primitive.ObjectID    `bson:"user_id,omitempty" json:"user_id,omitempty"`
	ActivityType    string                 `bson:"activity_type" json:"activity_type"`
	ActivityData    map[string]interface{} `bson:"activity_data,omitempty" json:"activity_data,omitempty"`
	IPAddress       string                 `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	UserAgent       string                 `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	Location        string                 `bson:"location,omitempty" json:"location,omitempty"`
	DeviceInfo      *devices.DeviceInfo    `bson:"device_info,omitempty" json:"device_info,omitempty"`
	SessionID       string                 `bson:"session_id,omitempty" json:"session_id,omitempty"`
	SessionDuration int64                  `bson:"session_duration,omitempty" json:"session_duration,omitempty"` // milliseconds
	Success         bool                   `bson:"success" json:"success"`
	ErrorMessage    string                 `bson:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt       time.Time              `bson:"created_at" json:"created_at"`
	Metadata        map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// ActorHex returns the actor reference as a hex string, or "" for
// anonymous records.
func (r *ActivityRecord) ActorHex() string {
	if r.UserID == nil {
		return ""
	}
	return r.UserID.Hex()
}
