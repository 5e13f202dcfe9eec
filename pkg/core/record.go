// Package core holds the storage contract of ProductBaker: the Record
// entity, the Backend port every adapter implements, and the Store that
// application code talks to.
package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the unit persisted by a Backend.
// Exactly one record exists per Key; writes replace Data entirely.
type Record struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // epoch milliseconds of the last write
}

// NewRecord marshals value into a Record stamped with now.
func NewRecord(key string, value any, now time.Time) (Record, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return Record{}, fmt.Errorf("failed to marshal value for %q: %w", key, err)
	}
	return Record{Key: key, Data: data, Timestamp: now.UnixMilli()}, nil
}

// Size returns the byte length of the record serialized as JSON.
func (r Record) Size() int {
	b, err := json.Marshal(r)
	if err != nil {
		return len(r.Key) + len(r.Data)
	}
	return len(b)
}

// Known application keys. Backup and Restore only consider these.
const (
	KeyProducts            = "app_products"
	KeySelectedProduct     = "app_selected_product"
	KeyBacklinkSites       = "app_backlink_sites"
	KeyBacklinkSubmissions = "app_backlink_submissions"
	KeyKeywordRoots        = "app_keyword_roots"
	KeySelectedKeywordRoot = "app_selected_keyword_root"
	KeyCustomCategories    = "app_custom_categories"
	KeyCustomTags          = "app_custom_tags"
	KeyImageUploadConfig   = "app_image_upload_config"
)

// BackupKeys returns the default backup whitelist.
func BackupKeys() []string {
	return []string{
		KeyProducts,
		KeySelectedProduct,
		KeyBacklinkSites,
		KeyBacklinkSubmissions,
		KeyKeywordRoots,
		KeySelectedKeywordRoot,
		KeyCustomCategories,
		KeyCustomTags,
		KeyImageUploadConfig,
	}
}

// EventType represents the kind of change applied to the store.
type EventType string

const (
	EventSave   EventType = "SAVE"
	EventRemove EventType = "REMOVE"
	EventClear  EventType = "CLEAR"
)

// Event represents a change in the store.
type Event struct {
	Type      EventType
	Key       string
	Timestamp int64 // epoch milliseconds
}

// String implements lifecycle.Event.
func (e Event) String() string {
	if e.Key == "" {
		return string(e.Type)
	}
	return fmt.Sprintf("%s %s", e.Type, e.Key)
}
