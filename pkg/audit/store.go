// Package audit keeps an append-only trail of registry and runtime actions.
package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Details is a custom GORM type for free-form event metadata stored as JSON.
type Details map[string]any

// Scan implements the sql.Scanner interface for Details.
func (d *Details) Scan(value any) error {
	if value == nil {
		*d = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for Details: %T", value)
	}
	return json.Unmarshal(bytes, d)
}

// Value implements the driver.Valuer interface for Details.
func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// EventRecord is an immutable audit log entry.
type EventRecord struct {
	ID           string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	EventType    string    `gorm:"column:event_type;index:idx_audit_type_time,priority:1;not null"`
	Actor        string    `gorm:"column:actor;not null"`
	ResourceType string    `gorm:"column:resource_type;index:idx_audit_resource,priority:1;not null"`
	ResourceID   string    `gorm:"column:resource_id;index:idx_audit_resource,priority:2;not null"`
	Outcome      string    `gorm:"column:outcome;not null"`
	Details      Details   `gorm:"column:details;type:text"`
	CreatedAt    time.Time `gorm:"column:created_at;index:idx_audit_type_time,priority:2;autoCreateTime"`
}

// TableName returns the GORM table name.
func (EventRecord) TableName() string { return "audit_events" }

// Store provides append and query operations for audit events.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new audit Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the audit_events table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&EventRecord{}); err != nil {
		return fmt.Errorf("auto-migrate audit_events: %w", err)
	}
	return nil
}

// Append inserts an event. Missing IDs and outcomes get defaults so callers
// can log best-effort without ceremony.
func (s *Store) Append(event *EventRecord) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Outcome == "" {
		event.Outcome = "success"
	}
	if err := s.db.Create(event).Error; err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListByResource returns events for one resource, newest first, capped at
// limit (default 50).
func (s *Store) ListByResource(resourceType, resourceID string, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []EventRecord
	err := s.db.
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

// ListFilter narrows a List query. Zero-value fields are ignored.
type ListFilter struct {
	EventType    string
	Actor        string
	ResourceType string
	ResourceID   string
}

// List returns events matching the filter, newest first, capped at limit
// (default 50).
func (s *Store) List(filter ListFilter, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.db.Model(&EventRecord{})
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.Actor != "" {
		query = query.Where("actor = ?", filter.Actor)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		query = query.Where("resource_id = ?", filter.ResourceID)
	}

	var events []EventRecord
	err := query.Order("created_at DESC").Limit(limit).Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

// Get returns one event by ID, or gorm.ErrRecordNotFound.
func (s *Store) Get(id string) (*EventRecord, error) {
	var event EventRecord
	if err := s.db.Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// DeleteOlderThan removes events created before the cutoff and returns the
// number deleted.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&EventRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete audit events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
