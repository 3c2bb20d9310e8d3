package registry

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Kind distinguishes the two definition namespaces. Wizards and pages are
// structurally identical rows; the kind column keeps their key spaces apart.
type Kind string

const (
	KindWizard Kind = "wizard"
	KindPage   Kind = "page"
)

// Status is the lifecycle status of a definition row.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusPublished  Status = "published"
	StatusDeprecated Status = "deprecated"
)

// JSONDoc is a custom GORM type for a schema-governed JSON document stored as
// text. Marshalling is deterministic (encoding/json sorts map keys), which the
// checksum relies on.
type JSONDoc map[string]any

// Scan implements the sql.Scanner interface for JSONDoc.
func (d *JSONDoc) Scan(value any) error {
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
		return fmt.Errorf("unsupported type for JSONDoc: %T", value)
	}
	return json.Unmarshal(bytes, d)
}

// Value implements the driver.Valuer interface for JSONDoc.
func (d JSONDoc) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// DefinitionRecord is one row of the definitions table: either the single
// mutable draft for a key, or an immutable published snapshot. Published rows
// are never updated after insert.
type DefinitionRecord struct {
	ID            string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	Kind          string     `gorm:"column:kind;uniqueIndex:idx_def_kind_key_version,priority:1;not null"`
	Key           string     `gorm:"column:def_key;uniqueIndex:idx_def_kind_key_version,priority:2;not null"`
	Version       string     `gorm:"column:version;uniqueIndex:idx_def_kind_key_version,priority:3;not null"`
	Status        string     `gorm:"column:status;default:draft;not null"`
	SchemaVersion string     `gorm:"column:schema_version;not null"`
	Body          JSONDoc    `gorm:"column:body;type:text;not null"`
	Checksum      string     `gorm:"column:checksum;not null"`
	CreatedBy     string     `gorm:"column:created_by;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time `gorm:"column:published_at"`
}

// TableName returns the GORM table name.
func (DefinitionRecord) TableName() string { return "definitions" }

// Published reports whether this row is an immutable published snapshot.
func (r *DefinitionRecord) Published() bool { return r.Status == string(StatusPublished) }
