// Package session tracks runtime sessions executing against a pinned
// definition version, with their quote and policy child records.
package session

import (
	"time"

	"github.com/wizardhub/definition-registry/pkg/registry"
)

// TTL is the fixed session lifetime, set once at creation.
const TTL = 24 * time.Hour

// SessionRecord is one runtime session, bound at creation to an exact
// (wizard_key, wizard_version) pair. The state document is mutable and only
// ever replaced wholesale, never merged.
type SessionRecord struct {
	ID              string           `gorm:"primaryKey;column:id;type:varchar(36)"`
	WizardKey       string           `gorm:"column:wizard_key;index:idx_session_wizard;not null"`
	WizardVersion   string           `gorm:"column:wizard_version;not null"`
	PartnerID       string           `gorm:"column:partner_id"`
	MerchantOrderID string           `gorm:"column:merchant_order_id"`
	Status          string           `gorm:"column:status;default:started;not null"`
	State           registry.JSONDoc `gorm:"column:state;type:text;not null"`
	CurrentStep     *string          `gorm:"column:current_step"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
	ExpiresAt       time.Time        `gorm:"column:expires_at;index;not null"`
}

// TableName returns the GORM table name.
func (SessionRecord) TableName() string { return "wizard_sessions" }

// Expired reports whether the session is past its deadline at the given
// instant. Expiry is checked at read time; rows are not deleted unless the
// sweeper is running.
func (r *SessionRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// QuoteRecord stores one quote produced for a session. At most one quote per
// session is selected.
type QuoteRecord struct {
	ID        string           `gorm:"primaryKey;column:id;type:varchar(36)"`
	SessionID string           `gorm:"column:session_id;index;not null"`
	QuoteID   string           `gorm:"column:quote_id;not null"`
	Payload   registry.JSONDoc `gorm:"column:payload;type:text;not null"`
	Selected  bool             `gorm:"column:selected;default:false;not null"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (QuoteRecord) TableName() string { return "quotes" }

// PolicyRecord stores one issued policy for a session.
type PolicyRecord struct {
	ID           string           `gorm:"primaryKey;column:id;type:varchar(36)"`
	SessionID    string           `gorm:"column:session_id;index;not null"`
	PolicyNumber string           `gorm:"column:policy_number;not null"`
	Insurer      string           `gorm:"column:insurer;not null"`
	Payload      registry.JSONDoc `gorm:"column:payload;type:text;not null"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (PolicyRecord) TableName() string { return "policies" }
