// Package release maintains the channel pointers that map a deployment
// channel ("prod", "sandbox", "partner-x") to one published wizard version,
// independent of whatever version is highest.
package release

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wizardhub/definition-registry/pkg/registry"
)

// PointerRecord maps (wizard_key, channel) to a specific published version.
type PointerRecord struct {
	ID            string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	WizardKey     string    `gorm:"column:wizard_key;uniqueIndex:idx_release_key_channel,priority:1;not null"`
	Channel       string    `gorm:"column:channel;uniqueIndex:idx_release_key_channel,priority:2;not null"`
	WizardVersion string    `gorm:"column:wizard_version;not null"`
	PointedBy     string    `gorm:"column:pointed_by"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (PointerRecord) TableName() string { return "wizard_releases" }

// NotFoundError reports an unset channel pointer.
type NotFoundError struct {
	WizardKey string
	Channel   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no release pointer for wizard %q on channel %q", e.WizardKey, e.Channel)
}

// NotPublishedError reports an attempt to point a channel at a version that
// is not a published row.
type NotPublishedError struct {
	WizardKey string
	Version   string
}

func (e *NotPublishedError) Error() string {
	return fmt.Sprintf("wizard %q version %q is not published", e.WizardKey, e.Version)
}

// DefinitionGetter is the slice of the definition store the release resolver
// needs to verify pointer targets.
type DefinitionGetter interface {
	GetVersion(ctx context.Context, kind registry.Kind, key, version string) (*registry.DefinitionRecord, error)
}

// Store provides release pointer upserts and lookups.
type Store struct {
	db   *gorm.DB
	defs DefinitionGetter
}

// NewStore creates a release Store.
func NewStore(db *gorm.DB, defs DefinitionGetter) *Store {
	return &Store{db: db, defs: defs}
}

// AutoMigrate creates or updates the wizard_releases table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&PointerRecord{}); err != nil {
		return fmt.Errorf("auto-migrate wizard_releases: %w", err)
	}
	return nil
}

// Point upserts the pointer for (wizardKey, channel). The target version must
// already exist as a published row; drafts and deprecated rows are rejected.
func (s *Store) Point(ctx context.Context, wizardKey, channel, version, actor string) (*PointerRecord, error) {
	target, err := s.defs.GetVersion(ctx, registry.KindWizard, wizardKey, version)
	if err != nil {
		return nil, err
	}
	if !target.Published() {
		return nil, &NotPublishedError{WizardKey: wizardKey, Version: version}
	}

	record := &PointerRecord{
		ID:            uuid.New().String(),
		WizardKey:     wizardKey,
		Channel:       channel,
		WizardVersion: version,
		PointedBy:     actor,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wizard_key"}, {Name: "channel"}},
		DoUpdates: clause.AssignmentColumns([]string{"wizard_version", "pointed_by", "updated_at"}),
	}).Create(record).Error
	if err != nil {
		return nil, fmt.Errorf("point release: %w", err)
	}
	return s.Resolve(ctx, wizardKey, channel)
}

// Resolve returns the pointer for (wizardKey, channel), or NotFoundError if
// the channel is unset.
func (s *Store) Resolve(ctx context.Context, wizardKey, channel string) (*PointerRecord, error) {
	var record PointerRecord
	err := s.db.WithContext(ctx).
		Where("wizard_key = ? AND channel = ?", wizardKey, channel).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{WizardKey: wizardKey, Channel: channel}
		}
		return nil, fmt.Errorf("resolve release: %w", err)
	}
	return &record, nil
}

// Channels returns all pointers for a wizard key, ordered by channel.
func (s *Store) Channels(ctx context.Context, wizardKey string) ([]PointerRecord, error) {
	var records []PointerRecord
	err := s.db.WithContext(ctx).
		Where("wizard_key = ?", wizardKey).
		Order("channel ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list release channels: %w", err)
	}
	return records, nil
}

// IsNotFound reports whether err is a release NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
