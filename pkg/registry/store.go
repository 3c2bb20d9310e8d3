package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wizardhub/definition-registry/pkg/schema"
)

// publishRetries bounds the duplicate-key retry loop in Publish. Each retry
// re-reads the committed max version, so N racing publishers settle within N
// attempts; the bound only guards against a pathological store.
const publishRetries = 10

// DefinitionStore is the versioning engine: draft lifecycle, immutable
// publish, version allocation, and status bookkeeping for wizard and page
// definitions. All storage errors are translated to the package error
// taxonomy at this boundary.
type DefinitionStore struct {
	db        *gorm.DB
	validator *schema.Validator
}

// NewDefinitionStore creates a DefinitionStore.
func NewDefinitionStore(db *gorm.DB, validator *schema.Validator) *DefinitionStore {
	return &DefinitionStore{db: db, validator: validator}
}

// AutoMigrate creates or updates the definitions table.
func (s *DefinitionStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&DefinitionRecord{}); err != nil {
		return fmt.Errorf("auto-migrate definitions: %w", err)
	}
	return nil
}

// CreateDraft inserts the mutable working copy for a key. Fails with
// ConflictError if a draft already exists.
func (s *DefinitionStore) CreateDraft(ctx context.Context, kind Kind, key string, body JSONDoc, schemaVersion, author string) (*DefinitionRecord, error) {
	checksum, err := Checksum(body)
	if err != nil {
		return nil, err
	}

	record := &DefinitionRecord{
		ID:            uuid.New().String(),
		Kind:          string(kind),
		Key:           key,
		Version:       DraftVersion,
		Status:        string(StatusDraft),
		SchemaVersion: schemaVersion,
		Body:          body,
		Checksum:      checksum,
		CreatedBy:     author,
	}

	err = s.db.WithContext(ctx).Create(record).Error
	if err != nil {
		if isDuplicateKey(err) {
			return nil, &ConflictError{Kind: kind, Key: key}
		}
		return nil, &TransientError{Op: "create draft", Err: err}
	}
	return record, nil
}

// GetDraft returns the draft row for a key, or NotFoundError.
func (s *DefinitionStore) GetDraft(ctx context.Context, kind Kind, key string) (*DefinitionRecord, error) {
	return s.getVersionRow(ctx, kind, key, DraftVersion)
}

// UpdateDraft overwrites the draft body in place, recomputing the checksum.
// Drafts are mutable and never version-bumped.
func (s *DefinitionStore) UpdateDraft(ctx context.Context, kind Kind, key string, body JSONDoc, author string) (*DefinitionRecord, error) {
	draft, err := s.GetDraft(ctx, kind, key)
	if err != nil {
		return nil, err
	}

	checksum, err := Checksum(body)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"body":       body,
		"checksum":   checksum,
		"created_by": author,
	}
	if err := s.db.WithContext(ctx).Model(draft).Updates(updates).Error; err != nil {
		return nil, &TransientError{Op: "update draft", Err: err}
	}
	draft.Body = body
	draft.Checksum = checksum
	draft.CreatedBy = author
	return draft, nil
}

// DeleteDraft removes the draft row for a key. Irreversible.
func (s *DefinitionStore) DeleteDraft(ctx context.Context, kind Kind, key string) error {
	draft, err := s.GetDraft(ctx, kind, key)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(draft).Error; err != nil {
		return &TransientError{Op: "delete draft", Err: err}
	}
	return nil
}

// Publish turns the current draft into a new immutable published row:
//
//  1. Load the draft.
//  2. Validate the body against its named schema; every violation is
//     reported, none short-circuit.
//  3. For wizards, check that each pageRef resolves to a published page.
//  4. Allocate the next version ordinal and insert the published row in one
//     transaction. Racing publishers that allocate the same ordinal trip the
//     (kind, key, version) unique index; the loser re-reads and retries, so
//     version numbers stay sequential with no gaps or duplicates.
//
// The draft row is left untouched as the working copy for the next revision.
// On any failure nothing is written.
func (s *DefinitionStore) Publish(ctx context.Context, kind Kind, key string) (*DefinitionRecord, error) {
	draft, err := s.GetDraft(ctx, kind, key)
	if err != nil {
		return nil, err
	}

	issues, err := s.validator.Validate(draft.SchemaVersion, map[string]any(draft.Body))
	if err != nil {
		return nil, &TransientError{Op: "schema validation", Err: err}
	}
	if len(issues) > 0 {
		verr := &ValidationError{Issues: make([]Issue, len(issues))}
		for i, issue := range issues {
			verr.Issues[i] = Issue{Path: issue.Path, Message: issue.Message}
		}
		return nil, verr
	}

	if kind == KindWizard {
		broken, err := s.checkPageRefs(ctx, draft.Body)
		if err != nil {
			return nil, err
		}
		if len(broken) > 0 {
			return nil, &ReferenceError{Refs: broken}
		}
	}

	for attempt := 0; attempt < publishRetries; attempt++ {
		published := &DefinitionRecord{
			ID:            uuid.New().String(),
			Kind:          string(kind),
			Key:           key,
			Status:        string(StatusPublished),
			SchemaVersion: draft.SchemaVersion,
			Body:          draft.Body,
			Checksum:      draft.Checksum,
			CreatedBy:     draft.CreatedBy,
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			max, err := s.maxPublishedVersion(tx, kind, key)
			if err != nil {
				return err
			}
			published.Version = max.Next().String()
			now := time.Now().UTC()
			published.PublishedAt = &now
			return tx.Create(published).Error
		})
		if err == nil {
			return published, nil
		}
		if isDuplicateKey(err) {
			continue
		}
		return nil, &TransientError{Op: "publish", Err: err}
	}
	return nil, &TransientError{Op: "publish", Err: fmt.Errorf("version allocation contention persisted after %d attempts", publishRetries)}
}

// GetLatestPublished returns the highest-version published row for a key.
func (s *DefinitionStore) GetLatestPublished(ctx context.Context, kind Kind, key string) (*DefinitionRecord, error) {
	records, err := s.publishedRows(s.db.WithContext(ctx), kind, key)
	if err != nil {
		return nil, &TransientError{Op: "get latest published", Err: err}
	}

	var latest *DefinitionRecord
	var latestVersion Version
	for i := range records {
		v, err := ParseVersion(records[i].Version)
		if err != nil {
			continue // tolerate foreign rows rather than failing reads
		}
		if latest == nil || v > latestVersion {
			latest = &records[i]
			latestVersion = v
		}
	}
	if latest == nil {
		return nil, &NotFoundError{Kind: kind, Key: key, Version: "latest"}
	}
	return latest, nil
}

// GetVersion returns the exact (key, version) row; version may be a published
// tag or the draft sentinel.
func (s *DefinitionStore) GetVersion(ctx context.Context, kind Kind, key, version string) (*DefinitionRecord, error) {
	return s.getVersionRow(ctx, kind, key, version)
}

// ListVersions returns every row for a key (draft plus all published),
// newest published first with the draft leading.
func (s *DefinitionStore) ListVersions(ctx context.Context, kind Kind, key string) ([]DefinitionRecord, error) {
	var records []DefinitionRecord
	err := s.db.WithContext(ctx).
		Where("kind = ? AND def_key = ?", kind, key).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, &TransientError{Op: "list versions", Err: err}
	}
	return records, nil
}

// List returns definitions of a kind, drafts only unless includePublished is
// set. Ordered newest first.
func (s *DefinitionStore) List(ctx context.Context, kind Kind, includePublished bool) ([]DefinitionRecord, error) {
	query := s.db.WithContext(ctx).Where("kind = ?", kind).Order("created_at DESC")
	if !includePublished {
		query = query.Where("status = ?", StatusDraft)
	}
	var records []DefinitionRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, &TransientError{Op: "list definitions", Err: err}
	}
	return records, nil
}

// Exists reports whether the exact (kind, key, version) row exists, whatever
// its status. Session creation uses this as its foreign-key check.
func (s *DefinitionStore) Exists(ctx context.Context, kind Kind, key, version string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&DefinitionRecord{}).
		Where("kind = ? AND def_key = ? AND version = ?", kind, key, version).
		Count(&count).Error
	if err != nil {
		return false, &TransientError{Op: "definition lookup", Err: err}
	}
	return count > 0, nil
}

func (s *DefinitionStore) getVersionRow(ctx context.Context, kind Kind, key, version string) (*DefinitionRecord, error) {
	var record DefinitionRecord
	err := s.db.WithContext(ctx).
		Where("kind = ? AND def_key = ? AND version = ?", kind, key, version).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if version == DraftVersion {
				return nil, &NotFoundError{Kind: kind, Key: key}
			}
			return nil, &NotFoundError{Kind: kind, Key: key, Version: version}
		}
		return nil, &TransientError{Op: "get definition", Err: err}
	}
	return &record, nil
}

// maxPublishedVersion returns the highest published ordinal for a key, or 0
// when none exist. Runs inside the caller's transaction.
func (s *DefinitionStore) maxPublishedVersion(tx *gorm.DB, kind Kind, key string) (Version, error) {
	records, err := s.publishedRows(tx, kind, key)
	if err != nil {
		return 0, err
	}
	var max Version
	for _, r := range records {
		v, err := ParseVersion(r.Version)
		if err != nil {
			continue
		}
		if v > max {
			max = v
		}
	}
	return max, nil
}

func (s *DefinitionStore) publishedRows(tx *gorm.DB, kind Kind, key string) ([]DefinitionRecord, error) {
	var records []DefinitionRecord
	err := tx.
		Where("kind = ? AND def_key = ? AND status = ?", kind, key, StatusPublished).
		Find(&records).Error
	return records, err
}
