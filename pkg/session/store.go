package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wizardhub/definition-registry/pkg/registry"
)

// DefinitionChecker is the slice of the definition store the session engine
// needs: an existence check for the exact (kind, key, version) a session pins
// itself to.
type DefinitionChecker interface {
	Exists(ctx context.Context, kind registry.Kind, key, version string) (bool, error)
}

// Store provides the session engine: creation pinned to an existing wizard
// version, reads with advisory expiry, wholesale state replacement, status
// progression, and quote/policy child records.
type Store struct {
	db   *gorm.DB
	defs DefinitionChecker
}

// NewStore creates a session Store.
func NewStore(db *gorm.DB, defs DefinitionChecker) *Store {
	return &Store{db: db, defs: defs}
}

// AutoMigrate creates or updates the session, quote, and policy tables.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&SessionRecord{}, &QuoteRecord{}, &PolicyRecord{}); err != nil {
		return fmt.Errorf("auto-migrate sessions: %w", err)
	}
	return nil
}

// CreateParams are the inputs to Create.
type CreateParams struct {
	WizardKey       string
	WizardVersion   string
	State           registry.JSONDoc
	PartnerID       string
	MerchantOrderID string
}

// Create inserts a session bound to an existing (wizard_key, wizard_version)
// pair. Any definition status qualifies, so draft sessions can be created for
// testing. Fails with registry.NotFoundError if the pair does not exist.
// expires_at is fixed at creation time; the TTL is not configurable per call.
func (s *Store) Create(ctx context.Context, p CreateParams) (*SessionRecord, error) {
	exists, err := s.defs.Exists(ctx, registry.KindWizard, p.WizardKey, p.WizardVersion)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &registry.NotFoundError{Kind: registry.KindWizard, Key: p.WizardKey, Version: p.WizardVersion}
	}

	state := p.State
	if state == nil {
		state = registry.JSONDoc{"application": map[string]any{}, "context": map[string]any{}}
	}

	record := &SessionRecord{
		ID:              uuid.New().String(),
		WizardKey:       p.WizardKey,
		WizardVersion:   p.WizardVersion,
		PartnerID:       p.PartnerID,
		MerchantOrderID: p.MerchantOrderID,
		Status:          string(StatusStarted),
		State:           state,
		ExpiresAt:       time.Now().UTC().Add(TTL),
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return record, nil
}

// Get returns a session by ID. Expiry is advisory on this path: the record is
// returned even when past its deadline, and callers decide via Expired().
func (s *Store) Get(ctx context.Context, id string) (*SessionRecord, error) {
	var record SessionRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &record, nil
}

// ReplaceState overwrites the session state wholesale - callers must resend
// the full document, nothing is merged - and optionally advances
// current_step. Expired sessions are unusable and fail with ExpiredError.
func (s *Store) ReplaceState(ctx context.Context, id string, state registry.JSONDoc, currentStep *string) (*SessionRecord, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Expired(time.Now().UTC()) {
		return nil, &ExpiredError{ID: id}
	}

	updates := map[string]any{"state": state}
	if currentStep != nil {
		updates["current_step"] = *currentStep
	}
	if err := s.db.WithContext(ctx).Model(record).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("replace session state: %w", err)
	}
	record.State = state
	if currentStep != nil {
		record.CurrentStep = currentStep
	}
	return record, nil
}

// Advance moves the session status forward, validating the transition.
func (s *Store) Advance(ctx context.Context, id string, to Status) (*SessionRecord, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Expired(time.Now().UTC()) {
		return nil, &ExpiredError{ID: id}
	}
	if err := ValidateTransition(Status(record.Status), to); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(record).Update("status", string(to)).Error; err != nil {
		return nil, fmt.Errorf("advance session: %w", err)
	}
	record.Status = string(to)
	return record, nil
}

// Delete removes a session together with its quotes and policies in one
// transaction.
func (s *Store) Delete(ctx context.Context, id string) error {
	record, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&QuoteRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&PolicyRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(record).Error
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// AddQuote stores a quote for the session and moves a freshly started
// session to quoted.
func (s *Store) AddQuote(ctx context.Context, sessionID, quoteID string, payload registry.JSONDoc) (*QuoteRecord, error) {
	record, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if record.Expired(time.Now().UTC()) {
		return nil, &ExpiredError{ID: sessionID}
	}

	quote := &QuoteRecord{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		QuoteID:   quoteID,
		Payload:   payload,
	}
	if err := s.db.WithContext(ctx).Create(quote).Error; err != nil {
		return nil, fmt.Errorf("add quote: %w", err)
	}

	if Status(record.Status) == StatusStarted {
		if _, err := s.Advance(ctx, sessionID, StatusQuoted); err != nil {
			return nil, err
		}
	}
	return quote, nil
}

// SelectQuote marks exactly one quote of the session as selected, clearing
// any previous selection in the same transaction, and moves the session to
// selected.
func (s *Store) SelectQuote(ctx context.Context, sessionID, quoteID string) (*QuoteRecord, error) {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	var selected QuoteRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("session_id = ? AND quote_id = ?", sessionID, quoteID).First(&selected).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{ID: quoteID}
			}
			return err
		}
		if err := tx.Model(&QuoteRecord{}).
			Where("session_id = ? AND selected = ?", sessionID, true).
			Update("selected", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&selected).Update("selected", true).Error; err != nil {
			return err
		}
		selected.Selected = true
		return nil
	})
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, err
		}
		return nil, fmt.Errorf("select quote: %w", err)
	}

	if _, err := s.Advance(ctx, sessionID, StatusSelected); err != nil {
		return nil, err
	}
	return &selected, nil
}

// Quotes returns all quotes for a session, oldest first.
func (s *Store) Quotes(ctx context.Context, sessionID string) ([]QuoteRecord, error) {
	var quotes []QuoteRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&quotes).Error
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	return quotes, nil
}

// IssuePolicy stores an issued policy for the session and moves it to
// issued.
func (s *Store) IssuePolicy(ctx context.Context, sessionID, policyNumber, insurer string, payload registry.JSONDoc) (*PolicyRecord, error) {
	record, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if record.Expired(time.Now().UTC()) {
		return nil, &ExpiredError{ID: sessionID}
	}
	if err := ValidateTransition(Status(record.Status), StatusIssued); err != nil {
		return nil, err
	}

	policy := &PolicyRecord{
		ID:           uuid.New().String(),
		SessionID:    sessionID,
		PolicyNumber: policyNumber,
		Insurer:      insurer,
		Payload:      payload,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(policy).Error; err != nil {
			return err
		}
		return tx.Model(record).Update("status", string(StatusIssued)).Error
	})
	if err != nil {
		return nil, fmt.Errorf("issue policy: %w", err)
	}
	record.Status = string(StatusIssued)
	return policy, nil
}

// Policies returns all policies for a session, oldest first.
func (s *Store) Policies(ctx context.Context, sessionID string) ([]PolicyRecord, error) {
	var policies []PolicyRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&policies).Error
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	return policies, nil
}

// DeleteExpired removes sessions whose deadline passed before the cutoff,
// cascading to quotes and policies. Returns the number of sessions removed.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&SessionRecord{}).
		Where("expires_at < ?", cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("find expired sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id IN ?", ids).Delete(&QuoteRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id IN ?", ids).Delete(&PolicyRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&SessionRecord{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return int64(len(ids)), nil
}
