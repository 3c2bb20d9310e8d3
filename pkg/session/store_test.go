package session

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wizardhub/definition-registry/pkg/registry"
	"github.com/wizardhub/definition-registry/pkg/schema"
)

// newTestEnv creates an in-memory SQLite DB with all tables migrated, a
// definition store holding one published wizard (wizard.travel v1), and the
// session store under test.
func newTestEnv(t *testing.T) (*gorm.DB, *Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&registry.DefinitionRecord{}, &SessionRecord{}, &QuoteRecord{}, &PolicyRecord{},
	))

	schemas := schema.MapRegistry{
		"wizard.v1": []byte(`{"type": "object", "required": ["steps"]}`),
	}
	defs := registry.NewDefinitionStore(db, schema.NewValidator(schemas, schema.NewCache()))

	ctx := context.Background()
	body := registry.JSONDoc{"steps": []any{map[string]any{"id": "intro", "title": "Welcome"}}}
	_, err = defs.CreateDraft(ctx, registry.KindWizard, "wizard.travel", body, "wizard.v1", "alice")
	require.NoError(t, err)
	_, err = defs.Publish(ctx, registry.KindWizard, "wizard.travel")
	require.NoError(t, err)

	return db, NewStore(db, defs)
}

func startSession(t *testing.T, store *Store) *SessionRecord {
	t.Helper()
	record, err := store.Create(context.Background(), CreateParams{
		WizardKey:     "wizard.travel",
		WizardVersion: "v1",
	})
	require.NoError(t, err)
	return record
}

// expireSession forces a session's deadline into the past.
func expireSession(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, db.Model(&SessionRecord{}).Where("id = ?", id).
		Update("expires_at", past).Error)
}

func TestStore_Create(t *testing.T) {
	_, store := newTestEnv(t)
	ctx := context.Background()

	record, err := store.Create(ctx, CreateParams{
		WizardKey:       "wizard.travel",
		WizardVersion:   "v1",
		PartnerID:       "partner-1",
		MerchantOrderID: "order-42",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, string(StatusStarted), record.Status)
	assert.Equal(t, "partner-1", record.PartnerID)
	// Default state carries the two standard top-level containers.
	assert.Contains(t, record.State, "application")
	assert.Contains(t, record.State, "context")
	assert.WithinDuration(t, time.Now().UTC().Add(TTL), record.ExpiresAt, 5*time.Second)

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
}

func TestStore_CreateUnknownDefinition(t *testing.T) {
	_, store := newTestEnv(t)
	ctx := context.Background()

	_, err := store.Create(ctx, CreateParams{WizardKey: "wizard.travel", WizardVersion: "v9"})
	assert.True(t, registry.IsNotFound(err))

	_, err = store.Create(ctx, CreateParams{WizardKey: "wizard.nope", WizardVersion: "v1"})
	assert.True(t, registry.IsNotFound(err))
}

func TestStore_GetNotFound(t *testing.T) {
	_, store := newTestEnv(t)
	_, err := store.Get(context.Background(), "no-such-id")
	assert.True(t, IsNotFound(err))
}

func TestStore_ReplaceState(t *testing.T) {
	_, store := newTestEnv(t)
	ctx := context.Background()
	record := startSession(t, store)

	first := registry.JSONDoc{"a": 1.0}
	updated, err := store.ReplaceState(ctx, record.ID, first, nil)
	require.NoError(t, err)
	assert.Equal(t, first, updated.State)

	// Replacement is wholesale: the previous keys are gone, not merged.
	step := "step-2"
	second := registry.JSONDoc{"b": 2.0}
	updated, err = store.ReplaceState(ctx, record.ID, second, &step)
	require.NoError(t, err)
	assert.Equal(t, second, updated.State)
	assert.NotContains(t, updated.State, "a")
	require.NotNil(t, updated.CurrentStep)
	assert.Equal(t, "step-2", *updated.CurrentStep)

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, second, got.State)
}

func TestStore_ExpiredSession(t *testing.T) {
	db, store := newTestEnv(t)
	ctx := context.Background()
	record := startSession(t, store)
	expireSession(t, db, record.ID)

	// Reads still return the row; expiry is the caller's call on this path.
	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, got.Expired(time.Now().UTC()))

	// Mutations are blocked.
	_, err = store.ReplaceState(ctx, record.ID, registry.JSONDoc{"x": 1.0}, nil)
	assert.True(t, IsExpired(err))
	_, err = store.Advance(ctx, record.ID, StatusQuoted)
	assert.True(t, IsExpired(err))
	_, err = store.AddQuote(ctx, record.ID, "q-1", registry.JSONDoc{})
	assert.True(t, IsExpired(err))
	_, err = store.IssuePolicy(ctx, record.ID, "POL-1", "insurer", registry.JSONDoc{})
	assert.True(t, IsExpired(err))
}

func TestStore_Advance(t *testing.T) {
	_, store := newTestEnv(t)
	ctx := context.Background()
	record := startSession(t, store)

	advanced, err := store.Advance(ctx, record.ID, StatusQuoted)
	require.NoError(t, err)
	assert.Equal(t, string(StatusQuoted), advanced.Status)

	_, err = store.Advance(ctx, record.ID, StatusStarted)
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)

	// The failed transition left the status untouched.
	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusQuoted), got.Status)
}

func TestStore_Quotes(t *testing.T) {
	_, store := newTestEnv(t)
	ctx := context.Background()
	record := startSession(t, store)

	q1, err := store.AddQuote(ctx, record.ID, "q-1", registry.JSONDoc{"premium": 99.99})
	require.NoError(t, err)
	assert.False(t, q1.Selected)

	// First quote moves a started session to quoted.
	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusQuoted), got.Status)

	_, err = store.AddQuote(ctx, record.ID, "q-2", registry.JSONDoc{"premium": 149.99})
	require.NoError(t, err)

	selected, err := store.SelectQuote(ctx, record.ID, "q-2")
	require.NoError(t, err)
	assert.True(t, selected.Selected)

	// Re-selecting moves the flag; at most one quote stays selected.
	_, err = store.SelectQuote(ctx, record.ID, "q-1")
	require.NoError(t, err)

	quotes, err := store.Quotes(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	selectedCount := 0
	for _, q := range quotes {
		if q.Selected {
			selectedCount++
			assert.Equal(t, "q-1", q.QuoteID)
		}
	}
	assert.Equal(t, 1, selectedCount)

	_, err = store.SelectQuote(ctx, record.ID, "q-missing")
	assert.True(t, IsNotFound(err))
}

func TestStore_IssuePolicy(t *testing.T) {
	_, store := newTestEnv(t)
	ctx := context.Background()
	record := startSession(t, store)

	policy, err := store.IssuePolicy(ctx, record.ID, "POL-123", "stub-insurer", registry.JSONDoc{"doc": "url"})
	require.NoError(t, err)
	assert.Equal(t, "POL-123", policy.PolicyNumber)

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusIssued), got.Status)

	policies, err := store.Policies(ctx, record.ID)
	require.NoError(t, err)
	assert.Len(t, policies, 1)

	// Issuing again from issued is a no-op transition and allowed; from a
	// terminal state it is not.
	_, err = store.Advance(ctx, record.ID, StatusCompleted)
	require.NoError(t, err)
	_, err = store.IssuePolicy(ctx, record.ID, "POL-124", "stub-insurer", registry.JSONDoc{})
	var terr *TransitionError
	assert.ErrorAs(t, err, &terr)
}

func TestStore_DeleteCascades(t *testing.T) {
	db, store := newTestEnv(t)
	ctx := context.Background()
	record := startSession(t, store)

	_, err := store.AddQuote(ctx, record.ID, "q-1", registry.JSONDoc{})
	require.NoError(t, err)
	_, err = store.IssuePolicy(ctx, record.ID, "POL-1", "insurer", registry.JSONDoc{})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, record.ID))

	_, err = store.Get(ctx, record.ID)
	assert.True(t, IsNotFound(err))

	var quotes, policies int64
	require.NoError(t, db.Model(&QuoteRecord{}).Where("session_id = ?", record.ID).Count(&quotes).Error)
	require.NoError(t, db.Model(&PolicyRecord{}).Where("session_id = ?", record.ID).Count(&policies).Error)
	assert.Zero(t, quotes)
	assert.Zero(t, policies)
}

func TestStore_DeleteExpired(t *testing.T) {
	db, store := newTestEnv(t)
	ctx := context.Background()

	expired := startSession(t, store)
	_, err := store.AddQuote(ctx, expired.ID, "q-1", registry.JSONDoc{})
	require.NoError(t, err)
	expireSession(t, db, expired.ID)

	alive := startSession(t, store)

	removed, err := store.DeleteExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = store.Get(ctx, expired.ID)
	assert.True(t, IsNotFound(err))
	_, err = store.Get(ctx, alive.ID)
	assert.NoError(t, err)

	var quotes int64
	require.NoError(t, db.Model(&QuoteRecord{}).Where("session_id = ?", expired.ID).Count(&quotes).Error)
	assert.Zero(t, quotes)

	// No expired rows left: second sweep is a no-op.
	removed, err = store.DeleteExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, removed)
}
