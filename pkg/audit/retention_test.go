package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetentionWorker_Cleanup(t *testing.T) {
	store := newTestStore(t)

	old := &EventRecord{
		EventType:    "draft.created",
		Actor:        "alice",
		ResourceType: "wizard",
		ResourceID:   "wizard.old",
	}
	require.NoError(t, store.Append(old))
	require.NoError(t, store.db.Model(old).
		Update("created_at", time.Now().Add(-10*24*time.Hour)).Error)

	fresh := &EventRecord{
		EventType:    "draft.created",
		Actor:        "alice",
		ResourceType: "wizard",
		ResourceID:   "wizard.new",
	}
	require.NoError(t, store.Append(fresh))

	worker := NewRetentionWorker(store, 7, nil)
	worker.cleanup()

	remaining, err := store.List(ListFilter{}, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "wizard.new", remaining[0].ResourceID)
}
