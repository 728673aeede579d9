package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/obstrigger/internal/db"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "ledger.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return New(database.DB)
}

func TestLedger_AppendAndQuery(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.Append(EventTriggerFired, "fire-1", 3, "obs", map[string]any{"actions": 2}))
	require.NoError(t, l.Append(EventActionCompleted, "fire-1", 3, "obs", map[string]any{"line": "OBS scene Main"}))
	require.NoError(t, l.Append(EventActionFailed, "fire-1", 3, "obs", map[string]any{"error": "boom"}))
	require.NoError(t, l.Append(EventTriggerFired, "fire-2", 3, "http", nil))

	n, err := l.CountFired(3)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = l.CountFired(4)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	fire, err := l.GetByFire("fire-1")
	require.NoError(t, err)
	require.Len(t, fire, 3)
	assert.Equal(t, EventTriggerFired, fire[0].EventType)
	assert.Equal(t, "OBS scene Main", fire[1].Payload["line"])
	assert.Equal(t, "boom", fire[2].Payload["error"])

	recent, err := l.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "fire-2", recent[0].FireID)
	assert.Equal(t, "http", recent[0].Source)
	assert.Nil(t, recent[0].Payload)

	failed, err := l.GetByType(EventActionFailed, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 3, failed[0].TriggerID)
}

func TestLedger_DeleteOlderThan(t *testing.T) {
	l := newTestLedger(t)

	now := time.Now()
	l.now = func() time.Time { return now.Add(-48 * time.Hour) }
	require.NoError(t, l.Append(EventTriggerFired, "old", 1, "obs", nil))

	l.now = func() time.Time { return now }
	require.NoError(t, l.Append(EventTriggerFired, "new", 1, "obs", nil))

	deleted, err := l.DeleteOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	recent, err := l.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].FireID)
}
