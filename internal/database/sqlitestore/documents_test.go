package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"groupguard/internal/moderation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDocumentStore(t *testing.T) *DocumentStore {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "groupguard.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return NewDocumentStore(db)
}

func TestDocumentStore(t *testing.T) {
	ctx := context.Background()
	docs := setupTestDocumentStore(t)

	t.Run("missing document", func(t *testing.T) {
		data, err := docs.Load(ctx, moderation.DocumentAdmins)
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("upsert", func(t *testing.T) {
		require.NoError(t, docs.Save(ctx, moderation.DocumentAdmins, []byte(`{"G1":["A1"]}`)))
		require.NoError(t, docs.Save(ctx, moderation.DocumentAdmins, []byte(`{"G1":["A1","A2"]}`)))

		data, err := docs.Load(ctx, moderation.DocumentAdmins)
		require.NoError(t, err)
		assert.JSONEq(t, `{"G1":["A1","A2"]}`, string(data))

		updatedAt, err := docs.UpdatedAt(ctx, moderation.DocumentAdmins)
		require.NoError(t, err)
		assert.False(t, updatedAt.IsZero())
	})
}

func TestWarningLedger_OnSQLite(t *testing.T) {
	ctx := context.Background()
	docs := setupTestDocumentStore(t)

	blacklist := moderation.NewBlacklistStore(ctx, docs)
	ledger := moderation.NewWarningLedger(ctx, docs, blacklist, 3)

	_, err := ledger.AddWarning(ctx, "G1", "U1", "spam", "A1")
	require.NoError(t, err)
	_, err = ledger.AddWarning(ctx, "G1", "U1", "flood", "A1")
	require.NoError(t, err)

	reloaded := moderation.NewWarningLedger(ctx, docs, blacklist, 3)
	warnings := reloaded.GetWarnings(ctx, "G1", "U1")
	require.Len(t, warnings, 2)
	assert.Equal(t, "spam", warnings[0].Reason)
	assert.Equal(t, "flood", warnings[1].Reason)
}
