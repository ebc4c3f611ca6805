package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		line := 7
		record := domain.NewSessionRecord(sessionID, "hot-cold.yaml")
		record.Status = domain.StatusSyncState
		record.State = &domain.DebuggerState{
			Threads:     []domain.ThreadInfo{{Name: "hot", Line: &line, Requested: []domain.Event{domain.NewEvent("hot")}}},
			Breakpoints: []bool{false, true},
			GlobalEnv:   map[string]string{"count": "42"},
			RunState:    domain.StateSync,
		}

		err := store.Save(ctx, sessionID, record)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, record.Program, loaded.Program)
		assert.Equal(t, domain.StatusSyncState, loaded.Status)
		require.NotNil(t, loaded.State)
		assert.Equal(t, domain.StateSync, loaded.State.RunState)
		assert.Equal(t, "42", loaded.State.GlobalEnv["count"])
		require.Len(t, loaded.State.Threads, 1)
		require.NotNil(t, loaded.State.Threads[0].Line)
		assert.Equal(t, 7, *loaded.State.Threads[0].Line)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewSessionRecord(sessionID, "p"))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewSessionRecord(id1, "p"))
		_ = store.Save(ctx, id2, domain.NewSessionRecord(id2, "p"))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
