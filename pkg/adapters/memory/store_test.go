package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rewind/pkg/adapters/memory"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunStateStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	record := domain.NewSessionRecord("s1", "hot-cold")
	record.State = &domain.DebuggerState{GlobalEnv: map[string]string{"poured": "0"}}
	require.NoError(t, store.Save(ctx, "s1", record))

	record.State.GlobalEnv["poured"] = "1"
	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "0", loaded.State.GlobalEnv["poured"], "the store keeps its own copy")
}
