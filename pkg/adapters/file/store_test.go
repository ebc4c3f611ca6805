package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rewind/pkg/adapters/file"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
)

var _ ports.StateStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunStateStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_Files(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	t.Run("DeleteRemovesFile", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "gone", domain.NewSessionRecord("gone", "p")))
		path := filepath.Join(dir, "gone.json")
		_, err := os.Stat(path)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, "gone"))
		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("DeleteNonExistent", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "ghost-session"))
	})

	t.Run("ListIgnoresOtherFiles", func(t *testing.T) {
		listDir := t.TempDir()
		listStore := file.New(listDir)
		for _, id := range []string{"s2", "s1", "s3"} {
			require.NoError(t, listStore.Save(ctx, id, domain.NewSessionRecord(id, "p")))
		}
		require.NoError(t, os.WriteFile(filepath.Join(listDir, "garbage.txt"), []byte("garbage"), 0o644))

		list, err := listStore.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"s1", "s2", "s3"}, list)
	})

	t.Run("RejectsPathIDs", func(t *testing.T) {
		assert.Error(t, store.Save(ctx, "../escape", domain.NewSessionRecord("x", "p")))
		assert.Error(t, store.Save(ctx, "", domain.NewSessionRecord("x", "p")))
	})

	t.Run("MissingDirectoryListsNothing", func(t *testing.T) {
		list, err := file.New(filepath.Join(dir, "nope")).List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
