package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteProgram writes a program definition named name.yaml into a temporary directory.
// It returns the directory and the absolute path of the file.
// It fails the test immediately on error.
func WriteProgram(t *testing.T, name, content string) (string, string) {
	t.Helper()

	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "Failed to write program")

	return dir, path
}
