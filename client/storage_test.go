package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStorage(t *testing.T, s LocalStorage) {
	t.Helper()

	_, ok, err := s.GetItem("projects")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetItem("projects", `[]`))
	v, ok, err := s.GetItem("projects")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, v)

	require.NoError(t, s.SetItem("projects", `[{"id":"a"}]`))
	v, _, _ = s.GetItem("projects")
	assert.Equal(t, `[{"id":"a"}]`, v)

	require.NoError(t, s.RemoveItem("projects"))
	require.NoError(t, s.RemoveItem("projects"))
	_, ok, _ = s.GetItem("projects")
	assert.False(t, ok)
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

func TestDirStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirStorage(dir)
	require.NoError(t, err)
	exerciseStorage(t, s)

	require.NoError(t, s.SetItem("../escape", "x"))
	_, err = os.Stat(filepath.Join(dir, "_escape.json"))
	assert.NoError(t, err, "keys cannot leave the directory")

	reopened, err := NewDirStorage(dir)
	require.NoError(t, err)
	v, ok, err := reopened.GetItem("../escape")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestNewDirStorage_RequiresDir(t *testing.T) {
	_, err := NewDirStorage("  ")
	assert.Error(t, err)
}
