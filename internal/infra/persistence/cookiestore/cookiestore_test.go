package cookiestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	s := InitFileStore(filepath.Join(t.TempDir(), "cookies.json"))
	cookies, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, cookies)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "cookies.json")
	s := InitFileStore(path)

	require.NoError(t, s.Save(map[string]string{"u": "abc", "sessid": "42"}))
	require.NoError(t, s.Save(map[string]string{"u": "def"}))

	cookies, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"u": "def"}, cookies)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := InitFileStore(path).Load()
	assert.Error(t, err)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	cookies, err := InitFileStore(path).Load()
	require.NoError(t, err)
	assert.Empty(t, cookies)
}
