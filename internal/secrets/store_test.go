package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.Fetch(ProviderKeyName)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(" Anchor-Service ", "sekrit"))
	got, err := s.Fetch(ProviderKeyName)
	require.NoError(t, err)
	require.Equal(t, "sekrit", got)

	require.NoError(t, s.Delete(ProviderKeyName))
	_, err = s.Fetch(ProviderKeyName)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreFileIsNotPlainText(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, s.Put(ProviderKeyName, "plain-key-value"))

	data, err := os.ReadFile(filepath.Join(dir, fileName))
	require.NoError(t, err)
	require.False(t, strings.Contains(string(data), "plain-key-value"))

	info, err := os.Stat(filepath.Join(dir, fileName))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStoreRequiresName(t *testing.T) {
	s := NewStore(t.TempDir())
	require.Error(t, s.Put("  ", "x"))
	_, err := s.Fetch("")
	require.Error(t, err)
}

func TestResolveAPIKeyOrder(t *testing.T) {
	s := NewStore(t.TempDir())
	t.Setenv("TEST_ANCHOR_KEY", "")

	require.Equal(t, "from-config", ResolveAPIKey(s, "TEST_ANCHOR_KEY", " from-config "))

	require.NoError(t, s.Put(ProviderKeyName, "from-file"))
	require.Equal(t, "from-file", ResolveAPIKey(s, "TEST_ANCHOR_KEY", "from-config"))

	t.Setenv("TEST_ANCHOR_KEY", "from-env")
	require.Equal(t, "from-env", ResolveAPIKey(s, "TEST_ANCHOR_KEY", "from-config"))

	require.Equal(t, "from-config", ResolveAPIKey(nil, "", "from-config"))
}
