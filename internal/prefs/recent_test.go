package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/cloudanchors/internal/shortcode"
)

func useTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev := Dir
	Dir = func() (string, error) { return dir, nil }
	t.Cleanup(func() { Dir = prev })
	return dir
}

func TestLoadRecentCodesMissingFile(t *testing.T) {
	useTempDir(t)
	codes, err := LoadRecentCodes()
	require.NoError(t, err)
	require.Empty(t, codes)
}

func TestRememberCodeOrdersAndDedupes(t *testing.T) {
	useTempDir(t)

	for _, c := range []shortcode.Code{142, 143, 144, 142} {
		_, err := RememberCode(c)
		require.NoError(t, err)
	}
	codes, err := LoadRecentCodes()
	require.NoError(t, err)
	require.Equal(t, []shortcode.Code{142, 144, 143}, codes)
}

func TestSaveRecentCodesCaps(t *testing.T) {
	useTempDir(t)
	var in []shortcode.Code
	for i := 1; i <= MaxRecent+5; i++ {
		in = append(in, shortcode.Code(i))
	}
	in = append(in, 0, -3)
	require.NoError(t, SaveRecentCodes(in))

	codes, err := LoadRecentCodes()
	require.NoError(t, err)
	require.Len(t, codes, MaxRecent)
	require.Equal(t, shortcode.Code(1), codes[0])
}

func TestLoadRecentCodesCorrupt(t *testing.T) {
	dir := useTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, recentFile), []byte("{nope"), 0o600))
	_, err := LoadRecentCodes()
	require.Error(t, err)

	// a corrupt file is replaced on the next remember
	codes, err := RememberCode(7)
	require.NoError(t, err)
	require.Equal(t, []shortcode.Code{7}, codes)
}
