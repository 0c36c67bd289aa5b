package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stockwatch/internal/store"
)

func TestOpen_MissingFileStartsEmpty(t *testing.T) {
	t.Parallel()

	s, err := store.Open(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)

	_, ok := s.GetString("anything")
	require.False(t, ok)
}

func TestOpen_RejectsCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := store.Open(path)
	require.Error(t, err)
}

func TestRoundTripAcrossReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.json")
	expiry := time.Date(2026, 9, 1, 12, 30, 0, 0, time.UTC)

	s, err := store.Open(path)
	require.NoError(t, err)
	s.SetString("kis_token", "abc123")
	s.SetStrings("favorites", []string{"AAPL", "005930"})
	s.SetTime("kis_expiry", expiry)
	require.NoError(t, s.Save())

	reopened, err := store.Open(path)
	require.NoError(t, err)

	tok, ok := reopened.GetString("kis_token")
	require.True(t, ok)
	require.Equal(t, "abc123", tok)

	favs, ok := reopened.GetStrings("favorites")
	require.True(t, ok)
	require.Equal(t, []string{"AAPL", "005930"}, favs)

	got, ok := reopened.GetTime("kis_expiry")
	require.True(t, ok)
	require.True(t, got.Equal(expiry))
}

func TestGet_TypeMismatchReportsMissing(t *testing.T) {
	t.Parallel()

	s, err := store.Open(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)
	s.SetStrings("favorites", []string{"AAPL"})

	_, ok := s.GetString("favorites")
	require.False(t, ok)

	_, ok = s.GetTime("favorites")
	require.False(t, ok)
}

func TestSave_LeavesNoTempFilesBehind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	s.SetString("k", "v")
	require.NoError(t, s.Save())
	require.NoError(t, s.Save())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "settings.json", entries[0].Name())
}
