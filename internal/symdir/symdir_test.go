package symdir_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"stockwatch/internal/symdir"
)

// samsungEUCKR is "삼성전자" in the master file's legacy encoding.
var samsungEUCKR = []byte{0xBB, 0xEF, 0xBC, 0xBA, 0xC0, 0xFC, 0xC0, 0xDA}

// masterRecord builds one fixed-layout line: code padded to 9 bytes,
// 12 filler bytes, then the name padded to 40 bytes.
func masterRecord(code string, name []byte) []byte {
	var b bytes.Buffer
	b.WriteString(code)
	for b.Len() < 9 {
		b.WriteByte(' ')
	}
	b.WriteString("ST0011122233")
	b.Write(name)
	for b.Len() < 61 {
		b.WriteByte(' ')
	}
	b.WriteString("20260101Y")
	b.WriteByte('\n')
	return b.Bytes()
}

func writeMaster(t *testing.T, records ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kospi_code.mst")
	var b bytes.Buffer
	for _, r := range records {
		b.Write(r)
	}
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	return path
}

func TestLoadMasterFiles_DecodesRecord(t *testing.T) {
	t.Parallel()

	path := writeMaster(t,
		masterRecord("A005930", samsungEUCKR),
		[]byte("too short\n"),
	)

	dir := symdir.New(nil)
	dir.LoadMasterFiles(path)

	// Class prefix dropped, EUC-KR name decoded, short line skipped.
	require.Equal(t, 1, dir.Len())
	require.Equal(t, "삼성전자", dir.NameFor("005930"))
}

func TestLoadMasterFiles_ShortCodeKeepsAllDigits(t *testing.T) {
	t.Parallel()

	// A code that trims to fewer than 7 characters has no class prefix.
	path := writeMaster(t, masterRecord("035420", []byte("NAVER")))

	dir := symdir.New(nil)
	dir.LoadMasterFiles(path)

	require.Equal(t, "NAVER", dir.NameFor("035420"))
}

func TestLoadMasterFiles_MissingFileIsTolerated(t *testing.T) {
	t.Parallel()

	dir := symdir.New(nil)
	dir.LoadMasterFiles(filepath.Join(t.TempDir(), "does-not-exist.mst"))
	require.Equal(t, 0, dir.Len())
}

func TestAddOrUpdate_EmptyArgumentsAreNoOps(t *testing.T) {
	t.Parallel()

	dir := symdir.New(nil)
	dir.AddOrUpdate("", "name")
	dir.AddOrUpdate("code", "")
	require.Equal(t, 0, dir.Len())
}

func TestNameFor_FallsBackToCode(t *testing.T) {
	t.Parallel()

	dir := symdir.New(nil)
	require.Equal(t, "UNKNOWN", dir.NameFor("UNKNOWN"))
}

func TestCodeFor_RoundTripAndSentinel(t *testing.T) {
	t.Parallel()

	dir := symdir.New(nil)
	dir.AddOrUpdate("005930", "삼성전자")

	code, ok := dir.CodeFor("삼성전자")
	require.True(t, ok)
	require.Equal(t, "005930", code)
	require.Equal(t, "삼성전자", dir.NameFor(code))

	_, ok = dir.CodeFor("없는회사")
	require.False(t, ok)
}

func TestCodeFor_DuplicateNameLastInsertWins(t *testing.T) {
	t.Parallel()

	dir := symdir.New(nil)
	dir.AddOrUpdate("AAA", "SAME NAME")
	dir.AddOrUpdate("BBB", "SAME NAME")

	code, ok := dir.CodeFor("SAME NAME")
	require.True(t, ok)
	require.Equal(t, "BBB", code)
}

func TestSearch_EmptyKeywordYieldsNothing(t *testing.T) {
	t.Parallel()

	dir := symdir.New(nil)
	dir.AddOrUpdate("AAPL", "APPLE INC")
	require.Empty(t, dir.Search("", 10))
}

func TestSearch_TierOrdering(t *testing.T) {
	t.Parallel()

	dir := symdir.New(nil)
	dir.AddOrUpdate("AAPL", "APPLE INC")   // exact on code
	dir.AddOrUpdate("AAPLW", "APPLE WT")   // prefix on code
	dir.AddOrUpdate("ZAAPLZ", "Z HOLDING") // contains on code

	got := dir.Search("aapl", 10)
	require.Equal(t, []string{
		"APPLE INC (AAPL)",
		"APPLE WT (AAPLW)",
		"Z HOLDING (ZAAPLZ)",
	}, got)
}

func TestSearch_MatchesNamesCaseInsensitively(t *testing.T) {
	t.Parallel()

	dir := symdir.New(nil)
	dir.AddOrUpdate("005930", "삼성전자")
	dir.AddOrUpdate("005935", "삼성전자우")

	got := dir.Search("삼성전자", 10)
	require.Equal(t, []string{
		"삼성전자 (005930)",
		"삼성전자우 (005935)",
	}, got)
}

func TestSearch_NeverExceedsLimit(t *testing.T) {
	t.Parallel()

	dir := symdir.New(nil)
	dir.AddOrUpdate("AA1", "ALPHA ONE")
	dir.AddOrUpdate("AA2", "ALPHA TWO")
	dir.AddOrUpdate("AA3", "ALPHA THREE")
	dir.AddOrUpdate("AA4", "ALPHA FOUR")

	got := dir.Search("aa", 2)
	require.Len(t, got, 2)
}
