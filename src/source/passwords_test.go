package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "passwords.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func drain(t *testing.T, src Source, n int) [][]string {
	t.Helper()
	r, err := src.Open()
	require.NoError(t, err)
	defer r.Close()

	var batches [][]string
	for {
		batch, err := r.Next(n)
		require.NoError(t, err)
		if len(batch) == 0 {
			return batches
		}
		batches = append(batches, batch)
	}
}

func TestFile_CountAndBatches(t *testing.T) {
	src := File{Path: writeList(t, "a\nb\nc\nd\ne\n")}

	total, err := src.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, drain(t, src, 2))
}

func TestFile_NoTrailingNewline(t *testing.T) {
	src := File{Path: writeList(t, "one\ntwo")}

	total, err := src.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, [][]string{{"one", "two"}}, drain(t, src, 4))
}

func TestFile_TrimsTrailingWhitespaceKeepsEmpty(t *testing.T) {
	src := File{Path: writeList(t, "secret \r\n\n  lead\t\n")}

	total, err := src.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, [][]string{{"secret", "", "  lead"}}, drain(t, src, 3))
}

func TestFile_Empty(t *testing.T) {
	src := File{Path: writeList(t, "")}

	total, err := src.Count()
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, drain(t, src, 4))
}

func TestFile_Missing(t *testing.T) {
	src := File{Path: filepath.Join(t.TempDir(), "nope.txt")}

	_, err := src.Count()
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = src.Open()
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFile_LineTooLong(t *testing.T) {
	src := File{Path: writeList(t, strings.Repeat("x", maxLineSize+1)+"\n")}

	_, err := src.Count()
	require.Error(t, err)
}

func TestSlice_Batches(t *testing.T) {
	src := Slice{"a", "b", "c"}

	total, err := src.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, [][]string{{"a", "b", "c"}}, drain(t, src, 3))
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, drain(t, src, 1))
}
