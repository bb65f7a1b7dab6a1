package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutObjectWritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, err := New(dir)
	require.NoError(t, err)

	uri, err := a.PutObject(context.Background(), "sites/1/page-00.txt", "text/plain", strings.NewReader("swim content"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"))

	data, err := os.ReadFile(filepath.Join(dir, "sites", "1", "page-00.txt"))
	require.NoError(t, err)
	require.Equal(t, "swim content", string(data))
}

func TestPutObjectRejectsTraversal(t *testing.T) {
	t.Parallel()

	a, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = a.PutObject(context.Background(), "../escape.txt", "", strings.NewReader("x"))
	require.Error(t, err)
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	a, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = a.PutObject(context.Background(), "  ", "", strings.NewReader("x"))
	require.Error(t, err)
}

func TestNewCreatesMissingDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "archive")
	_, err := New(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
