package storage

import (
	"bytes"
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"os"
	"path/filepath"
	"testing"
	"warden/internal/types"
)

func content(s string) types.File {
	return types.File{
		Content: types.NoOpReadCloser{Reader: bytes.NewBufferString(s)},
		Stat:    types.FileStat{Size: int64(len(s))},
	}
}

func TestFileStorage_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	st, err := NewFileStorage(root)
	require.NoError(t, err)
	assert.Equal(t, TypeFS, st.Type())

	require.NoError(t, st.Save(ctx, "job-1/orders.sql.gz", content("dump")))
	_, err = os.Stat(filepath.Join(root, "job-1", "orders.sql.gz"))
	require.NoError(t, err)

	f, err := st.Get(ctx, "job-1/orders.sql.gz")
	require.NoError(t, err)
	data, err := io.ReadAll(f.Content)
	require.NoError(t, err)
	_ = f.Content.Close()
	assert.Equal(t, "dump", string(data))
	assert.Equal(t, int64(4), f.Stat.Size)

	require.NoError(t, st.Delete(ctx, "job-1/orders.sql.gz"))
	require.NoError(t, st.Delete(ctx, "job-1/orders.sql.gz"))
	_, err = st.Get(ctx, "job-1/orders.sql.gz")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestFileStorage_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	st, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, st.Save(ctx, "job-1/a.gz", content("a")))
	require.NoError(t, st.Save(ctx, "job-1/b.gz", content("b")))
	require.NoError(t, st.Save(ctx, "job-2/a.gz", content("c")))

	require.NoError(t, st.DeletePrefix(ctx, "job-1"))
	require.NoError(t, st.DeletePrefix(ctx, "job-1"))
	_, err = st.Get(ctx, "job-1/a.gz")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = st.Get(ctx, "job-2/a.gz")
	assert.NoError(t, err)

	assert.Error(t, st.DeletePrefix(ctx, ""))
}

func TestFileStorage_RejectsEscape(t *testing.T) {
	st, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	err = st.Save(context.Background(), "../outside.gz", content("x"))
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestFileStorage_Usage(t *testing.T) {
	ctx := context.Background()
	st, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, st.Save(ctx, "job-1/a.gz", content("12345")))
	require.NoError(t, st.Ping(ctx))

	usage, err := st.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), usage.BackupBytes)
	assert.Greater(t, usage.TotalBytes, int64(0))
	assert.GreaterOrEqual(t, usage.Percent(), 0.0)
	assert.LessOrEqual(t, usage.Percent(), 100.0)
}

func TestUsage_Percent(t *testing.T) {
	assert.Equal(t, 0.0, Usage{UsedBytes: 10}.Percent())
	assert.Equal(t, 50.0, Usage{UsedBytes: 5, TotalBytes: 10}.Percent())
	assert.Equal(t, 100.0, Usage{UsedBytes: 20, TotalBytes: 10}.Percent())
}
