package backup

import (
	"bytes"
	"context"
	"errors"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"io"
	"os"
	"path/filepath"
	"testing"
	"warden/internal/integrations/docker"
	"warden/internal/storage"
	"warden/internal/types"
	"warden/logger"
)

func TestMain(m *testing.M) {
	logger.Replace(zap.NewNop())
	os.Exit(m.Run())
}

type fakeDumper struct {
	payload map[string]string
	fail    map[string]error
	calls   []string
}

func (f *fakeDumper) Dump(_ context.Context, resource types.Resource) (types.File, error) {
	f.calls = append(f.calls, resource.Name)
	if err, ok := f.fail[resource.Name]; ok {
		return types.File{}, err
	}
	data := f.payload[resource.Name]
	return types.File{
		Content: types.NoOpReadCloser{Reader: bytes.NewBufferString(data)},
		Stat:    types.FileStat{Size: int64(len(data))},
	}, nil
}

func (f *fakeDumper) Extension() string {
	return "sql"
}

func testCatalog() *types.Catalog {
	return types.NewCatalog(
		types.Resource{Name: "orders", Engine: types.StorageEnginePostgres, Container: "pg-orders"},
		types.Resource{Name: "users", Engine: types.StorageEnginePostgres, Container: "pg-users"},
		types.Resource{Name: "billing", Engine: types.StorageEnginePostgres, Container: "pg-billing"},
		types.Resource{Name: "cache", Engine: types.StorageEngineRedis, Container: "redis"},
	)
}

func newTestEngine(t *testing.T, dumper *fakeDumper) (Engine, string) {
	t.Helper()
	root := t.TempDir()
	st, err := storage.NewFileStorage(root)
	require.NoError(t, err)
	dumpers := map[types.StorageEngine]Dumper{types.StorageEnginePostgres: dumper}
	return NewEngine(testCatalog(), dumpers, st), root
}

func TestEngine_Backup(t *testing.T) {
	dumper := &fakeDumper{payload: map[string]string{
		"orders": "create table orders();",
		"users":  "create table users();",
	}}
	engine, root := newTestEngine(t, dumper)
	jobUUID := uuid.New()

	res, err := engine.Backup(context.Background(), Request{JobUUID: jobUUID, BackupType: types.BackupTypeFull, Databases: []string{"orders", "users"}})
	require.NoError(t, err)
	assert.Equal(t, jobUUID.String(), res.Path)
	require.Len(t, res.Databases, 2)
	assert.Equal(t, int64(len("create table orders();")+len("create table users();")), res.TotalSizeBytes)
	assert.Greater(t, res.CompressedSizeBytes, int64(0))

	f, err := os.Open(filepath.Join(root, jobUUID.String(), "orders.sql.gz"))
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "create table orders();", string(data))
}

func TestEngine_PartialFailureDiscardsArtifacts(t *testing.T) {
	dumper := &fakeDumper{
		payload: map[string]string{"orders": "a", "billing": "c"},
		fail:    map[string]error{"users": errors.New("connection refused")},
	}
	engine, root := newTestEngine(t, dumper)
	jobUUID := uuid.New()

	_, err := engine.Backup(context.Background(), Request{JobUUID: jobUUID, Databases: []string{"orders", "users", "billing"}})
	require.Error(t, err)

	var partial *PartialError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, []string{"users"}, partial.Failed)
	assert.Equal(t, []string{"orders", "billing"}, partial.Succeeded)
	assert.Contains(t, err.Error(), "users: connection refused")
	assert.Equal(t, ClassPartial, Classify(err))
	assert.Equal(t, []string{"orders", "users", "billing"}, dumper.calls)

	_, statErr := os.Stat(filepath.Join(root, jobUUID.String()))
	assert.True(t, os.IsNotExist(statErr))
}

func TestEngine_ConfigurationErrors(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeDumper{})

	_, err := engine.Backup(context.Background(), Request{JobUUID: uuid.New(), Databases: []string{"ghost"}})
	assert.ErrorIs(t, err, ErrUnknownResource)
	assert.Equal(t, ClassConfiguration, Classify(err))

	_, err = engine.Backup(context.Background(), Request{JobUUID: uuid.New(), Databases: []string{"cache"}})
	assert.ErrorIs(t, err, ErrUnsupportedEngine)
	assert.Equal(t, ClassConfiguration, Classify(err))
}

func TestEngine_UnavailableAbortsJob(t *testing.T) {
	dumper := &fakeDumper{
		payload: map[string]string{"orders": "a"},
		fail:    map[string]error{"users": docker.ErrUnavailable},
	}
	engine, _ := newTestEngine(t, dumper)

	_, err := engine.Backup(context.Background(), Request{JobUUID: uuid.New(), Databases: []string{"orders", "users", "billing"}})
	assert.ErrorIs(t, err, ErrEngineUnavailable)
	assert.Equal(t, ClassTransient, Classify(err))
	assert.Equal(t, []string{"orders", "users"}, dumper.calls)
}

func TestEngine_CancelledContext(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeDumper{payload: map[string]string{"orders": "a"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Backup(ctx, Request{JobUUID: uuid.New(), Databases: []string{"orders"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ClassCancelled, Classify(err))
}

func TestEngine_Delete(t *testing.T) {
	engine, root := newTestEngine(t, &fakeDumper{payload: map[string]string{"orders": "a"}})
	jobUUID := uuid.New()
	res, err := engine.Backup(context.Background(), Request{JobUUID: jobUUID, Databases: []string{"orders"}})
	require.NoError(t, err)

	require.NoError(t, engine.Delete(context.Background(), res.Path))
	_, statErr := os.Stat(filepath.Join(root, jobUUID.String(), "orders.sql.gz"))
	assert.True(t, os.IsNotExist(statErr))
	assert.NoError(t, engine.Delete(context.Background(), ""))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"timeout", context.DeadlineExceeded, ClassTimeout},
		{"cancelled", context.Canceled, ClassCancelled},
		{"credentials", ErrMissingCredentials, ClassConfiguration},
		{"unknown", ErrUnknownResource, ClassConfiguration},
		{"storage", ErrStorageUnwritable, ClassTransient},
		{"other", errors.New("boom"), ClassTransient},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, Classify(test.err))
		})
	}

	all := &PartialError{}
	all.add("orders", errors.New("x"))
	assert.Equal(t, ClassTransient, Classify(all), "no database succeeded")
}
