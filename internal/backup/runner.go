package backup

import (
	"context"
	"fmt"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"io"
	"os"
	"warden/internal/storage"
	"warden/internal/types"
	"warden/logger"
)

type runner struct {
	catalog *types.Catalog
	dumpers map[types.StorageEngine]Dumper
	storage storage.Storage
}

// NewEngine returns an Engine that dumps catalog resources one at a time,
// compresses every dump and stores it under <job_uuid>/<database>.<ext>.gz.
func NewEngine(catalog *types.Catalog, dumpers map[types.StorageEngine]Dumper, st storage.Storage) Engine {
	return &runner{catalog: catalog, dumpers: dumpers, storage: st}
}

func (r *runner) Backup(ctx context.Context, req Request) (Result, error) {
	result := Result{Path: req.JobUUID.String()}
	partial := &PartialError{}

	for _, name := range req.Databases {
		if err := ctx.Err(); err != nil {
			r.discard(req)
			return Result{}, err
		}

		dr, err := r.backupOne(ctx, req, name)
		if err != nil {
			// an unreachable engine or an expired context fails every database that follows
			if ctx.Err() != nil {
				r.discard(req)
				return Result{}, errors.Wrapf(ctx.Err(), "backup of %s interrupted", name)
			}
			if isUnavailable(err) {
				r.discard(req)
				return Result{}, errors.Wrap(ErrEngineUnavailable, err.Error())
			}
			logger.Warn("database backup failed",
				zap.String("job", req.JobUUID.String()),
				zap.String("database", name),
				zap.Error(err))
			partial.add(name, err)
			continue
		}

		partial.Succeeded = append(partial.Succeeded, name)
		result.Databases = append(result.Databases, dr)
		result.TotalSizeBytes += dr.Size
		result.CompressedSizeBytes += dr.CompressedSize
	}

	if err := partial.ErrorOrNil(); err != nil {
		r.discard(req)
		return Result{}, err
	}
	return result, nil
}

func (r *runner) Delete(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	return r.storage.DeletePrefix(ctx, path)
}

func (r *runner) backupOne(ctx context.Context, req Request, name string) (DatabaseResult, error) {
	resource, ok := r.catalog.Lookup(name)
	if !ok {
		return DatabaseResult{}, errors.Wrapf(ErrUnknownResource, "database %s", name)
	}
	dumper, ok := r.dumpers[resource.Engine]
	if !ok {
		return DatabaseResult{}, errors.Wrapf(ErrUnsupportedEngine, "%s (%s)", resource.Engine, name)
	}

	raw, err := dumper.Dump(ctx, resource)
	if err != nil {
		return DatabaseResult{}, err
	}
	defer raw.Release()

	compressed, size, err := compress(raw)
	if err != nil {
		return DatabaseResult{}, errors.Wrapf(err, "failed to compress %s dump", name)
	}
	defer compressed.Release()

	location := fmt.Sprintf("%s/%s.%s.gz", req.JobUUID, name, dumper.Extension())
	if err := r.storage.Save(ctx, location, compressed); err != nil {
		if ctx.Err() != nil {
			return DatabaseResult{}, ctx.Err()
		}
		return DatabaseResult{}, errors.Wrap(ErrStorageUnwritable, err.Error())
	}

	logger.Info("database backup stored",
		zap.String("job", req.JobUUID.String()),
		zap.String("database", name),
		zap.String("location", location),
		zap.Int64("size", size),
		zap.Int64("compressed_size", compressed.Stat.Size))

	return DatabaseResult{
		Database:       name,
		Location:       location,
		Size:           size,
		CompressedSize: compressed.Stat.Size,
	}, nil
}

// discard removes whatever the job already wrote. Storage errors are only
// logged, the job outcome is decided by the error that caused the discard.
func (r *runner) discard(req Request) {
	if err := r.storage.DeletePrefix(context.Background(), req.JobUUID.String()); err != nil {
		logger.Error("failed to discard partial backup",
			zap.String("job", req.JobUUID.String()),
			zap.Error(err))
	}
}

// compress gzips src into a temp file and returns it rewound along with the
// number of uncompressed bytes read.
func compress(src types.File) (types.File, int64, error) {
	tmp, err := os.CreateTemp("", "warden-*.gz")
	if err != nil {
		return types.File{}, 0, err
	}
	out := types.File{Content: tmp, Stat: types.FileStat{Name: tmp.Name(), ContentType: "application/gzip"}}

	zw := gzip.NewWriter(tmp)
	n, err := io.Copy(zw, src.Content)
	if err != nil {
		out.Release()
		return types.File{}, 0, err
	}
	if err := zw.Close(); err != nil {
		out.Release()
		return types.File{}, 0, err
	}

	stat, err := tmp.Stat()
	if err != nil {
		out.Release()
		return types.File{}, 0, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		out.Release()
		return types.File{}, 0, err
	}
	out.Stat.Size = stat.Size()
	out.Stat.Mode = stat.Mode()
	return out, n, nil
}
