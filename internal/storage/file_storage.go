package storage

import (
	"context"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/disk"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"warden/internal/types"
)

type fileStorage struct {
	root string
}

func NewFileStorage(root string) (Storage, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, errors.Wrap(err, "failed to create backup directory")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &fileStorage{root: abs}, nil
}

func (f fileStorage) Save(ctx context.Context, location string, file types.File) error {
	target, err := f.resolve(location)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return err
	}

	fi, err := os.Create(target)
	if err != nil {
		return err
	}
	defer func() {
		_ = fi.Close()
	}()

	if _, err = io.Copy(fi, file.Content); err != nil {
		return err
	}
	return fi.Sync()
}

func (f fileStorage) Get(ctx context.Context, location string) (*types.File, error) {
	target, err := f.resolve(location)
	if err != nil {
		return nil, err
	}

	fi, err := os.Open(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NotFound("artifact %s not found", location)
		}
		return nil, err
	}

	stat, err := fi.Stat()
	if err != nil {
		_ = fi.Close()
		return nil, err
	}

	return &types.File{
		Content: fi,
		Stat:    types.FileStat{Size: stat.Size(), Mode: stat.Mode()},
	}, nil
}

func (f fileStorage) Delete(ctx context.Context, location string) error {
	target, err := f.resolve(location)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f fileStorage) DeletePrefix(ctx context.Context, prefix string) error {
	target, err := f.resolve(prefix)
	if err != nil {
		return err
	}
	if target == f.root {
		return errors.New("refusing to delete the storage root")
	}
	return os.RemoveAll(target)
}

func (f fileStorage) Ping(ctx context.Context) error {
	probe, err := os.CreateTemp(f.root, ".ping-*")
	if err != nil {
		return errors.Wrap(err, "backup directory is not writable")
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

func (f fileStorage) Usage(ctx context.Context) (Usage, error) {
	st, err := disk.UsageWithContext(ctx, f.root)
	if err != nil {
		return Usage{}, errors.Wrap(err, "failed to read disk usage")
	}

	var backupBytes int64
	err = filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		backupBytes += info.Size()
		return nil
	})
	if err != nil {
		return Usage{}, err
	}

	return Usage{
		UsedBytes:   int64(st.Used),
		TotalBytes:  int64(st.Total),
		BackupBytes: backupBytes,
	}, nil
}

func (f fileStorage) Type() Type {
	return TypeFS
}

// resolve maps a storage location onto the root and rejects escapes.
func (f fileStorage) resolve(location string) (string, error) {
	target := filepath.Join(f.root, filepath.FromSlash(strings.TrimPrefix(location, "/")))
	if target != f.root && !strings.HasPrefix(target, f.root+string(filepath.Separator)) {
		return "", types.Invalid("location %q escapes the storage root", location)
	}
	return target, nil
}
