package storage

import (
	"context"
	"warden/internal/types"
)

type (
	Type string

	Storage interface {
		Save(ctx context.Context, location string, f types.File) error
		Get(ctx context.Context, location string) (*types.File, error)
		Delete(ctx context.Context, location string) error
		// DeletePrefix removes every artifact stored under prefix. Removing a
		// prefix that holds nothing is not an error.
		DeletePrefix(ctx context.Context, prefix string) error
		Ping(ctx context.Context) error
		Usage(ctx context.Context) (Usage, error)
		Type() Type
	}

	// Usage describes how full the storage backing the artifacts is.
	Usage struct {
		UsedBytes   int64 `json:"used_bytes"`
		TotalBytes  int64 `json:"total_bytes"`
		BackupBytes int64 `json:"backup_bytes"`
	}
)

const (
	TypeFS Type = "File"
	TypeS3 Type = "S3"
)

func (t Type) String() string {
	return string(t)
}

// Percent returns used/total in [0,100]; an unknown total reports 0.
func (u Usage) Percent() float64 {
	if u.TotalBytes <= 0 {
		return 0
	}
	p := float64(u.UsedBytes) / float64(u.TotalBytes) * 100
	if p > 100 {
		return 100
	}
	return p
}
