package storage

import (
	"context"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"strings"
	"warden/internal/types"
)

const (
	defaultBucket = "backups"
)

type (
	Credentials struct {
		Endpoint    string
		AccessKeyID string
		SecretKey   string
		Region      string
		Bucket      string
		UseSSL      bool
		// CapacityBytes is the quota the bucket is measured against.
		CapacityBytes int64
	}

	objectStorage struct {
		client   *minio.Client
		region   string
		bucket   string
		capacity int64
	}
)

func NewObjectStorage(cred Credentials) (Storage, error) {
	mn, err := minio.New(cred.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cred.AccessKeyID, cred.SecretKey, ""),
		Secure: cred.UseSSL,
		Region: cred.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "invalid object storage credential")
	}

	bucket := cred.Bucket
	if bucket == "" {
		bucket = defaultBucket
	}
	return &objectStorage{
		region:   cred.Region,
		client:   mn,
		bucket:   bucket,
		capacity: cred.CapacityBytes,
	}, nil
}

func (s objectStorage) Save(ctx context.Context, location string, file types.File) error {
	if err := s.makeBucket(ctx); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, s.bucket, key(location), file.Content, file.Stat.Size, minio.PutObjectOptions{
		ContentType: file.GetContentType(),
	})
	return err
}

func (s objectStorage) Get(ctx context.Context, location string) (*types.File, error) {
	r, err := s.client.GetObject(ctx, s.bucket, key(location), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}

	stat, err := r.Stat()
	if err != nil {
		_ = r.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, types.NotFound("artifact %s not found", location)
		}
		return nil, err
	}

	return &types.File{
		Content: r,
		Stat:    types.FileStat{Size: stat.Size, ContentType: stat.ContentType},
	}, nil
}

func (s objectStorage) Delete(ctx context.Context, location string) error {
	return s.client.RemoveObject(ctx, s.bucket, key(location), minio.RemoveObjectOptions{})
}

func (s objectStorage) DeletePrefix(ctx context.Context, prefix string) error {
	p := key(prefix)
	if p == "" {
		return errors.New("refusing to delete the whole bucket")
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: p, Recursive: true}) {
		if obj.Err != nil {
			return obj.Err
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return errors.Wrapf(err, "failed to remove %s", obj.Key)
		}
	}
	return nil
}

func (s objectStorage) Ping(ctx context.Context) error {
	_, err := s.client.ListBuckets(ctx)
	if err != nil {
		return err
	}
	return nil
}

func (s objectStorage) Usage(ctx context.Context) (Usage, error) {
	var used int64
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return Usage{}, obj.Err
		}
		used += obj.Size
	}
	return Usage{UsedBytes: used, TotalBytes: s.capacity, BackupBytes: used}, nil
}

func (s objectStorage) Type() Type {
	return TypeS3
}

func (s objectStorage) makeBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{
		Region: s.region,
	})
}

func key(location string) string {
	return strings.TrimPrefix(location, "/")
}
