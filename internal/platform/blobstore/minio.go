package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the connection settings for an S3-compatible endpoint.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore stores objects in a single bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the endpoint and makes sure the bucket exists.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads data under key with the sha256 hash recorded as user metadata.
func (s *MinioStore) Put(ctx context.Context, key, contentType string, data []byte, tags map[string]string) (*Object, error) {
	if err := validate(key, data); err != nil {
		return nil, err
	}
	hash := hashOf(data)
	meta := map[string]string{"sha256": hash}
	for k, v := range tags {
		meta[k] = v
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}

	return &Object{
		Key:         key,
		ContentType: contentType,
		Size:        info.Size,
		Hash:        hash,
		CreatedAt:   info.LastModified,
		Tags:        tags,
	}, nil
}

// Get downloads the object at key.
func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, *Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("stat object %s: %w", key, err)
	}

	data, err := io.ReadAll(io.LimitReader(obj, MaxObjectSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("read object %s: %w", key, err)
	}

	return data, &Object{
		Key:         key,
		ContentType: stat.ContentType,
		Size:        stat.Size,
		Hash:        stat.UserMetadata["Sha256"],
		CreatedAt:   stat.LastModified,
	}, nil
}

// List returns objects below prefix, sorted by key.
func (s *MinioStore) List(ctx context.Context, prefix string) ([]*Object, error) {
	// Cancel stops the listing goroutine when we return before draining.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := []*Object{}
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, info.Err)
		}
		out = append(out, &Object{
			Key:         info.Key,
			ContentType: info.ContentType,
			Size:        info.Size,
			CreatedAt:   info.LastModified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
