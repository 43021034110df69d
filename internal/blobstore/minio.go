package blobstore

import (
	"context"
	"errors"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/openkcm/common-sdk/pkg/commoncfg"

	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/errs"
)

var (
	ErrLoadingBlobAccessKey = errors.New("error loading blob access key")
	ErrLoadingBlobSecretKey = errors.New("error loading blob secret key")
	ErrCreatingBlobClient   = errors.New("error creating blob client")
)

// MinioStore backs Store with an S3 compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(cfg config.Blob) (*MinioStore, error) {
	accessKey, err := commoncfg.LoadValueFromSourceRef(cfg.AccessKey)
	if err != nil {
		return nil, errs.Wrap(ErrLoadingBlobAccessKey, err)
	}

	secretKey, err := commoncfg.LoadValueFromSourceRef(cfg.SecretKey)
	if err != nil {
		return nil, errs.Wrap(ErrLoadingBlobSecretKey, err)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(string(accessKey), string(secretKey), ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errs.Wrap(ErrCreatingBlobClient, err)
	}

	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func (s *MinioStore) ListPrefix(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, errs.Wrap(ErrListObjects, obj.Err)
		}

		objects = append(objects, ObjectInfo{
			Path: obj.Key,
			Size: obj.Size,
		})
	}

	return objects, nil
}

func (s *MinioStore) Move(ctx context.Context, src, dst string) error {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dst},
		minio.CopySrcOptions{Bucket: s.bucket, Object: src},
	)
	if err != nil {
		return errs.Wrap(ErrMoveObject, err)
	}

	err = s.client.RemoveObject(ctx, s.bucket, src, minio.RemoveObjectOptions{})
	if err != nil {
		return errs.Wrap(ErrMoveObject, err)
	}

	return nil
}

func (s *MinioStore) Stat(ctx context.Context, path string) (ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return ObjectInfo{}, ErrObjectNotFound
		}

		return ObjectInfo{}, errs.Wrap(ErrStatObject, err)
	}

	return ObjectInfo{
		Path: info.Key,
		Size: info.Size,
	}, nil
}
