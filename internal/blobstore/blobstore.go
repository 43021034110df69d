package blobstore

import (
	"context"
	"errors"
)

var (
	ErrObjectNotFound = errors.New("blob object not found")
	ErrListObjects    = errors.New("failed to list blob objects")
	ErrMoveObject     = errors.New("failed to move blob object")
	ErrStatObject     = errors.New("failed to stat blob object")
)

// ObjectInfo describes a stored blob.
type ObjectInfo struct {
	Path string
	Size int64
}

// Store is the object storage surface the blob path migration and the
// document operations need. Move is copy-then-delete underneath, so a crashed
// move leaves the source intact and the step can be replayed.
type Store interface {
	ListPrefix(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Move(ctx context.Context, src, dst string) error
	Stat(ctx context.Context, path string) (ObjectInfo, error)
}
