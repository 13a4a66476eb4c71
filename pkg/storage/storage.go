package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested path does not exist in storage.
var ErrNotFound = errors.New("not found")

// Storage provides an abstraction over key-value style file storage.
type Storage interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
}

const (
	TypeMemory = "memory"
	TypeLocal  = "local"
	TypeS3     = "s3"
)

// Options selects and configures a backend for New.
type Options struct {
	Type     string
	BaseDir  string
	S3Bucket string
	S3Prefix string
	S3Region string
}

// New builds the backend named by opts.Type. An empty type selects memory.
func New(ctx context.Context, opts Options) (Storage, error) {
	switch opts.Type {
	case "", TypeMemory:
		return NewMemoryStorage(), nil
	case TypeLocal:
		return NewLocalStorage(opts.BaseDir)
	case TypeS3:
		if opts.S3Bucket == "" {
			return nil, errors.New("s3 storage requires a bucket")
		}
		return NewS3Storage(ctx, opts.S3Bucket, opts.S3Prefix, opts.S3Region)
	default:
		return nil, fmt.Errorf("unknown storage type %q", opts.Type)
	}
}
