package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrFileNotFound = errors.New("file not found")
)

// Strategy abstracts the storage the cube slices are written to and the
// byte-range reads of the gdal adapters
type Strategy interface {
	Download(ctx context.Context, uri string, options ...Option) ([]byte, error)
	Upload(ctx context.Context, uri string, data []byte, options ...Option) error
	UploadFile(ctx context.Context, uri string, data io.ReadCloser, options ...Option) error
	Delete(ctx context.Context, uri string, options ...Option) error
	Exist(ctx context.Context, uri string) (bool, error)
	StreamAt(key string, off int64, n int64) (io.ReadCloser, int64, error)
}

type Option func(o *option)

type option struct {
	MaxTries       int
	Delay          time.Duration
	StorageClass   string
	Offset         int64
	Length         int64
	IgnoreNotFound bool
}

func MaxTries(n int) Option {
	if n <= 0 {
		n = 1
	}
	return func(o *option) {
		o.MaxTries = n
	}
}

func OnErrorRetryDelay(d time.Duration) Option {
	if d < 0 {
		d = 0
	}
	return func(o *option) {
		o.Delay = d
	}
}

func StorageClass(cl string) Option {
	return func(o *option) {
		o.StorageClass = cl
	}
}

func Offset(off int64) Option {
	if off < 0 {
		panic("offset cannot be negative")
	}
	return func(o *option) {
		o.Offset = off
	}
}

func Length(l int64) Option {
	if l <= 0 {
		panic("length must be >0")
	}
	return func(o *option) {
		o.Length = l
	}
}

func IgnoreNotFound() Option {
	return func(o *option) {
		o.IgnoreNotFound = true
	}
}

func Apply(opts ...Option) option {
	opt := option{
		MaxTries: 10,
		Delay:    time.Second,
		Offset:   0,
		Length:   -1,
	}
	for _, o := range opts {
		o(&opt)
	}
	return opt
}
