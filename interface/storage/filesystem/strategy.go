package filesystem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	stacubeStorage "github.com/xcube-dev/stacube/interface/storage"
)

type fileSystemStrategy struct {
}

func NewFileSystemStrategy(ctx context.Context) (stacubeStorage.Strategy, error) {
	return fileSystemStrategy{}, nil
}

func formatError(err error) error {
	var epath *os.PathError
	if errors.As(err, &epath) && os.IsNotExist(epath) {
		return stacubeStorage.ErrFileNotFound
	}
	return err
}

func (s fileSystemStrategy) Download(ctx context.Context, uri string, options ...stacubeStorage.Option) ([]byte, error) {
	uri = strings.Replace(uri, "file://", "", -1)
	f, err := os.Open(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", formatError(err))
	}

	defer f.Close()
	return io.ReadAll(f)
}

func (s fileSystemStrategy) Upload(ctx context.Context, uri string, data []byte, options ...stacubeStorage.Option) error {
	uri = strings.Replace(uri, "file://", "", -1)

	if _, err := os.Stat(filepath.Dir(uri)); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(uri), os.ModePerm); err != nil {
			return err
		}
	}

	f, err := os.Create(uri)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	defer f.Close()

	_, err = io.Copy(f, bytes.NewReader(data))
	return err
}

func (s fileSystemStrategy) UploadFile(ctx context.Context, uri string, data io.ReadCloser, options ...stacubeStorage.Option) error {
	uri = strings.Replace(uri, "file://", "", -1)

	if _, err := os.Stat(filepath.Dir(uri)); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(uri), os.ModePerm); err != nil {
			return err
		}
	}

	f, err := os.Create(uri)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	_, err = io.Copy(f, data)
	return err
}

func (s fileSystemStrategy) Delete(ctx context.Context, uri string, options ...stacubeStorage.Option) error {
	opts := stacubeStorage.Apply(options...)
	uri = strings.Replace(uri, "file://", "", -1)

	if err := os.Remove(uri); err != nil {
		if !opts.IgnoreNotFound || !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove file: %w", err)
		}
	}

	return nil
}

func (s fileSystemStrategy) Exist(ctx context.Context, uri string) (bool, error) {
	uri = strings.Replace(uri, "file://", "", -1)
	if _, err := os.Stat(uri); err != nil {
		if os.IsNotExist(err) {
			return false, stacubeStorage.ErrFileNotFound
		}
		return false, err
	}
	return true, nil
}

func (s fileSystemStrategy) StreamAt(key string, off int64, n int64) (io.ReadCloser, int64, error) {
	f, err := os.Open(key)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", formatError(err))
	}

	if _, err := f.Seek(off, io.SeekStart); err != nil {
		f.Close()
		return nil, 0, err
	}
	if n > 0 {
		return struct {
			io.Reader
			io.Closer
		}{io.LimitReader(f, n), f}, 0, nil
	}
	return f, 0, nil
}
