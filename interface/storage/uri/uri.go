package uri

import (
	"context"
	"fmt"
	pathPkg "path"
	"regexp"
	"strings"

	"github.com/xcube-dev/stacube/interface/storage"
	"github.com/xcube-dev/stacube/interface/storage/filesystem"
	"github.com/xcube-dev/stacube/interface/storage/gcs"
	"github.com/xcube-dev/stacube/internal/utils"
)

var (
	BadUriErr = fmt.Errorf("badly formatted storage uri")
	uriRegex  = regexp.MustCompile("^(?P<Protocol>.+)://(?P<BucketName>.+?)(/(?P<Path>(?:.*/)*(?P<FileName>.*)))?$")
)

// ParseUri parse a storage uri (e.g. gs://bucket-name/path/to/file)
func ParseUri(rawURI string) (Uri, error) {
	if strings.HasPrefix(rawURI, "/") {
		//local path
		return Uri{
			path: rawURI,
		}, nil
	}
	matches, err := utils.FindRegexGroups(uriRegex, rawURI)
	if err != nil {
		return Uri{}, BadUriErr
	}

	protocol, ok := matches["Protocol"]
	if !ok {
		return Uri{}, fmt.Errorf("invalid protocol: %w", BadUriErr)
	}
	bucket, ok := matches["BucketName"]
	if !ok {
		return Uri{}, fmt.Errorf("invalid bucket name: %w", BadUriErr)
	}
	path, ok := matches["Path"]
	if !ok {
		return Uri{}, fmt.Errorf("invalid path: %w", BadUriErr)
	}
	fileName, ok := matches["FileName"]
	if !ok {
		return Uri{}, fmt.Errorf("invalid filename: %w", BadUriErr)
	}

	if protocol == "file" {
		// use full path to directory as bucket name
		bucket = pathPkg.Join(bucket, pathPkg.Dir(path))
		path = fileName
	}
	return Uri{
		protocol: protocol,
		bucket:   bucket,
		path:     path,
	}, nil
}

type Uri struct {
	protocol string
	bucket   string
	path     string
}

func (u Uri) String() string {
	if u.protocol == "" && u.bucket == "" {
		return u.path
	}
	return fmt.Sprintf("%s://%s/%s", u.protocol, u.bucket, u.path)
}

// NewStorageStrategy returns the strategy able to read and write the uri
func (u Uri) NewStorageStrategy(ctx context.Context) (storage.Strategy, error) {
	switch strings.ToLower(u.protocol) {
	case "gs":
		return gcs.NewGsStrategy(ctx)
	case "file", "":
		return filesystem.NewFileSystemStrategy(ctx)
	case "s3":
		return nil, fmt.Errorf("not supported yet")
	default:
		return nil, fmt.Errorf("failed to determine storage strategy")
	}
}
