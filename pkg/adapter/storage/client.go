package storage

import (
	"context"
	"errors"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/interfaces"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/utils/errutil"
	"github.com/secmon-lab/examchat/pkg/utils/safe"
	"google.golang.org/api/option"
)

// Client keeps objects in a Cloud Storage bucket, below an optional prefix.
type Client struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ interfaces.StorageClient = &Client{}

// New opens a client for bucket. Object names are joined under prefix when it is not empty.
func New(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*Client, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client", goerr.T(errs.TagExternal))
	}

	return &Client{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (x *Client) objectName(object string) string {
	if x.prefix == "" {
		return object
	}
	return path.Join(x.prefix, object)
}

func (x *Client) PutObject(ctx context.Context, object string) io.WriteCloser {
	w := x.client.Bucket(x.bucket).Object(x.objectName(object)).NewWriter(ctx)
	w.ContentType = "application/json"
	return w
}

func (x *Client) GetObject(ctx context.Context, object string) (io.ReadCloser, error) {
	rc, err := x.client.Bucket(x.bucket).Object(x.objectName(object)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, goerr.Wrap(err, "object not found",
			goerr.V("bucket", x.bucket),
			goerr.TV(errutil.StorageKeyKey, x.objectName(object)),
			goerr.T(errs.TagNotFound))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create reader",
			goerr.V("bucket", x.bucket),
			goerr.TV(errutil.StorageKeyKey, x.objectName(object)),
			goerr.T(errs.TagExternal))
	}

	return rc, nil
}

func (x *Client) DeleteObject(ctx context.Context, object string) error {
	err := x.client.Bucket(x.bucket).Object(x.objectName(object)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return goerr.Wrap(err, "failed to delete object",
			goerr.V("bucket", x.bucket),
			goerr.TV(errutil.StorageKeyKey, x.objectName(object)),
			goerr.T(errs.TagExternal))
	}
	return nil
}

func (x *Client) Close(ctx context.Context) {
	safe.Close(ctx, x.client)
}
