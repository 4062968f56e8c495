package interfaces

import (
	"context"
	"io"

	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
)

// StorageClient is a flat object store. GetObject fails with errs.TagNotFound
// when the object does not exist.
type StorageClient interface {
	PutObject(ctx context.Context, object string) io.WriteCloser
	GetObject(ctx context.Context, object string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, object string) error
	Close(ctx context.Context)
}

// SearchClient asks the answer backend a question.
type SearchClient interface {
	Search(ctx context.Context, query string, opts chat.SearchOptions) (*chat.SearchResult, error)
	Health(ctx context.Context) chat.Health
}
