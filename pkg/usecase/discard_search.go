package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
)

// unavailableSearchClient stands in when no backend is configured.
type unavailableSearchClient struct{}

func (x *unavailableSearchClient) Search(ctx context.Context, query string, opts chat.SearchOptions) (*chat.SearchResult, error) {
	return nil, goerr.New("search backend is not configured", goerr.T(errs.TagExternal))
}

func (x *unavailableSearchClient) Health(ctx context.Context) chat.Health {
	return chat.Health{Status: chat.HealthStatusError}
}
