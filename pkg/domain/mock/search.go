package mock

import (
	"context"
	"sync"

	"github.com/secmon-lab/examchat/pkg/domain/interfaces"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
)

// Ensure, that SearchClientMock does implement interfaces.SearchClient.
var _ interfaces.SearchClient = &SearchClientMock{}

// SearchClientMock is a mock implementation of interfaces.SearchClient.
type SearchClientMock struct {
	// SearchFunc mocks the Search method.
	SearchFunc func(ctx context.Context, query string, opts chat.SearchOptions) (*chat.SearchResult, error)

	// HealthFunc mocks the Health method.
	HealthFunc func(ctx context.Context) chat.Health

	calls struct {
		Search []struct {
			Ctx   context.Context
			Query string
			Opts  chat.SearchOptions
		}
		Health []struct {
			Ctx context.Context
		}
	}
	lockSearch sync.RWMutex
	lockHealth sync.RWMutex
}

// Search calls SearchFunc.
func (mock *SearchClientMock) Search(ctx context.Context, query string, opts chat.SearchOptions) (*chat.SearchResult, error) {
	if mock.SearchFunc == nil {
		panic("SearchClientMock.SearchFunc: method is nil but SearchClient.Search was just called")
	}
	callInfo := struct {
		Ctx   context.Context
		Query string
		Opts  chat.SearchOptions
	}{
		Ctx:   ctx,
		Query: query,
		Opts:  opts,
	}
	mock.lockSearch.Lock()
	mock.calls.Search = append(mock.calls.Search, callInfo)
	mock.lockSearch.Unlock()
	return mock.SearchFunc(ctx, query, opts)
}

// SearchCalls gets all the calls that were made to Search.
func (mock *SearchClientMock) SearchCalls() []struct {
	Ctx   context.Context
	Query string
	Opts  chat.SearchOptions
} {
	mock.lockSearch.RLock()
	defer mock.lockSearch.RUnlock()
	return mock.calls.Search
}

// Health calls HealthFunc.
func (mock *SearchClientMock) Health(ctx context.Context) chat.Health {
	if mock.HealthFunc == nil {
		panic("SearchClientMock.HealthFunc: method is nil but SearchClient.Health was just called")
	}
	callInfo := struct {
		Ctx context.Context
	}{
		Ctx: ctx,
	}
	mock.lockHealth.Lock()
	mock.calls.Health = append(mock.calls.Health, callInfo)
	mock.lockHealth.Unlock()
	return mock.HealthFunc(ctx)
}

// HealthCalls gets all the calls that were made to Health.
func (mock *SearchClientMock) HealthCalls() []struct {
	Ctx context.Context
} {
	mock.lockHealth.RLock()
	defer mock.lockHealth.RUnlock()
	return mock.calls.Health
}
