package memory

import (
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/interfaces"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/domain/types"
	"github.com/secmon-lab/examchat/pkg/utils/errutil"
)

// Memory is an in-process AccountRepository with the same semantics as the
// Firestore implementation.
type Memory struct {
	mu       sync.RWMutex
	sessions map[types.SessionID]*chat.AccountSession
	messages map[types.SessionID][]*chat.Message

	// Call counter for tracking method invocations
	callCounts map[string]int
	callMu     sync.RWMutex

	eb *goerr.Builder
}

var _ interfaces.AccountRepository = &Memory{}

func New() *Memory {
	return &Memory{
		sessions:   make(map[types.SessionID]*chat.AccountSession),
		messages:   make(map[types.SessionID][]*chat.Message),
		callCounts: make(map[string]int),
		eb:         goerr.NewBuilder(goerr.TV(errutil.RepositoryKey, "memory")),
	}
}

func (r *Memory) incrementCallCount(method string) {
	r.callMu.Lock()
	defer r.callMu.Unlock()
	r.callCounts[method]++
}

// GetCallCount returns how many times method was invoked.
func (r *Memory) GetCallCount(method string) int {
	r.callMu.RLock()
	defer r.callMu.RUnlock()
	return r.callCounts[method]
}
