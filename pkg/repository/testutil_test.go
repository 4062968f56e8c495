package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/examchat/pkg/domain/interfaces"
	"github.com/secmon-lab/examchat/pkg/domain/types"
	"github.com/secmon-lab/examchat/pkg/repository/firestore"
	"github.com/secmon-lab/examchat/pkg/repository/memory"
	"github.com/secmon-lab/examchat/pkg/utils/account"
	"github.com/secmon-lab/examchat/pkg/utils/test"
)

func newFirestoreClient(t *testing.T) *firestore.Firestore {
	projectID, databaseID := test.Firestore(t)
	client, err := firestore.New(t.Context(), projectID, databaseID)
	gt.NoError(t, err).Required()
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// runOnRepositories runs fn against every AccountRepository implementation.
func runOnRepositories(t *testing.T, fn func(t *testing.T, repo interfaces.AccountRepository)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, memory.New())
	})
	t.Run("firestore", func(t *testing.T) {
		fn(t, newFirestoreClient(t))
	})
}

// newAccountContext returns a context for a fresh account so runs against a
// shared database do not see each other's data.
func newAccountContext(t *testing.T) context.Context {
	return account.WithID(t.Context(),
		types.AccountID(fmt.Sprintf("test-%s-%d", t.Name(), time.Now().UnixNano())))
}
