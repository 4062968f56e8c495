package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/interfaces"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/utils/errutil"
)

// Firestore stores account sessions in two top-level collections. Every
// document carries the owning account in its userId field.
type Firestore struct {
	db *firestore.Client
	eb *goerr.Builder
}

var _ interfaces.AccountRepository = &Firestore{}

func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	db, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID),
			goerr.T(errs.TagDatabase))
	}

	return &Firestore{
		db: db,
		eb: goerr.NewBuilder(
			goerr.TV(errutil.RepositoryKey, "firestore"),
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID),
		),
	}, nil
}

func (r *Firestore) Close() error {
	return r.db.Close()
}

const (
	CollectionChats    = "chats"
	CollectionMessages = "messages"

	fieldID           = "id"
	fieldUserID       = "userId"
	fieldChatID       = "chatId"
	fieldTitle        = "title"
	fieldMessageCount = "messageCount"
	fieldCreatedAt    = "createdAt"
	fieldUpdatedAt    = "updatedAt"
	fieldTimestamp    = "timestamp"
)
