package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/domain/types"
	"github.com/secmon-lab/examchat/pkg/utils/account"
	"github.com/secmon-lab/examchat/pkg/utils/errutil"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (r *Firestore) CreateSession(ctx context.Context, title string) (types.SessionID, error) {
	accountID := account.FromContext(ctx)
	if accountID == "" {
		return "", nil
	}

	doc := r.db.Collection(CollectionChats).NewDoc()
	_, err := doc.Create(ctx, map[string]any{
		fieldID:           doc.ID,
		fieldUserID:       accountID.String(),
		fieldTitle:        title,
		fieldMessageCount: 0,
		fieldCreatedAt:    firestore.ServerTimestamp,
		fieldUpdatedAt:    firestore.ServerTimestamp,
	})
	if err != nil {
		return "", r.eb.Wrap(err, "failed to create chat",
			goerr.TV(errutil.AccountIDKey, accountID),
			goerr.T(errs.TagDatabase))
	}
	return types.SessionID(doc.ID), nil
}

// ownedChat returns the chat document if it exists and belongs to accountID.
func (r *Firestore) ownedChat(ctx context.Context, accountID types.AccountID, sessionID types.SessionID) (*chat.AccountSession, error) {
	doc, err := r.db.Collection(CollectionChats).Doc(sessionID.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, r.eb.Wrap(err, "failed to get chat",
			goerr.TV(errutil.SessionIDKey, sessionID),
			goerr.T(errs.TagDatabase))
	}

	var sess chat.AccountSession
	if err := doc.DataTo(&sess); err != nil {
		return nil, r.eb.Wrap(err, "failed to convert data to chat",
			goerr.TV(errutil.SessionIDKey, sessionID),
			goerr.T(errs.TagInternal))
	}
	if sess.AccountID != accountID {
		return nil, nil
	}
	sess.ID = types.SessionID(doc.Ref.ID)
	return &sess, nil
}

func (r *Firestore) GetSession(ctx context.Context, sessionID types.SessionID) (*chat.AccountSession, error) {
	accountID := account.FromContext(ctx)
	if accountID == "" {
		return nil, nil
	}
	return r.ownedChat(ctx, accountID, sessionID)
}

func (r *Firestore) AppendMessage(ctx context.Context, sessionID types.SessionID, msg *chat.Message) (types.MessageID, error) {
	accountID := account.FromContext(ctx)
	if accountID == "" {
		return "", nil
	}

	stored := msg.Copy()
	if stored.ID == "" {
		stored.ID = types.NewMessageID(ctx)
	}
	stored.SessionID = sessionID
	stored.AccountID = accountID

	chatRef := r.db.Collection(CollectionChats).Doc(sessionID.String())
	msgRef := r.db.Collection(CollectionMessages).Doc(stored.ID.String())

	// The chat is read in the same transaction so a message is never written
	// under a chat that is gone.
	err := r.db.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(chatRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errChatGone
			}
			return err
		}
		owner, err := doc.DataAt(fieldUserID)
		if err != nil || owner != accountID.String() {
			return errChatGone
		}
		return tx.Set(msgRef, stored)
	})
	if errors.Is(err, errChatGone) {
		return "", goerr.New("chat not found",
			goerr.TV(errutil.SessionIDKey, sessionID),
			goerr.TV(errutil.MessageIDKey, stored.ID),
			goerr.T(errs.TagNotFound))
	}
	if err != nil {
		return "", r.eb.Wrap(err, "failed to put message",
			goerr.TV(errutil.SessionIDKey, sessionID),
			goerr.TV(errutil.MessageIDKey, stored.ID),
			goerr.T(errs.TagDatabase))
	}
	return stored.ID, nil
}

var errChatGone = errors.New("chat gone")

func (r *Firestore) ListSessions(ctx context.Context) ([]*chat.AccountSession, error) {
	accountID := account.FromContext(ctx)
	if accountID == "" {
		return nil, nil
	}

	iter := r.db.Collection(CollectionChats).
		Where(fieldUserID, "==", accountID.String()).
		OrderBy(fieldUpdatedAt, firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var sessions []*chat.AccountSession
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, r.eb.Wrap(err, "failed to list chats",
				goerr.TV(errutil.AccountIDKey, accountID),
				goerr.T(errs.TagDatabase))
		}

		var sess chat.AccountSession
		if err := doc.DataTo(&sess); err != nil {
			return nil, r.eb.Wrap(err, "failed to convert data to chat",
				goerr.V("doc_id", doc.Ref.ID),
				goerr.T(errs.TagInternal))
		}
		sess.ID = types.SessionID(doc.Ref.ID)
		sessions = append(sessions, &sess)
	}
	return sessions, nil
}

func (r *Firestore) messagesQuery(accountID types.AccountID, sessionID types.SessionID) firestore.Query {
	return r.db.Collection(CollectionMessages).
		Where(fieldChatID, "==", sessionID.String()).
		Where(fieldUserID, "==", accountID.String())
}

func (r *Firestore) ListMessages(ctx context.Context, sessionID types.SessionID) ([]*chat.Message, error) {
	accountID := account.FromContext(ctx)
	if accountID == "" {
		return nil, nil
	}

	iter := r.messagesQuery(accountID, sessionID).
		OrderBy(fieldTimestamp, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var messages []*chat.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, r.eb.Wrap(err, "failed to list messages",
				goerr.TV(errutil.SessionIDKey, sessionID),
				goerr.T(errs.TagDatabase))
		}

		var msg chat.Message
		if err := doc.DataTo(&msg); err != nil {
			return nil, r.eb.Wrap(err, "failed to convert data to message",
				goerr.V("doc_id", doc.Ref.ID),
				goerr.T(errs.TagInternal))
		}
		if msg.ID == "" {
			msg.ID = types.MessageID(doc.Ref.ID)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

func (r *Firestore) updateChat(ctx context.Context, sessionID types.SessionID, op string, updates []firestore.Update) error {
	accountID := account.FromContext(ctx)
	if accountID == "" {
		return nil
	}

	sess, err := r.ownedChat(ctx, accountID, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return goerr.New("chat not found",
			goerr.TV(errutil.SessionIDKey, sessionID),
			goerr.TV(errutil.OperationKey, op),
			goerr.T(errs.TagNotFound))
	}

	updates = append(updates, firestore.Update{Path: fieldUpdatedAt, Value: firestore.ServerTimestamp})
	if _, err := r.db.Collection(CollectionChats).Doc(sessionID.String()).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(err, "chat not found",
				goerr.TV(errutil.SessionIDKey, sessionID),
				goerr.TV(errutil.OperationKey, op),
				goerr.T(errs.TagNotFound))
		}
		return r.eb.Wrap(err, "failed to update chat",
			goerr.TV(errutil.SessionIDKey, sessionID),
			goerr.TV(errutil.OperationKey, op),
			goerr.T(errs.TagDatabase))
	}
	return nil
}

func (r *Firestore) RenameSession(ctx context.Context, sessionID types.SessionID, title string) error {
	return r.updateChat(ctx, sessionID, "rename", []firestore.Update{
		{Path: fieldTitle, Value: title},
	})
}

func (r *Firestore) IncrementMessageCount(ctx context.Context, sessionID types.SessionID, delta int) error {
	return r.updateChat(ctx, sessionID, "increment_message_count", []firestore.Update{
		{Path: fieldMessageCount, Value: firestore.Increment(delta)},
	})
}

// DeleteSession removes the chat's messages first and the chat document last,
// so an interruption leaves at worst an empty chat and never orphan messages.
func (r *Firestore) DeleteSession(ctx context.Context, sessionID types.SessionID) error {
	accountID := account.FromContext(ctx)
	if accountID == "" {
		return nil
	}

	iter := r.messagesQuery(accountID, sessionID).Documents(ctx)
	defer iter.Stop()

	bw := r.db.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return r.eb.Wrap(err, "failed to list messages for deletion",
				goerr.TV(errutil.SessionIDKey, sessionID),
				goerr.T(errs.TagDatabase))
		}

		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return r.eb.Wrap(err, "failed to delete message",
				goerr.TV(errutil.SessionIDKey, sessionID),
				goerr.V("doc_id", doc.Ref.ID),
				goerr.T(errs.TagDatabase))
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return r.eb.Wrap(err, "failed to commit message deletion",
				goerr.TV(errutil.SessionIDKey, sessionID),
				goerr.T(errs.TagDatabase))
		}
	}

	sess, err := r.ownedChat(ctx, accountID, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}

	if _, err := r.db.Collection(CollectionChats).Doc(sessionID.String()).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return r.eb.Wrap(err, "failed to delete chat",
			goerr.TV(errutil.SessionIDKey, sessionID),
			goerr.T(errs.TagDatabase))
	}
	return nil
}
