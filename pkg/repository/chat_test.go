package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/examchat/pkg/domain/interfaces"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/domain/types"
	"github.com/secmon-lab/examchat/pkg/utils/account"
	"github.com/secmon-lab/examchat/pkg/utils/clock"
)

func newMessage(ctx context.Context, typ types.MessageType, content string, ts time.Time) *chat.Message {
	return &chat.Message{
		ID:        types.NewMessageID(ctx),
		Type:      typ,
		Content:   content,
		Timestamp: ts,
	}
}

func TestCreateAndListSessions(t *testing.T) {
	runOnRepositories(t, func(t *testing.T, repo interfaces.AccountRepository) {
		base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		ctx := clock.With(newAccountContext(t), clock.Step(base, time.Second))

		first, err := repo.CreateSession(ctx, chat.DefaultTitle)
		gt.NoError(t, err).Required()
		gt.NotEqual(t, first, types.SessionID(""))

		second, err := repo.CreateSession(ctx, "Second")
		gt.NoError(t, err).Required()

		sess, err := repo.GetSession(ctx, first)
		gt.NoError(t, err)
		gt.NotNil(t, sess)
		gt.Equal(t, sess.Title, chat.DefaultTitle)
		gt.Equal(t, sess.MessageCount, 0)
		gt.Equal(t, sess.AccountID, account.FromContext(ctx))

		// Touch the first session so it becomes the most recently updated.
		time.Sleep(10 * time.Millisecond)
		gt.NoError(t, repo.RenameSession(ctx, first, "Renamed"))

		sessions, err := repo.ListSessions(ctx)
		gt.NoError(t, err)
		gt.A(t, sessions).Length(2)
		gt.Equal(t, sessions[0].ID, first)
		gt.Equal(t, sessions[0].Title, "Renamed")
		gt.Equal(t, sessions[1].ID, second)
	})
}

func TestMessages(t *testing.T) {
	runOnRepositories(t, func(t *testing.T, repo interfaces.AccountRepository) {
		ctx := newAccountContext(t)
		base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

		sid, err := repo.CreateSession(ctx, chat.DefaultTitle)
		gt.NoError(t, err).Required()

		// Appended out of order on purpose.
		later := newMessage(ctx, types.MessageTypeBot, "New Delhi", base.Add(time.Second))
		earlier := newMessage(ctx, types.MessageTypeUser, "Capital of India?", base)
		later.Sources = []chat.Source{{Score: 0.9, Subject: "geography", Content: "Delhi"}}

		for _, msg := range []*chat.Message{later, earlier} {
			id, err := repo.AppendMessage(ctx, sid, msg)
			gt.NoError(t, err)
			gt.Equal(t, id, msg.ID)
		}

		messages, err := repo.ListMessages(ctx, sid)
		gt.NoError(t, err)
		gt.A(t, messages).Length(2)
		gt.Equal(t, messages[0].Content, "Capital of India?")
		gt.Equal(t, messages[0].Type, types.MessageTypeUser)
		gt.Equal(t, messages[1].Content, "New Delhi")
		gt.A(t, messages[1].Sources).Length(1)
		gt.Equal(t, messages[1].Sources[0].Subject, "geography")
		gt.Equal(t, messages[1].SessionID, sid)

		t.Run("append does not touch the count", func(t *testing.T) {
			sess, err := repo.GetSession(ctx, sid)
			gt.NoError(t, err)
			gt.Equal(t, sess.MessageCount, 0)

			gt.NoError(t, repo.IncrementMessageCount(ctx, sid, 1))
			gt.NoError(t, repo.IncrementMessageCount(ctx, sid, 1))
			sess, err = repo.GetSession(ctx, sid)
			gt.NoError(t, err)
			gt.Equal(t, sess.MessageCount, 2)
		})
	})
}

func TestAccountIsolation(t *testing.T) {
	runOnRepositories(t, func(t *testing.T, repo interfaces.AccountRepository) {
		owner := newAccountContext(t)
		other := account.WithID(owner, account.FromContext(owner)+"-other")

		sid, err := repo.CreateSession(owner, "mine")
		gt.NoError(t, err).Required()
		_, err = repo.AppendMessage(owner, sid, newMessage(owner, types.MessageTypeUser, "hi", time.Now()))
		gt.NoError(t, err)

		sessions, err := repo.ListSessions(other)
		gt.NoError(t, err)
		gt.A(t, sessions).Length(0)

		messages, err := repo.ListMessages(other, sid)
		gt.NoError(t, err)
		gt.A(t, messages).Length(0)

		sess, err := repo.GetSession(other, sid)
		gt.NoError(t, err)
		gt.Nil(t, sess)

		err = repo.RenameSession(other, sid, "stolen")
		gt.True(t, goerr.HasTag(err, errs.TagNotFound))

		_, err = repo.AppendMessage(other, sid, newMessage(other, types.MessageTypeUser, "injected", time.Now()))
		gt.True(t, goerr.HasTag(err, errs.TagNotFound))
		messages, err = repo.ListMessages(owner, sid)
		gt.NoError(t, err)
		gt.A(t, messages).Length(1)

		gt.NoError(t, repo.DeleteSession(other, sid))
		sess, err = repo.GetSession(owner, sid)
		gt.NoError(t, err)
		gt.NotNil(t, sess)
	})
}

func TestAnonymousIsNoop(t *testing.T) {
	runOnRepositories(t, func(t *testing.T, repo interfaces.AccountRepository) {
		ctx := t.Context()

		sid, err := repo.CreateSession(ctx, "x")
		gt.NoError(t, err)
		gt.Equal(t, sid, types.SessionID(""))

		mid, err := repo.AppendMessage(ctx, "any", &chat.Message{Content: "x"})
		gt.NoError(t, err)
		gt.Equal(t, mid, types.MessageID(""))

		sessions, err := repo.ListSessions(ctx)
		gt.NoError(t, err)
		gt.A(t, sessions).Length(0)

		messages, err := repo.ListMessages(ctx, "any")
		gt.NoError(t, err)
		gt.A(t, messages).Length(0)

		gt.NoError(t, repo.RenameSession(ctx, "any", "x"))
		gt.NoError(t, repo.IncrementMessageCount(ctx, "any", 1))
		gt.NoError(t, repo.DeleteSession(ctx, "any"))
	})
}

func TestDeleteSession(t *testing.T) {
	runOnRepositories(t, func(t *testing.T, repo interfaces.AccountRepository) {
		ctx := newAccountContext(t)

		sid, err := repo.CreateSession(ctx, chat.DefaultTitle)
		gt.NoError(t, err).Required()
		keep, err := repo.CreateSession(ctx, "keep")
		gt.NoError(t, err).Required()

		for i := range 3 {
			_, err := repo.AppendMessage(ctx, sid, newMessage(ctx, types.MessageTypeUser, "q", time.Now().Add(time.Duration(i)*time.Second)))
			gt.NoError(t, err)
		}
		_, err = repo.AppendMessage(ctx, keep, newMessage(ctx, types.MessageTypeUser, "kept", time.Now()))
		gt.NoError(t, err)

		gt.NoError(t, repo.DeleteSession(ctx, sid))

		messages, err := repo.ListMessages(ctx, sid)
		gt.NoError(t, err)
		gt.A(t, messages).Length(0)

		sessions, err := repo.ListSessions(ctx)
		gt.NoError(t, err)
		gt.A(t, sessions).Length(1)
		gt.Equal(t, sessions[0].ID, keep)

		messages, err = repo.ListMessages(ctx, keep)
		gt.NoError(t, err)
		gt.A(t, messages).Length(1)

		t.Run("deleting again is a no-op", func(t *testing.T) {
			gt.NoError(t, repo.DeleteSession(ctx, sid))
		})

		t.Run("updating a deleted session is not found", func(t *testing.T) {
			err := repo.IncrementMessageCount(ctx, sid, 1)
			gt.True(t, goerr.HasTag(err, errs.TagNotFound))
		})

		t.Run("appending to a deleted session is not found", func(t *testing.T) {
			_, err := repo.AppendMessage(ctx, sid, newMessage(ctx, types.MessageTypeBot, "late", time.Now()))
			gt.True(t, goerr.HasTag(err, errs.TagNotFound))

			messages, err := repo.ListMessages(ctx, sid)
			gt.NoError(t, err)
			gt.A(t, messages).Length(0)
		})
	})
}
