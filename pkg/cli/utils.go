package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/cli/config"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/domain/types"
	"github.com/secmon-lab/examchat/pkg/service/guest"
	"github.com/secmon-lab/examchat/pkg/usecase"
	"github.com/secmon-lab/examchat/pkg/utils/account"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const outboxDrainTimeout = 30 * time.Second

func joinFlags(flags ...[]cli.Flag) []cli.Flag {
	var result []cli.Flag
	for _, flag := range flags {
		result = append(result, flag...)
	}
	return result
}

// identity is who a local command acts as: an optional account and the
// client whose guest data it reads, as sent by a browser in X-Client-ID.
type identity struct {
	accountID string
	clientID  string
}

func (x *identity) Flags(accountUsage string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "account",
			Usage:       accountUsage,
			Destination: &x.accountID,
			Sources:     cli.EnvVars("EXAMCHAT_ACCOUNT"),
		},
		&cli.StringFlag{
			Name:        "client",
			Usage:       "Client ID owning the guest chats (local guest data when empty)",
			Destination: &x.clientID,
			Sources:     cli.EnvVars("EXAMCHAT_CLIENT"),
		},
	}
}

func (x *identity) Apply(ctx context.Context) (context.Context, error) {
	if x.clientID != "" {
		if !account.ValidClientID(x.clientID) {
			return nil, goerr.New("invalid client ID",
				goerr.V("client", x.clientID), goerr.T(errs.TagValidation))
		}
		ctx = account.WithClientID(ctx, x.clientID)
	}
	if x.accountID != "" {
		ctx = account.WithID(ctx, types.AccountID(x.accountID))
	}
	return ctx, nil
}

// backends groups the storage and answer backend settings shared by the
// chat, serve and export commands.
type backends struct {
	firestore config.Firestore
	guest     config.GuestStorage
	search    config.Search
	outbox    config.Outbox
}

func (x *backends) Flags() []cli.Flag {
	return joinFlags(
		x.firestore.Flags(),
		x.guest.Flags(),
		x.search.Flags(),
		x.outbox.Flags(),
	)
}

func (x *backends) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("firestore", x.firestore),
		slog.Any("guest_storage", x.guest),
		slog.Any("search", x.search),
		slog.Any("outbox", x.outbox),
	)
}

// Configure builds the use cases. The returned closer drains the outbox and
// releases the storage clients; it must be called once the caller is done.
func (x *backends) Configure(ctx context.Context) (*usecase.UseCases, func(), error) {
	logger := logging.From(ctx)
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var opts []usecase.Option

	if x.firestore.IsConfigured() {
		repo, err := x.firestore.Configure(ctx)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := repo.Close(); err != nil {
				logger.Warn("failed to close firestore", logging.ErrAttr(err))
			}
		})
		opts = append(opts, usecase.WithAccountRepository(repo))
	} else {
		logger.Warn("firestore is not configured, account chats are kept in memory")
	}

	storageClient, err := x.guest.Configure(ctx)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	closers = append(closers, func() { storageClient.Close(context.Background()) })
	opts = append(opts, usecase.WithGuestStore(guest.New(storageClient)))

	if client := x.search.Configure(); client != nil {
		opts = append(opts, usecase.WithSearchClient(client))
	} else {
		logger.Warn("search backend is not configured, questions will be answered with an error")
	}
	opts = append(opts, usecase.WithSearchOptions(x.search.Options()))

	ob, err := x.outbox.Configure()
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	closers = append(closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), outboxDrainTimeout)
		defer cancel()
		if err := ob.Close(ctx); err != nil {
			logger.Warn("failed to drain outbox", logging.ErrAttr(err))
		}
		logger.Debug("outbox stopped", "stats", ob.Stats())
	})
	opts = append(opts, usecase.WithOutbox(ob))

	return usecase.New(opts...), closeAll, nil
}
