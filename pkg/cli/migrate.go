package cli

import (
	"context"
	"time"

	firestoreadmin "cloud.google.com/go/firestore/apiv1/admin"
	adminpb "cloud.google.com/go/firestore/apiv1/admin/adminpb"
	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/cli/config"
	"github.com/secmon-lab/examchat/pkg/repository/firestore"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
	"github.com/secmon-lab/examchat/pkg/utils/safe"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/iterator"
)

func cmdMigrate() *cli.Command {
	var cfg config.Firestore
	var dryRun bool

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Create the Firestore indexes used by account chats",
		Flags: append(cfg.Flags(),
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Show what would be changed without applying",
				Destination: &dryRun,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			return runMigrate(ctx, &cfg, dryRun)
		},
	}
}

func runMigrate(ctx context.Context, cfg *config.Firestore, dryRun bool) error {
	logger := logging.From(ctx)

	projectID := cfg.ProjectID()
	databaseID := cfg.DatabaseID()

	if projectID == "" {
		return goerr.New("firestore-project-id is required")
	}

	logger.Info("starting firestore migration",
		"project_id", projectID,
		"database_id", databaseID,
		"dry_run", dryRun,
	)

	indexConfig := defineFirestoreIndexes()

	var opts []fireconf.Option

	opts = append(opts, fireconf.WithLogger(logger))
	if dryRun {
		logger.Info("dry-run mode: showing planned changes without applying")
		opts = append(opts, fireconf.WithDryRun(true))
	}

	client, err := fireconf.NewClient(ctx, projectID, databaseID, opts...)
	if err != nil {
		return goerr.Wrap(err, "failed to create fireconf client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID),
		)
	}

	if err := client.Migrate(ctx, indexConfig); err != nil {
		return goerr.Wrap(err, "failed to migrate indexes",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID),
			goerr.V("dry_run", dryRun),
		)
	}

	if !dryRun {
		// fireconf may return before a new composite index is queryable.
		if err := waitForIndexesReady(ctx, projectID, databaseID, indexConfig, logger.With("phase", "wait_ready")); err != nil {
			return goerr.Wrap(err, "indexes did not become ready",
				goerr.V("project_id", projectID),
				goerr.V("database_id", databaseID),
			)
		}
	}

	logger.Info("migration completed")
	return nil
}

// waitForIndexesReady polls Firestore Admin API until all managed indexes are READY.
func waitForIndexesReady(ctx context.Context, projectID, databaseID string, cfg *fireconf.Config, logger interface{ Info(string, ...any) }) error {
	adminClient, err := firestoreadmin.NewFirestoreAdminClient(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to create firestore admin client")
	}
	defer safe.Close(ctx, adminClient)

	var collections []string
	for _, col := range cfg.Collections {
		collections = append(collections, col.Name)
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		allReady := true

		for _, collectionName := range collections {
			parent := "projects/" + projectID + "/databases/" + databaseID + "/collectionGroups/" + collectionName

			it := adminClient.ListIndexes(ctx, &adminpb.ListIndexesRequest{Parent: parent})
			for {
				idx, err := it.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to list indexes",
						goerr.V("collection", collectionName))
				}

				state := idx.GetState()
				if state == adminpb.Index_CREATING || state == adminpb.Index_NEEDS_REPAIR {
					allReady = false
					logger.Info("index not yet ready, waiting",
						"collection", collectionName,
						"index", idx.GetName(),
						"state", state.String(),
					)
				}
			}
		}

		if allReady {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// defineFirestoreIndexes returns the composite indexes behind ListSessions
// (chats of one account, newest first) and ListMessages (messages of one chat
// in timestamp order).
func defineFirestoreIndexes() *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: firestore.CollectionChats,
				Indexes: []fireconf.Index{
					{
						QueryScope: fireconf.QueryScopeCollection,
						Fields: []fireconf.IndexField{
							{Path: "userId", Order: fireconf.OrderAscending},
							{Path: "updatedAt", Order: fireconf.OrderDescending},
							{Path: "__name__", Order: fireconf.OrderDescending},
						},
					},
				},
			},
			{
				Name: firestore.CollectionMessages,
				Indexes: []fireconf.Index{
					{
						QueryScope: fireconf.QueryScopeCollection,
						Fields: []fireconf.IndexField{
							{Path: "chatId", Order: fireconf.OrderAscending},
							{Path: "userId", Order: fireconf.OrderAscending},
							{Path: "timestamp", Order: fireconf.OrderAscending},
						},
					},
				},
			},
		},
	}
}
