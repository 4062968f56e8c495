package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/adapter/storage"
	"github.com/secmon-lab/examchat/pkg/domain/interfaces"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"
)

const (
	GuestBackendMemory = "memory"
	GuestBackendSQLite = "sqlite"
	GuestBackendGCS    = "gcs"
)

// GuestStorage selects the medium that keeps guest chats and search history.
type GuestStorage struct {
	backend    string
	sqlitePath string
	bucket     string
	prefix     string
	projectID  string
}

func (x *GuestStorage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "guest-storage",
			Usage:       "Guest chat storage backend [memory|sqlite|gcs]",
			Category:    "Guest Storage",
			Value:       GuestBackendSQLite,
			Destination: &x.backend,
			Sources:     cli.EnvVars("EXAMCHAT_GUEST_STORAGE"),
		},
		&cli.StringFlag{
			Name:        "guest-sqlite-path",
			Usage:       "SQLite file for the sqlite backend",
			Category:    "Guest Storage",
			Value:       "examchat-guest.db",
			Destination: &x.sqlitePath,
			Sources:     cli.EnvVars("EXAMCHAT_GUEST_SQLITE_PATH"),
		},
		&cli.StringFlag{
			Name:        "guest-storage-bucket",
			Usage:       "Cloud Storage bucket for the gcs backend",
			Category:    "Guest Storage",
			Destination: &x.bucket,
			Sources:     cli.EnvVars("EXAMCHAT_GUEST_STORAGE_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "guest-storage-prefix",
			Usage:       "Object prefix for the gcs backend",
			Category:    "Guest Storage",
			Destination: &x.prefix,
			Sources:     cli.EnvVars("EXAMCHAT_GUEST_STORAGE_PREFIX"),
		},
		&cli.StringFlag{
			Name:        "guest-storage-project-id",
			Usage:       "Quota project for the gcs backend",
			Category:    "Guest Storage",
			Destination: &x.projectID,
			Sources:     cli.EnvVars("EXAMCHAT_GUEST_STORAGE_PROJECT_ID"),
		},
	}
}

func (x GuestStorage) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", x.backend),
		slog.String("sqlite_path", x.sqlitePath),
		slog.String("bucket", x.bucket),
		slog.String("prefix", x.prefix),
	)
}

func (x *GuestStorage) Configure(ctx context.Context) (interfaces.StorageClient, error) {
	switch x.backend {
	case GuestBackendMemory, "":
		return storage.NewMemoryClient(), nil

	case GuestBackendSQLite:
		if x.sqlitePath == "" {
			return nil, goerr.New("guest-sqlite-path is required for sqlite backend")
		}
		return storage.NewSQLiteClient(ctx, x.sqlitePath)

	case GuestBackendGCS:
		if x.bucket == "" {
			return nil, goerr.New("guest-storage-bucket is required for gcs backend")
		}
		var opts []option.ClientOption
		if x.projectID != "" {
			opts = append(opts, option.WithQuotaProject(x.projectID))
		}
		return storage.New(ctx, x.bucket, x.prefix, opts...)

	default:
		return nil, goerr.New("unknown guest storage backend", goerr.V("backend", x.backend))
	}
}
