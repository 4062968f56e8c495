package storage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/secmon-lab/examchat/pkg/domain/interfaces"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/utils/errutil"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
)

// SQLiteClient keeps objects as rows of a single key-value table in a local
// database file.
type SQLiteClient struct {
	db   *sql.DB
	path string
}

var _ interfaces.StorageClient = &SQLiteClient{}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS objects (
	name TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func NewSQLiteClient(ctx context.Context, dbPath string) (*SQLiteClient, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create data directory", goerr.V("path", dbPath))
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", dbPath), goerr.T(errs.TagDatabase))
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to migrate sqlite database", goerr.V("path", dbPath), goerr.T(errs.TagDatabase))
	}

	return &SQLiteClient{db: db, path: dbPath}, nil
}

func (x *SQLiteClient) PutObject(ctx context.Context, object string) io.WriteCloser {
	return &sqliteWriter{ctx: ctx, client: x, object: object}
}

func (x *SQLiteClient) GetObject(ctx context.Context, object string) (io.ReadCloser, error) {
	var data []byte
	err := x.db.QueryRowContext(ctx, `SELECT data FROM objects WHERE name = ?`, object).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.New("object not found",
			goerr.TV(errutil.StorageKeyKey, object),
			goerr.T(errs.TagNotFound))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read object",
			goerr.TV(errutil.StorageKeyKey, object),
			goerr.T(errs.TagDatabase))
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (x *SQLiteClient) DeleteObject(ctx context.Context, object string) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM objects WHERE name = ?`, object); err != nil {
		return goerr.Wrap(err, "failed to delete object",
			goerr.TV(errutil.StorageKeyKey, object),
			goerr.T(errs.TagDatabase))
	}
	return nil
}

func (x *SQLiteClient) Close(ctx context.Context) {
	if err := x.db.Close(); err != nil {
		logging.From(ctx).Error("Failed to close sqlite database", logging.ErrAttr(err))
	}
}

type sqliteWriter struct {
	ctx    context.Context
	client *SQLiteClient
	object string
	buffer bytes.Buffer
	closed bool
}

func (w *sqliteWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, goerr.New("writer is closed", goerr.TV(errutil.StorageKeyKey, w.object))
	}
	return w.buffer.Write(p)
}

// Close upserts the buffered bytes in one statement.
func (w *sqliteWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	_, err := w.client.db.ExecContext(w.ctx, `
		INSERT INTO objects (name, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, w.object, w.buffer.Bytes())
	if err != nil {
		return goerr.Wrap(err, "failed to write object",
			goerr.TV(errutil.StorageKeyKey, w.object),
			goerr.T(errs.TagDatabase))
	}
	return nil
}
