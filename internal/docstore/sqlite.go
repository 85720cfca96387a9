package docstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	namespace  TEXT NOT NULL,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	version    INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (namespace, collection, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(namespace, collection);
`

// Migrate creates the documents table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, ns, coll, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, data, version, updated_at FROM documents WHERE namespace = ? AND collection = ? AND id = ?`,
		ns, coll, id,
	)
	var doc Document
	var data string
	if err := row.Scan(&doc.ID, &data, &doc.Version, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: get %s/%s/%s", ns, coll, id)
		}
		return nil, eris.Wrapf(err, "sqlite: get %s/%s/%s", ns, coll, id)
	}
	doc.Data = []byte(data)
	return &doc, nil
}

const sqliteUpsert = `INSERT INTO documents (namespace, collection, id, data, version, created_at, updated_at)
VALUES (?, ?, ?, ?, 1, ?, ?)
ON CONFLICT(namespace, collection, id) DO UPDATE SET
	data = excluded.data,
	version = documents.version + 1,
	updated_at = excluded.updated_at`

func (s *SQLiteStore) Put(ctx context.Context, ns, coll, id string, data []byte) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, sqliteUpsert, ns, coll, id, string(data), now, now)
	return eris.Wrapf(err, "sqlite: put %s/%s/%s", ns, coll, id)
}

func (s *SQLiteStore) PutBatch(ctx context.Context, ns, coll string, docs map[string][]byte) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin batch")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare batch")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for id, data := range docs {
		if _, err := stmt.ExecContext(ctx, ns, coll, id, string(data), now, now); err != nil {
			return eris.Wrapf(err, "sqlite: batch put %s/%s/%s", ns, coll, id)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit batch")
}

func (s *SQLiteStore) Delete(ctx context.Context, ns, coll, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE namespace = ? AND collection = ? AND id = ?`,
		ns, coll, id,
	)
	return eris.Wrapf(err, "sqlite: delete %s/%s/%s", ns, coll, id)
}

func (s *SQLiteStore) Query(ctx context.Context, ns, coll string, f Filter) ([]Document, error) {
	d := sqliteDialect{}
	where, args, err := buildWhere(d, f, 2)
	if err != nil {
		return nil, err
	}
	order, err := buildOrder(d, f)
	if err != nil {
		return nil, err
	}

	q := `SELECT id, data, version, updated_at FROM documents WHERE namespace = ? AND collection = ?`
	if where != "" {
		q += " AND " + where
	}
	q += order

	rows, err := s.db.QueryContext(ctx, q, append([]any{ns, coll}, args...)...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s/%s", ns, coll)
	}
	defer rows.Close() //nolint:errcheck

	var docs []Document
	for rows.Next() {
		var doc Document
		var data string
		if err := rows.Scan(&doc.ID, &data, &doc.Version, &doc.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		doc.Data = []byte(data)
		docs = append(docs, doc)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: iterate documents")
}

// Update performs an optimistic read-modify-write guarded by the version
// column, retrying on conflict.
func (s *SQLiteStore) Update(ctx context.Context, ns, coll, id string, fn MutateFunc) error {
	return resilience.Do(ctx, conflictRetry(), func(ctx context.Context) error {
		return s.updateOnce(ctx, ns, coll, id, fn)
	})
}

func (s *SQLiteStore) updateOnce(ctx context.Context, ns, coll, id string, fn MutateFunc) error {
	var current []byte
	var version int64
	doc, err := s.Get(ctx, ns, coll, id)
	switch {
	case err == nil:
		current, version = doc.Data, doc.Version
	case !IsNotFound(err):
		return err
	}

	next, err := fn(current)
	if err != nil || next == nil {
		return err
	}

	now := time.Now().UTC()
	var res sql.Result
	if current == nil {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO documents (namespace, collection, id, data, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, ?, ?) ON CONFLICT(namespace, collection, id) DO NOTHING`,
			ns, coll, id, string(next), now, now,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE documents SET data = ?, version = version + 1, updated_at = ?
			WHERE namespace = ? AND collection = ? AND id = ? AND version = ?`,
			string(next), now, ns, coll, id, version,
		)
	}
	if err != nil {
		if isBusy(err) {
			return eris.Wrap(ErrConflict, err.Error())
		}
		return eris.Wrapf(err, "sqlite: update %s/%s/%s", ns, coll, id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrConflict, "sqlite: update %s/%s/%s", ns, coll, id)
	}
	return nil
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
