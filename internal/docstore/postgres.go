package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	namespace  TEXT NOT NULL,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL,
	version    BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, collection, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(namespace, collection);
CREATE INDEX IF NOT EXISTS idx_documents_data ON documents USING GIN (data jsonb_path_ops);
`

// Migrate creates the documents table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, ns, coll, id string) (*Document, error) {
	var doc Document
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, data, version, updated_at FROM documents WHERE namespace = $1 AND collection = $2 AND id = $3`,
		ns, coll, id,
	).Scan(&doc.ID, &data, &doc.Version, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: get %s/%s/%s", ns, coll, id)
		}
		return nil, eris.Wrapf(err, "postgres: get %s/%s/%s", ns, coll, id)
	}
	doc.Data = data
	return &doc, nil
}

const postgresUpsert = `INSERT INTO documents (namespace, collection, id, data, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, 1, $5, $5)
ON CONFLICT (namespace, collection, id) DO UPDATE SET
	data = EXCLUDED.data,
	version = documents.version + 1,
	updated_at = EXCLUDED.updated_at`

func (s *PostgresStore) Put(ctx context.Context, ns, coll, id string, data []byte) error {
	_, err := s.pool.Exec(ctx, postgresUpsert, ns, coll, id, data, time.Now().UTC())
	return eris.Wrapf(err, "postgres: put %s/%s/%s", ns, coll, id)
}

func (s *PostgresStore) PutBatch(ctx context.Context, ns, coll string, docs map[string][]byte) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin batch")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	for id, data := range docs {
		if _, err := tx.Exec(ctx, postgresUpsert, ns, coll, id, data, now); err != nil {
			return eris.Wrapf(err, "postgres: batch put %s/%s/%s", ns, coll, id)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit batch")
}

func (s *PostgresStore) Delete(ctx context.Context, ns, coll, id string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE namespace = $1 AND collection = $2 AND id = $3`,
		ns, coll, id,
	)
	return eris.Wrapf(err, "postgres: delete %s/%s/%s", ns, coll, id)
}

func (s *PostgresStore) Query(ctx context.Context, ns, coll string, f Filter) ([]Document, error) {
	d := postgresDialect{}
	where, args, err := buildWhere(d, f, 2)
	if err != nil {
		return nil, err
	}
	order, err := buildOrder(d, f)
	if err != nil {
		return nil, err
	}

	q := `SELECT id, data, version, updated_at FROM documents WHERE namespace = $1 AND collection = $2`
	if where != "" {
		q += " AND " + where
	}
	q += order

	rows, err := s.pool.Query(ctx, q, append([]any{ns, coll}, args...)...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query %s/%s", ns, coll)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var data []byte
		if err := rows.Scan(&doc.ID, &data, &doc.Version, &doc.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		doc.Data = data
		docs = append(docs, doc)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: iterate documents")
}

// Update locks the row with SELECT ... FOR UPDATE inside a transaction. A
// racing first insert surfaces as ErrConflict and is retried.
func (s *PostgresStore) Update(ctx context.Context, ns, coll, id string, fn MutateFunc) error {
	return resilience.Do(ctx, conflictRetry(), func(ctx context.Context) error {
		return s.updateOnce(ctx, ns, coll, id, fn)
	})
}

func (s *PostgresStore) updateOnce(ctx context.Context, ns, coll, id string, fn MutateFunc) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin update")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var current []byte
	err = tx.QueryRow(ctx,
		`SELECT data FROM documents WHERE namespace = $1 AND collection = $2 AND id = $3 FOR UPDATE`,
		ns, coll, id,
	).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(err, "postgres: lock %s/%s/%s", ns, coll, id)
	}
	exists := err == nil

	next, err := fn(current)
	if err != nil || next == nil {
		return err
	}

	now := time.Now().UTC()
	if exists {
		_, err = tx.Exec(ctx,
			`UPDATE documents SET data = $1, version = version + 1, updated_at = $2
			WHERE namespace = $3 AND collection = $4 AND id = $5`,
			next, now, ns, coll, id,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: update %s/%s/%s", ns, coll, id)
		}
	} else {
		tag, err := tx.Exec(ctx,
			`INSERT INTO documents (namespace, collection, id, data, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 1, $5, $5) ON CONFLICT (namespace, collection, id) DO NOTHING`,
			ns, coll, id, next, now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert %s/%s/%s", ns, coll, id)
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(ErrConflict, "postgres: insert %s/%s/%s", ns, coll, id)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit update")
}
