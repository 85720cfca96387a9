package docstore

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWhere_SQLite(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	where, args, err := buildWhere(sqliteDialect{}, Filter{Where: []Cond{
		Where("email", OpEq, "a@x.fr"),
		Where("expires_at", OpLte, ts),
		Where("count", OpNe, 2),
	}}, 2)
	require.NoError(t, err)
	assert.Equal(t,
		"json_extract(data, '$.email') = ? AND julianday(json_extract(data, '$.expires_at')) <= julianday(?) AND json_extract(data, '$.count') <> ?",
		where)
	assert.Equal(t, []any{"a@x.fr", "2025-05-01T08:00:00Z", 2}, args)
}

func TestBuildWhere_PostgresNumbering(t *testing.T) {
	t.Parallel()

	where, args, err := buildWhere(postgresDialect{}, Filter{Where: []Cond{
		Where("a.b", OpGt, 1.5),
		Where("flag", OpEq, true),
	}}, 2)
	require.NoError(t, err)
	assert.Equal(t, "(data #>> '{a,b}')::numeric > $3 AND (data #>> '{flag}') = $4", where)
	assert.Equal(t, []any{1.5, "true"}, args)
}

func TestBuildWhere_Rejects(t *testing.T) {
	t.Parallel()

	_, _, err := buildWhere(sqliteDialect{}, Filter{Where: []Cond{Where("ok", "LIKE", "x")}}, 0)
	assert.True(t, eris.Is(err, ErrInvalidFilter))

	_, err = buildOrder(sqliteDialect{}, Filter{OrderBy: "a;b"})
	assert.True(t, eris.Is(err, ErrInvalidFilter))
}

func TestBuildOrder(t *testing.T) {
	t.Parallel()

	got, err := buildOrder(sqliteDialect{}, Filter{OrderBy: "created_at", Desc: true, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY julianday(json_extract(data, '$.created_at')) DESC, id LIMIT 5", got)

	got, err = buildOrder(postgresDialect{}, Filter{})
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY id", got)
}
