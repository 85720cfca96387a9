// Package docstoretest provides a throwaway SQLite document store for tests.
package docstoretest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/docstore"
)

// New returns a migrated SQLite store under t.TempDir, closed on cleanup.
func New(t testing.TB) *docstore.SQLiteStore {
	t.Helper()
	s, err := docstore.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}
