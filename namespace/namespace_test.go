package namespace

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

var namespaceTables = []string{
	"t_inodes", "t_dirs", "t_inodes_data", "t_tags", "t_tags_inodes",
	"t_locationinfo", "t_storageinfo", "t_access_latency",
	"t_retention_policy", "t_inodes_checksum", "t_acl",
	"t_level_1", "t_level_2", "t_level_3", "t_level_4",
	"t_level_5", "t_level_6", "t_level_7",
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	// a second connection would see its own empty in-memory database
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, CreateSchema(ctx, db))
	require.NoError(t, CreateRoot(ctx, db))
	return db
}

func newTestDriver(t *testing.T) (*Driver, context.Context) {
	t.Helper()
	db := newTestDB(t)
	return NewDriver(db, &Config{}), context.Background()
}

// rowCounts snapshots the table sizes of the whole schema.
func rowCounts(t *testing.T, d *Driver, ctx context.Context) map[string]int {
	t.Helper()
	counts := make(map[string]int, len(namespaceTables))
	for _, table := range namespaceTables {
		var n int
		err := d.db.NewRaw("SELECT count(*) FROM " + table).Scan(ctx, &n)
		require.NoError(t, err)
		counts[table] = n
	}
	return counts
}
