package database

import (
	"context"
	"errors"
	"sort"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_desks.up.sql":   {Data: []byte("CREATE TABLE IF NOT EXISTS desks (id INT);")},
		"m/000002_desks.down.sql": {Data: []byte("DROP TABLE desks;")},
		"m/000001_core.up.sql":    {Data: []byte("CREATE TABLE files (id INT);\ncreate table if not exists routing_history (id INT);")},
		"m/000001_core.down.sql":  {Data: []byte("DROP TABLE routing_history; DROP TABLE files;")},
		"m/README.md":             {Data: []byte("ignored")},
	}

	ms, err := parseMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "000001_core", ms[0].String())
	assert.Equal(t, []string{"files", "routing_history"}, ms[0].Tables)
	assert.Equal(t, []string{"desks"}, ms[1].Tables)
	assert.Len(t, ms[0].Checksum, 64)
	assert.NotEqual(t, ms[0].Checksum, ms[1].Checksum)
}

func TestParseMigrations_Rejects(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
		want string
	}{
		{
			name: "missing down script",
			fsys: fstest.MapFS{"m/000001_core.up.sql": {Data: []byte("SELECT 1;")}},
			want: "no down script",
		},
		{
			name: "bad version",
			fsys: fstest.MapFS{
				"m/first_core.up.sql":   {Data: []byte("SELECT 1;")},
				"m/first_core.down.sql": {Data: []byte("SELECT 1;")},
			},
			want: "invalid version",
		},
		{
			name: "duplicate version",
			fsys: fstest.MapFS{
				"m/000001_a.up.sql":   {Data: []byte("SELECT 1;")},
				"m/000001_a.down.sql": {Data: []byte("SELECT 1;")},
				"m/000001_b.up.sql":   {Data: []byte("SELECT 2;")},
				"m/000001_b.down.sql": {Data: []byte("SELECT 2;")},
			},
			want: "used by both",
		},
		{
			name: "no name",
			fsys: fstest.MapFS{"m/000001.up.sql": {Data: []byte("SELECT 1;")}},
			want: "expected NNNNNN_name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseMigrations(tt.fsys, "m")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// memoryStore keeps the migration log in memory and treats each applied
// migration's tables as created.
type memoryStore struct {
	logs      []MigrationLog
	tables    map[string]bool
	failApply int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{tables: map[string]bool{}}
}

func (s *memoryStore) EnsureLog(context.Context) error { return nil }

func (s *memoryStore) AppliedMigrations(context.Context) ([]MigrationLog, error) {
	out := append([]MigrationLog(nil), s.logs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *memoryStore) ApplyMigration(_ context.Context, m Migration) error {
	if m.Version == s.failApply {
		return errors.New("syntax error")
	}
	for _, table := range m.Tables {
		s.tables[table] = true
	}
	s.logs = append(s.logs, MigrationLog{Version: m.Version, Name: m.Name, Checksum: m.Checksum})
	return nil
}

func (s *memoryStore) RemoveMigration(_ context.Context, m Migration) error {
	for _, table := range m.Tables {
		delete(s.tables, table)
	}
	kept := s.logs[:0]
	for _, entry := range s.logs {
		if entry.Version != m.Version {
			kept = append(kept, entry)
		}
	}
	s.logs = kept
	return nil
}

func (s *memoryStore) MissingTables(_ context.Context, tables []string) ([]string, error) {
	var missing []string
	for _, table := range tables {
		if !s.tables[table] {
			missing = append(missing, table)
		}
	}
	return missing, nil
}

func routingMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "core", Checksum: "aaa", Tables: []string{"files", "routing_history"}},
		{Version: 2, Name: "desks", Checksum: "bbb", Tables: []string{"desks"}},
	}
}

func TestRunMigrations_AppliesPendingAndVerifiesTables(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	registered := routingMigrations()

	require.NoError(t, runMigrations(ctx, store, registered[:1]))
	require.NoError(t, runMigrations(ctx, store, registered))
	// Running again is a no-op.
	require.NoError(t, runMigrations(ctx, store, registered))

	require.Len(t, store.logs, 2)
	assert.Equal(t, "bbb", store.logs[1].Checksum)
	assert.True(t, store.tables["desks"])
}

func TestRunMigrations_RefusesDriftAndUnknownVersions(t *testing.T) {
	ctx := context.Background()

	edited := newMemoryStore()
	edited.logs = []MigrationLog{{Version: 1, Name: "core", Checksum: "changed"}}
	err := runMigrations(ctx, edited, routingMigrations())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000001_core")
	assert.Len(t, edited.logs, 1, "nothing applied after drift")

	future := newMemoryStore()
	future.logs = []MigrationLog{{Version: 9, Name: "later"}}
	err = runMigrations(ctx, future, routingMigrations())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000009")

	// Rows written before checksums were recorded are accepted.
	legacy := newMemoryStore()
	legacy.logs = []MigrationLog{{Version: 1, Name: "core"}}
	legacy.tables["files"], legacy.tables["routing_history"] = true, true
	require.NoError(t, runMigrations(ctx, legacy, routingMigrations()))
}

func TestRunMigrations_ReportsMissingRoutingTables(t *testing.T) {
	store := newMemoryStore()
	store.logs = []MigrationLog{{Version: 1, Name: "core", Checksum: "aaa"}}

	err := runMigrations(context.Background(), store, routingMigrations()[:1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "files, routing_history")
}

func TestRunMigrations_StopsOnFailedMigration(t *testing.T) {
	store := newMemoryStore()
	store.failApply = 2

	err := runMigrations(context.Background(), store, routingMigrations())
	require.Error(t, err)
	require.Len(t, store.logs, 1)
	assert.Equal(t, 1, store.logs[0].Version)
}

func TestRollbackMigration_OnlyLatest(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	registered := routingMigrations()
	require.NoError(t, runMigrations(ctx, store, registered))

	err := rollbackMigration(ctx, store, registered, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not the latest")

	require.NoError(t, rollbackMigration(ctx, store, registered, 2))
	assert.False(t, store.tables["desks"])
	require.NoError(t, rollbackMigration(ctx, store, registered, 1))
	assert.Empty(t, store.logs)

	assert.Error(t, rollbackMigration(ctx, store, registered, 1))
}

func TestMigrationStore_ReportsDroppedTable(t *testing.T) {
	db, err := OpenSQLite("file:missing_tables_test?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, db.Migrator().DropTable("extension_requests"))

	missing, err := NewMigrationStore(db).MissingTables(context.Background(), RoutingTables())
	require.NoError(t, err)
	assert.Equal(t, []string{"extension_requests"}, missing)
}
