package database

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Migration is one embedded SQL migration of the routing store.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
	// Checksum is the hex SHA-256 of UpScript, recorded when the migration is applied.
	Checksum string
	// Tables lists the tables the up script creates.
	Tables []string
}

func (m *Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

//go:embed migrations/*.sql
var migrationFS embed.FS

var (
	loadOnce      sync.Once
	migrations    []Migration
	migrationsErr error
)

var createTableRe = regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?"?([a-z_][a-z0-9_]*)"?`)

func loadMigrations() ([]Migration, error) {
	loadOnce.Do(func() {
		migrations, migrationsErr = parseMigrations(migrationFS, "migrations")
	})
	return migrations, migrationsErr
}

// parseMigrations reads NNNNNN_name.up.sql / .down.sql pairs from dir, ordered by version.
func parseMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var out []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		base := strings.TrimSuffix(name, ".up.sql")
		prefix, label, ok := strings.Cut(base, "_")
		if !ok || label == "" {
			return nil, fmt.Errorf("migration %s: expected NNNNNN_name.up.sql", name)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: invalid version %q", name, prefix)
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %06d used by both %s and %s", version, other, name)
		}
		seen[version] = name

		up, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		down, err := fs.ReadFile(fsys, path.Join(dir, base+".down.sql"))
		if err != nil {
			return nil, fmt.Errorf("migration %s has no down script: %w", name, err)
		}

		sum := sha256.Sum256(up)
		m := Migration{
			Version:    version,
			Name:       label,
			UpScript:   string(up),
			DownScript: string(down),
			Checksum:   hex.EncodeToString(sum[:]),
		}
		for _, match := range createTableRe.FindAllStringSubmatch(m.UpScript, -1) {
			m.Tables = append(m.Tables, strings.ToLower(match[1]))
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// GetMigrations returns the embedded migrations, or none when they failed to parse.
func GetMigrations() []Migration {
	ms, _ := loadMigrations()
	return ms
}

// GetMigrationByVersion returns the migration with the given version, or nil.
func GetMigrationByVersion(version int) *Migration {
	for _, m := range GetMigrations() {
		if m.Version == version {
			return &m
		}
	}
	return nil
}

// RoutingTables lists every table the routing engine needs, in creation order.
func RoutingTables() []string {
	var tables []string
	for _, m := range GetMigrations() {
		tables = append(tables, m.Tables...)
	}
	return tables
}
