// Package migrate applies the embedded Postgres schema.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jmoiron/sqlx"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// lockKey keeps two migrators from racing on the same database.
const lockKey = 727_411_001

type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

// Migrations lists the embedded migrations in version order.
func Migrations() ([]Migration, error) {
	return loadMigrations(migrationsFS)
}

func loadMigrations(fsys fs.FS) ([]Migration, error) {
	files, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, err
	}

	seen := make(map[int]string)
	var migrations []Migration
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := fs.ReadFile(fsys, "sql/"+f.Name())
		if err != nil {
			return nil, err
		}
		var v int
		if _, err := fmt.Sscanf(f.Name(), "%d_", &v); err != nil {
			return nil, fmt.Errorf("invalid migration filename %s: %w", f.Name(), err)
		}
		if prev, dup := seen[v]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, f.Name(), v)
		}
		seen[v] = f.Name()
		migrations = append(migrations, Migration{
			Version: v,
			Name:    f.Name(),
			UpSQL:   string(data),
		})
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// CurrentVersion reports the applied schema version, 0 for a fresh database.
func CurrentVersion(ctx context.Context, db *sqlx.DB) (int, error) {
	var missing bool
	if err := db.GetContext(ctx, &missing, `SELECT to_regclass('schema_version') IS NULL`); err != nil {
		return 0, fmt.Errorf("inspect schema_version: %w", err)
	}
	if missing {
		return 0, nil
	}

	var version int
	err := db.GetContext(ctx, &version, `SELECT version FROM schema_version LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	return version, nil
}

// Migrate applies pending migrations in one transaction and returns the
// resulting version.
func Migrate(ctx context.Context, db *sqlx.DB) (int, error) {
	migrations, err := Migrations()
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
		return 0, fmt.Errorf("lock migrations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version(version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("create schema_version: %w", err)
	}

	var currentVersion int
	err = tx.GetContext(ctx, &currentVersion, `SELECT version FROM schema_version LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version(version) VALUES (0)`); err != nil {
			return 0, fmt.Errorf("init schema_version: %w", err)
		}
		currentVersion = 0
	} else if err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			return 0, fmt.Errorf("migration %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE schema_version SET version = $1`, m.Version); err != nil {
			return 0, fmt.Errorf("update schema_version: %w", err)
		}
		currentVersion = m.Version
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return currentVersion, nil
}
