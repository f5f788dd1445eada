package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// LatestVersion is the schema version a fully migrated database reports.
const LatestVersion = 1

// Migration is one versioned, additive schema step.
type Migration struct {
	Version     uint
	Description string
	SQL         string
}

// MigrationError reports a migration that was rolled back.
type MigrationError struct {
	Version     uint
	Description string
	Err         error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration to version %d failed (%s): %v", e.Version, e.Description, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// LoadMigrations returns the embedded up migrations in ascending version order.
func LoadMigrations() ([]Migration, error) {
	return loadMigrations(migrationFiles, "migrations")
}

func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	defer src.Close()

	var out []Migration
	version, err := src.First()
	for err == nil {
		r, identifier, rerr := src.ReadUp(version)
		if rerr != nil {
			return nil, fmt.Errorf("read migration %d: %w", version, rerr)
		}
		body, rerr := io.ReadAll(r)
		_ = r.Close()
		if rerr != nil {
			return nil, fmt.Errorf("read migration %d: %w", version, rerr)
		}
		out = append(out, Migration{
			Version:     version,
			Description: strings.ReplaceAll(identifier, "_", " "),
			SQL:         string(body),
		})
		version, err = src.Next(version)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	return out, nil
}

// CurrentVersion reads the schema version stored in the database header.
// A freshly created database reports 0.
func CurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}

// ApplyMigrations brings db to LatestVersion. Each pending migration runs in
// its own transaction together with the version bump; on failure nothing of
// that migration is kept and a *MigrationError is returned.
func ApplyMigrations(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	migs, err := LoadMigrations()
	if err != nil {
		return err
	}
	return applyMigrations(ctx, db, migs, log)
}

func applyMigrations(ctx context.Context, db *sql.DB, migs []Migration, log zerolog.Logger) error {
	log = log.With().Str("component", "migrate").Logger()
	current, err := CurrentVersion(ctx, db)
	if err != nil {
		return err
	}
	for _, m := range migs {
		if int(m.Version) <= current {
			continue
		}
		err := WithTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
				return err
			}
			// PRAGMA does not accept bound parameters.
			_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version))
			return err
		})
		if err != nil {
			return &MigrationError{Version: m.Version, Description: m.Description, Err: err}
		}
		current = int(m.Version)
		log.Info().Uint("version", m.Version).Str("description", m.Description).Msg("migration applied")
	}
	return nil
}
