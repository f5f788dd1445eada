package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jask/arkark/internal/storage"
)

// Mode selects how the database image reaches durable storage.
type Mode string

const (
	// ModeWriteThrough opens the durable file directly; Persist is a no-op.
	ModeWriteThrough Mode = "write_through"
	// ModeSnapshot works on a private copy and saves whole images through a Gateway.
	ModeSnapshot Mode = "snapshot"
)

// Options configures OpenStore.
type Options struct {
	Mode Mode
	// Path is the durable database file in write-through mode.
	Path string
	// Gateway and WorkDir are used in snapshot mode.
	Gateway storage.Gateway
	WorkDir string
	// AfterMigrate runs once after migrations, before the first persist.
	AfterMigrate func(ctx context.Context, db *sql.DB) error
	Log          zerolog.Logger
}

// Store owns the process-wide database handle and knows how to flush it.
type Store struct {
	DB *sql.DB

	mode     Mode
	gateway  storage.Gateway
	workPath string
	log      zerolog.Logger
}

// Mode reports the persistence mode the store was opened with.
func (s *Store) Mode() Mode { return s.mode }

// OpenStore opens the database in the configured mode, applies migrations and
// persists once.
func OpenStore(ctx context.Context, opts Options) (*Store, error) {
	log := opts.Log.With().Str("component", "database").Logger()
	var (
		s   *Store
		err error
	)
	switch opts.Mode {
	case ModeWriteThrough, "":
		s, err = openWriteThrough(opts.Path, log)
	case ModeSnapshot:
		s, err = openSnapshot(ctx, opts.Gateway, opts.WorkDir, log)
	default:
		return nil, fmt.Errorf("unknown database mode %q", opts.Mode)
	}
	if err != nil {
		return nil, err
	}

	if err := ApplyMigrations(ctx, s.DB, opts.Log); err != nil {
		s.discard()
		return nil, err
	}
	if opts.AfterMigrate != nil {
		if err := opts.AfterMigrate(ctx, s.DB); err != nil {
			s.discard()
			return nil, fmt.Errorf("after migrate: %w", err)
		}
	}
	if err := s.Persist(ctx); err != nil {
		s.discard()
		return nil, err
	}
	return s, nil
}

// discard closes a store that failed to open, without persisting.
func (s *Store) discard() {
	_ = s.DB.Close()
	if s.workPath != "" {
		_ = os.Remove(s.workPath)
	}
}

func openWriteThrough(path string, log zerolog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	db, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	log.Debug().Str("path", path).Msg("opened write-through database")
	return &Store{DB: db, mode: ModeWriteThrough, log: log}, nil
}

func openSnapshot(ctx context.Context, gw storage.Gateway, workDir string, log zerolog.Logger) (*Store, error) {
	if gw == nil {
		return nil, errors.New("snapshot mode requires a storage gateway")
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir work dir: %w", err)
	}
	image, err := gw.LoadBytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	workPath := filepath.Join(workDir, "arkark-"+NewID()+".db")
	if image != nil {
		if err := os.WriteFile(workPath, image, 0o600); err != nil {
			return nil, fmt.Errorf("stage image: %w", err)
		}
	}
	db, err := Open(workPath)
	if err != nil {
		_ = os.Remove(workPath)
		return nil, fmt.Errorf("open db: %w", err)
	}
	log.Debug().Int("bytes", len(image)).Msg("opened snapshot database")
	return &Store{DB: db, mode: ModeSnapshot, gateway: gw, workPath: workPath, log: log}, nil
}

// Persist flushes the current database image to durable storage. In
// write-through mode the engine already wrote every change, so it does nothing.
func (s *Store) Persist(ctx context.Context) error {
	if s.mode != ModeSnapshot {
		return nil
	}
	image, err := s.export(ctx)
	if err != nil {
		return fmt.Errorf("export image: %w", err)
	}
	if err := s.gateway.SaveBytes(ctx, image); err != nil {
		return fmt.Errorf("persist image: %w", err)
	}
	s.log.Debug().Int("bytes", len(image)).Msg("image persisted")
	return nil
}

// export returns a consistent copy of the database file.
func (s *Store) export(ctx context.Context) ([]byte, error) {
	out := s.workPath + ".export"
	_ = os.Remove(out)
	defer os.Remove(out)
	quoted := strings.ReplaceAll(out, "'", "''")
	if _, err := s.DB.ExecContext(ctx, "VACUUM INTO '"+quoted+"'"); err != nil {
		return nil, err
	}
	return os.ReadFile(out)
}

// Close persists and releases the handle.
func (s *Store) Close(ctx context.Context) error {
	perr := s.Persist(ctx)
	cerr := s.DB.Close()
	if s.workPath != "" {
		_ = os.Remove(s.workPath)
	}
	return errors.Join(perr, cerr)
}
