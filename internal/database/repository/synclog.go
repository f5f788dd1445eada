package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jask/arkark/internal/database"
)

type NewSyncLog struct {
	Action       SyncAction
	EntityType   string
	EntityID     string
	Fingerprint  *string
	Status       string // defaults to "pending"
	ErrorMessage *string
}

// SyncLogRepo appends sync records. Consumers read them elsewhere.
type SyncLogRepo struct {
	db DBTX
}

func NewSyncLogRepo(db DBTX) *SyncLogRepo { return &SyncLogRepo{db: db} }

const syncLogColumns = `id, action, entity_type, entity_id, fingerprint, status, error_message, created_at`

func scanSyncLog(s scanner) (SyncLog, error) {
	var l SyncLog
	err := s.Scan(&l.ID, &l.Action, &l.EntityType, &l.EntityID, &l.Fingerprint, &l.Status, &l.ErrorMessage, &l.CreatedAt)
	return l, err
}

func (r *SyncLogRepo) Append(ctx context.Context, in NewSyncLog) (*SyncLog, error) {
	id := database.NewID()
	status := in.Status
	if status == "" {
		status = "pending"
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO sync_log(id, action, entity_type, entity_id, fingerprint, status, error_message, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(in.Action), in.EntityType, in.EntityID, nullable(in.Fingerprint), status,
		nullable(in.ErrorMessage), database.Timestamp())
	if err != nil {
		return nil, fmt.Errorf("insert sync log: %w", err)
	}
	l, err := r.GetByID(ctx, id)
	return mustGet(l, err, "sync log", id)
}

func (r *SyncLogRepo) GetByID(ctx context.Context, id string) (*SyncLog, error) {
	l, err := scanSyncLog(r.db.QueryRowContext(ctx, `SELECT `+syncLogColumns+` FROM sync_log WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListRecent returns up to limit records, newest first.
func (r *SyncLogRepo) ListRecent(ctx context.Context, limit int) ([]SyncLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+syncLogColumns+` FROM sync_log ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SyncLog
	for rows.Next() {
		l, err := scanSyncLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
