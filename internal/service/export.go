package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jask/arkark/internal/database"
	"github.com/jask/arkark/internal/database/repository"
	"github.com/jask/arkark/internal/secrets"
	"github.com/jask/arkark/internal/views"
)

// SnapshotEntity is the sync_log entity type of exported health snapshots.
const SnapshotEntity = "health_snapshot"

// ErrFingerprintMismatch is returned when a decrypted snapshot does not hash
// to the fingerprint it was shipped with.
var ErrFingerprintMismatch = errors.New("fingerprint mismatch")

// Snapshot is the envelope of one exported health fingerprint. Only the hash
// and the encrypted canonical JSON leave the device.
type Snapshot struct {
	ID          string                   `json:"id"`
	CreatedAt   string                   `json:"created_at"`
	Fingerprint string                   `json:"fingerprint"`
	Payload     secrets.EncryptedPayload `json:"payload"`
}

// ExportService derives ratio-only health metrics and ships them encrypted.
type ExportService struct {
	DB  repository.DBTX
	Log zerolog.Logger
}

// Metrics derives the fingerprint metrics as of asOf. A ratio whose
// denominator is zero is nil.
func (s *ExportService) Metrics(ctx context.Context, asOf time.Time) (secrets.HealthMetrics, error) {
	var m secrets.HealthMetrics
	asOf = asOf.UTC()
	calc := views.Calculator{DB: s.DB}
	h, err := calc.FinancialHealth(ctx, asOf)
	if err != nil {
		return m, fmt.Errorf("health: %w", err)
	}
	m.EmergencyFundMonths = h.EmergencyFundMonths
	m.DebtToAssetRatio = ratio(h.TotalLiabilities, h.TotalAssets)
	m.LiquidityRatio = ratio(h.LiquidCash, h.TotalAssets)

	cutoff := asOf.AddDate(0, -views.ExpenseWindowMonths, 0).Format(time.DateOnly)
	var income, expense float64
	err = s.DB.QueryRowContext(ctx, `
	SELECT COALESCE(SUM(CASE WHEN type = 'income' THEN amount END), 0),
	       COALESCE(SUM(CASE WHEN type = 'expense' THEN amount END), 0)
	FROM transactions WHERE date >= ?`, cutoff).Scan(&income, &expense)
	if err != nil {
		return m, fmt.Errorf("savings: %w", err)
	}
	m.SavingsRate = ratio(income-expense, income)

	budgets, err := repository.NewBudgetRepo(s.DB).Active(ctx, asOf)
	if err != nil {
		return m, fmt.Errorf("budgets: %w", err)
	}
	if len(budgets) > 0 {
		ok := 0
		for _, b := range budgets {
			if b.Remaining >= 0 {
				ok++
			}
		}
		score := 100 * float64(ok) / float64(len(budgets))
		m.SpendingHealthScore = &score
	}
	return m, nil
}

func ratio(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	r := num / den
	return &r
}

// Export encrypts the canonical fingerprint under password and records a
// push in the sync log.
func (s *ExportService) Export(ctx context.Context, password string, asOf time.Time) (Snapshot, error) {
	m, err := s.Metrics(ctx, asOf)
	if err != nil {
		return Snapshot{}, err
	}
	fp := secrets.GenerateFingerprint(m)
	payload, err := secrets.Encrypt(fp, password)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encrypt snapshot: %w", err)
	}
	snap := Snapshot{
		ID:          uuid.NewString(),
		CreatedAt:   database.Timestamp(),
		Fingerprint: secrets.HashFingerprint(fp),
		Payload:     payload,
	}
	if _, err := repository.NewSyncLogRepo(s.DB).Append(ctx, repository.NewSyncLog{
		Action:      repository.SyncPush,
		EntityType:  SnapshotEntity,
		EntityID:    snap.ID,
		Fingerprint: &snap.Fingerprint,
	}); err != nil {
		return Snapshot{}, err
	}
	s.Log.Info().Str("component", "export").Str("snapshot", snap.ID).Msg("snapshot exported")
	return snap, nil
}

// Import decrypts snap, checks its fingerprint and records the pull. Rejected
// snapshots are logged to the sync log before the error is returned.
func (s *ExportService) Import(ctx context.Context, snap Snapshot, password string) (secrets.HealthMetrics, error) {
	m, err := s.open(snap, password)
	status := "ok"
	var msg *string
	if err != nil {
		status = "rejected"
		e := err.Error()
		msg = &e
	}
	if _, logErr := repository.NewSyncLogRepo(s.DB).Append(ctx, repository.NewSyncLog{
		Action:       repository.SyncPull,
		EntityType:   SnapshotEntity,
		EntityID:     snap.ID,
		Fingerprint:  &snap.Fingerprint,
		Status:       status,
		ErrorMessage: msg,
	}); logErr != nil {
		return m, errors.Join(err, logErr)
	}
	if err != nil {
		s.Log.Warn().Str("component", "export").Str("snapshot", snap.ID).Err(err).Msg("snapshot rejected")
		return secrets.HealthMetrics{}, err
	}
	s.Log.Info().Str("component", "export").Str("snapshot", snap.ID).Msg("snapshot imported")
	return m, nil
}

func (s *ExportService) open(snap Snapshot, password string) (secrets.HealthMetrics, error) {
	fp, err := secrets.Decrypt(snap.Payload, password)
	if err != nil {
		return secrets.HealthMetrics{}, err
	}
	if secrets.HashFingerprint(fp) != snap.Fingerprint {
		return secrets.HealthMetrics{}, ErrFingerprintMismatch
	}
	return secrets.ParseFingerprint(fp)
}
