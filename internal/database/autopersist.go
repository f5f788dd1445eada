package database

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Flusher is anything that can write the database image to durable storage.
type Flusher interface {
	Persist(ctx context.Context) error
}

// AutoPersist periodically flushes a store for hosts that do not want to call
// Persist after every batch of writes.
type AutoPersist struct {
	cron   *cron.Cron
	target Flusher
	log    zerolog.Logger
}

// NewAutoPersist registers a flush job on schedule, e.g. "@every 30s".
func NewAutoPersist(target Flusher, schedule string, log zerolog.Logger) (*AutoPersist, error) {
	a := &AutoPersist{
		cron:   cron.New(),
		target: target,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
	if _, err := a.cron.AddFunc(schedule, func() {
		if err := a.RunNow(context.Background()); err != nil {
			a.log.Error().Err(err).Msg("auto persist failed")
		}
	}); err != nil {
		return nil, err
	}
	a.log.Info().Str("schedule", schedule).Msg("auto persist registered")
	return a, nil
}

func (a *AutoPersist) Start() { a.cron.Start() }

// Stop waits for a running flush to finish.
func (a *AutoPersist) Stop() {
	ctx := a.cron.Stop()
	<-ctx.Done()
}

// RunNow flushes immediately, outside the schedule.
func (a *AutoPersist) RunNow(ctx context.Context) error {
	a.log.Debug().Msg("auto persist")
	return a.target.Persist(ctx)
}
