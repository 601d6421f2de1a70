package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const sweepTimeout = 30 * time.Second

// Sweeper runs the periodic maintenance jobs: pruning conversation
// history and spent reminders past the retention window, and noticing
// due reminders. It does not send anything itself; when reminders are
// due it fires the trigger, which feeds a reminder event into the
// normal dispatch pipeline.
type Sweeper struct {
	store     *Store
	cron      *cron.Cron
	retention time.Duration
	trigger   func()
	logger    *slog.Logger
}

func NewSweeper(st *Store, schedule string, retentionDays int, trigger func(), logger *slog.Logger) (*Sweeper, error) {
	s := &Sweeper{
		store:     st,
		cron:      cron.New(),
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		trigger:   trigger,
		logger:    logger,
	}

	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	if trigger != nil {
		if _, err := s.cron.AddFunc("@every 1m", s.checkReminders); err != nil {
			return nil, fmt.Errorf("schedule reminder check: %w", err)
		}
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	cutoff := time.Now().Add(-s.retention)
	if n, err := s.store.PruneHistory(ctx, cutoff); err != nil {
		s.logger.Error("history sweep failed", "error", err)
	} else if n > 0 {
		s.logger.Info("history sweep", "deleted", n, "cutoff", cutoff.Format(time.RFC3339))
	}

	if n, err := s.store.PruneReminders(ctx, cutoff); err != nil {
		s.logger.Error("reminder sweep failed", "error", err)
	} else if n > 0 {
		s.logger.Info("reminder sweep", "deleted", n)
	}
}

func (s *Sweeper) checkReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	due, err := s.store.DueReminders(ctx, time.Now())
	if err != nil {
		s.logger.Error("reminder check failed", "error", err)
		return
	}
	if len(due) > 0 {
		s.logger.Debug("reminders due", "count", len(due))
		s.trigger()
	}
}
