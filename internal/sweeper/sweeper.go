// Package sweeper runs the periodic draft maintenance of a wizard server:
// exiting idle sessions, autosaving dirty drafts, forgetting finished
// sessions and compacting the store.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/rendis/listwizard/pkg/schema"
)

// Target is the session owner the sweeper maintains.
// Satisfied by session.Manager.
type Target interface {
	AutosaveDirty(ctx context.Context) (int, error)
	ExitIdle(ctx context.Context, idle time.Duration) (int, error)
	Prune(cutoff time.Time) int
	Vacuum(ctx context.Context) error
}

// Config controls when and what the sweeper does.
type Config struct {
	// Cron is a five-field expression or a descriptor such as "@every 1m".
	Cron string
	// IdleTimeout exits sessions without activity for this long. Zero disables it.
	IdleTimeout time.Duration
	// Retention keeps finished sessions in memory for this long. Zero disables pruning.
	Retention time.Duration
	// VacuumEvery is the least time between store compactions. Zero disables it.
	VacuumEvery time.Duration
}

// DefaultCron runs a sweep every minute.
const DefaultCron = "@every 1m"

// Result reports what one sweep did.
type Result struct {
	Exited   int
	Saved    int
	Pruned   int
	Vacuumed bool
}

// Sweeper runs Sweep on a cron schedule.
type Sweeper struct {
	target   Target
	cfg      Config
	schedule cron.Schedule
	logger   *slog.Logger
	clock    clockwork.Clock

	lastVacuum time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	running atomic.Bool
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New creates a Sweeper. An empty Cron uses DefaultCron.
func New(target Target, cfg Config, logger *slog.Logger) (*Sweeper, error) {
	if cfg.Cron == "" {
		cfg.Cron = DefaultCron
	}
	sched, err := parser.Parse(cfg.Cron)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "parse autosave schedule %q", cfg.Cron).WithCause(err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		target:   target,
		cfg:      cfg,
		schedule: sched,
		logger:   logger.With(slog.String("component", "sweeper")),
		clock:    clockwork.NewRealClock(),
	}, nil
}

// NextRun returns the first scheduled sweep after from.
func (s *Sweeper) NextRun(from time.Time) time.Time {
	return s.schedule.Next(from)
}

// Start launches the background loop.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return fmt.Errorf("sweeper already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(loopCtx, s.done)
	s.logger.Info("sweeper started", slog.String("cron", s.cfg.Cron))
	return nil
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		now := s.clock.Now()
		timer := s.clock.NewTimer(s.schedule.Next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one maintenance pass. Overlapping calls return immediately
// with an empty result.
func (s *Sweeper) Sweep(ctx context.Context) Result {
	var res Result
	if !s.running.CompareAndSwap(false, true) {
		return res
	}
	defer s.running.Store(false)

	var err error
	if s.cfg.IdleTimeout > 0 {
		if res.Exited, err = s.target.ExitIdle(ctx, s.cfg.IdleTimeout); err != nil {
			s.logger.Error("exit idle sessions", slog.String("error", err.Error()))
		}
	}
	if res.Saved, err = s.target.AutosaveDirty(ctx); err != nil {
		s.logger.Error("autosave drafts", slog.String("error", err.Error()))
	}
	if s.cfg.Retention > 0 {
		res.Pruned = s.target.Prune(s.clock.Now().Add(-s.cfg.Retention))
	}
	if s.cfg.VacuumEvery > 0 && (s.lastVacuum.IsZero() || s.clock.Since(s.lastVacuum) >= s.cfg.VacuumEvery) {
		if err := s.target.Vacuum(ctx); err != nil {
			s.logger.Error("vacuum store", slog.String("error", err.Error()))
		} else {
			res.Vacuumed = true
			s.lastVacuum = s.clock.Now()
		}
	}

	if res != (Result{}) {
		s.logger.Info("sweep finished",
			slog.Int("exited", res.Exited),
			slog.Int("saved", res.Saved),
			slog.Int("pruned", res.Pruned),
			slog.Bool("vacuumed", res.Vacuumed),
		)
	}
	return res
}

// Stop ends the loop and waits for an in-progress sweep.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("sweeper stopped")
	return nil
}
