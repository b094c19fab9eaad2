package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/listwizard/pkg/schema"
)

type mockTarget struct {
	mu       sync.Mutex
	saves    int
	exits    []time.Duration
	cutoffs  []time.Time
	saveErr  error
	block    chan struct{}
	entered  chan struct{}
	savedRet int
	vacuums  int
	vacErr   error
}

func (m *mockTarget) AutosaveDirty(context.Context) (int, error) {
	if m.entered != nil {
		m.entered <- struct{}{}
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	return m.savedRet, m.saveErr
}

func (m *mockTarget) ExitIdle(_ context.Context, idle time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exits = append(m.exits, idle)
	return 1, nil
}

func (m *mockTarget) Prune(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, cutoff)
	return 2
}

func (m *mockTarget) Vacuum(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vacuums++
	return m.vacErr
}

func (m *mockTarget) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_InvalidCron(t *testing.T) {
	_, err := New(&mockTarget{}, Config{Cron: "not a cron"}, testLogger())
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConfig, schema.CodeOf(err))
}

func TestNew_DefaultCron(t *testing.T) {
	s, err := New(&mockTarget{}, Config{}, testLogger())
	require.NoError(t, err)
	from := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, from.Add(time.Minute), s.NextRun(from))
}

func TestNextRun_FiveField(t *testing.T) {
	s, err := New(&mockTarget{}, Config{Cron: "*/5 * * * *"}, testLogger())
	require.NoError(t, err)
	from := time.Date(2026, 1, 1, 10, 2, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC), s.NextRun(from))
}

func TestSweep_RunsEveryTask(t *testing.T) {
	target := &mockTarget{savedRet: 3}
	s, err := New(target, Config{IdleTimeout: 30 * time.Minute, Retention: time.Hour, VacuumEvery: 24 * time.Hour}, testLogger())
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.clock = clockwork.NewFakeClockAt(now)

	res := s.Sweep(context.Background())

	assert.Equal(t, Result{Exited: 1, Saved: 3, Pruned: 2, Vacuumed: true}, res)
	assert.Equal(t, []time.Duration{30 * time.Minute}, target.exits)
	assert.Equal(t, []time.Time{now.Add(-time.Hour)}, target.cutoffs)
}

func TestSweep_DisabledTasks(t *testing.T) {
	target := &mockTarget{}
	s, err := New(target, Config{}, testLogger())
	require.NoError(t, err)

	res := s.Sweep(context.Background())

	assert.Equal(t, Result{}, res)
	assert.Empty(t, target.exits)
	assert.Empty(t, target.cutoffs)
	assert.Equal(t, 1, target.saveCount())
	assert.Zero(t, target.vacuums)
}

func TestSweep_VacuumInterval(t *testing.T) {
	target := &mockTarget{}
	s, err := New(target, Config{VacuumEvery: time.Hour}, testLogger())
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s.clock = clock
	ctx := context.Background()

	assert.True(t, s.Sweep(ctx).Vacuumed)
	clock.Advance(59 * time.Minute)
	assert.False(t, s.Sweep(ctx).Vacuumed)
	clock.Advance(time.Minute)
	assert.True(t, s.Sweep(ctx).Vacuumed)
	assert.Equal(t, 2, target.vacuums)

	target.vacErr = errors.New("database is locked")
	clock.Advance(time.Hour)
	assert.False(t, s.Sweep(ctx).Vacuumed)
	target.vacErr = nil
	assert.True(t, s.Sweep(ctx).Vacuumed)
	assert.Equal(t, 4, target.vacuums)
}

func TestLoop_FollowsSchedule(t *testing.T) {
	target := &mockTarget{}
	s, err := New(target, Config{Cron: "@every 1m"}, testLogger())
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s.clock = clock
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, s.Start(ctx))
	defer func() { _ = s.Stop() }()

	for i := 1; i <= 2; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(time.Minute)
		require.Eventually(t, func() bool { return target.saveCount() == i }, time.Second, time.Millisecond)
	}
}

func TestSweep_ErrorDoesNotStopPass(t *testing.T) {
	target := &mockTarget{saveErr: errors.New("disk full")}
	s, err := New(target, Config{Retention: time.Minute}, testLogger())
	require.NoError(t, err)

	res := s.Sweep(context.Background())
	assert.Equal(t, 2, res.Pruned)
}

func TestSweep_SkipsOverlap(t *testing.T) {
	target := &mockTarget{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	s, err := New(target, Config{}, testLogger())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Sweep(context.Background())
		close(done)
	}()
	<-target.entered

	assert.Equal(t, Result{}, s.Sweep(context.Background()))
	close(target.block)
	<-done
	assert.Equal(t, 1, target.saveCount())
}

func TestStartStop(t *testing.T) {
	target := &mockTarget{}
	s, err := New(target, Config{Cron: "@every 1s"}, testLogger())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return target.saveCount() > 0 }, 3*time.Second, 50*time.Millisecond)
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}
