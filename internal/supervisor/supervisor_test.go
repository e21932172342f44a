package supervisor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iperf-harness/internal/events"
	"iperf-harness/internal/pidfile"
	"iperf-harness/internal/session"
	"iperf-harness/internal/session/sessiontest"
)

type fakePidFiles struct {
	createErr error
	created   []string
	removed   []string
}

func (f *fakePidFiles) Create(path string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, path)
	return nil
}

func (f *fakePidFiles) Remove(path string) error {
	f.removed = append(f.removed, path)
	return nil
}

type fakeDaemonizer struct {
	err   error
	calls int
}

func (f *fakeDaemonizer) Daemonize() error {
	f.calls++
	return f.err
}

func newServerSession() *session.Session {
	s := session.New()
	s.Role = session.RoleServer
	s.PidFile = "/run/iperf.pid"
	return s
}

func newTestSupervisor(engine session.Engine, pf *fakePidFiles) *Supervisor {
	sv := New(engine, DefaultConfig())
	sv.SetPidFiles(pf)
	sv.SetDaemonizer(&fakeDaemonizer{})
	return sv
}

func TestDefaultConfig(t *testing.T) {
	assert.Equal(t, 5, DefaultConfig().MaxConsecutiveFailures)
	assert.Equal(t, 5, New(&sessiontest.Engine{}, Config{}).config.MaxConsecutiveFailures)
}

func TestStopsAfterFiveConsecutiveFailures(t *testing.T) {
	engine := &sessiontest.Engine{ServerResults: sessiontest.Failures(5)}
	pf := &fakePidFiles{}
	sv := newTestSupervisor(engine, pf)

	require.NoError(t, sv.Run(context.Background(), newServerSession()))

	assert.Equal(t, 5, engine.ServerRuns())
	assert.Equal(t, uint64(5), sv.Stats().Failures)
	assert.Equal(t, 4, engine.Resets(), "no reset after the terminal failure")
	assert.Equal(t, []string{"/run/iperf.pid"}, pf.created)
	assert.Equal(t, []string{"/run/iperf.pid"}, pf.removed)
}

func TestSuccessResetsFailureCounter(t *testing.T) {
	results := append(sessiontest.Failures(4), nil)
	results = append(results, sessiontest.Failures(5)...)
	engine := &sessiontest.Engine{ServerResults: results}
	sv := newTestSupervisor(engine, &fakePidFiles{})

	require.NoError(t, sv.Run(context.Background(), newServerSession()))

	assert.Equal(t, 10, engine.ServerRuns())
	stats := sv.Stats()
	assert.Equal(t, uint64(10), stats.Attempts)
	assert.Equal(t, uint64(1), stats.Successes)
	assert.Equal(t, uint64(9), stats.Failures)
	assert.Equal(t, 5, stats.MaxConsecutive)
}

func TestOneOffSingleAttempt(t *testing.T) {
	for name, result := range map[string]error{
		"success": nil,
		"failure": sessiontest.ErrScripted,
	} {
		t.Run(name, func(t *testing.T) {
			engine := &sessiontest.Engine{ServerResults: []error{result}}
			pf := &fakePidFiles{}
			sv := newTestSupervisor(engine, pf)
			s := newServerSession()
			s.OneOff = true

			require.NoError(t, sv.Run(context.Background(), s))

			assert.Equal(t, 1, engine.ServerRuns())
			assert.Equal(t, 1, engine.Resets())
			assert.Len(t, pf.removed, 1)
		})
	}
}

func TestDaemonFailureSkipsPidfileAndLoop(t *testing.T) {
	engine := &sessiontest.Engine{}
	pf := &fakePidFiles{}
	d := &fakeDaemonizer{err: errors.New("setsid failed")}
	sv := New(engine, DefaultConfig())
	sv.SetPidFiles(pf)
	sv.SetDaemonizer(d)

	s := newServerSession()
	s.Daemon = true

	err := sv.Run(context.Background(), s)
	require.Error(t, err)

	assert.Equal(t, session.KindDaemon, session.KindOf(err))
	assert.Equal(t, 1, d.calls)
	assert.Empty(t, pf.created)
	assert.Empty(t, pf.removed)
	assert.Equal(t, 0, engine.ServerRuns())
}

func TestDaemonizeBeforePidfile(t *testing.T) {
	engine := &sessiontest.Engine{}
	pf := &fakePidFiles{}
	d := &fakeDaemonizer{}
	sv := New(engine, DefaultConfig())
	sv.SetPidFiles(pf)
	sv.SetDaemonizer(d)

	s := newServerSession()
	s.Daemon = true
	s.OneOff = true

	require.NoError(t, sv.Run(context.Background(), s))
	assert.Equal(t, 1, d.calls)
	assert.Len(t, pf.created, 1)
}

func TestMissingDaemonizer(t *testing.T) {
	sv := New(&sessiontest.Engine{}, DefaultConfig())
	s := newServerSession()
	s.Daemon = true

	err := sv.Run(context.Background(), s)
	assert.Equal(t, session.KindDaemon, session.KindOf(err))
}

func TestPidfileFailureSkipsLoop(t *testing.T) {
	engine := &sessiontest.Engine{}
	pf := &fakePidFiles{createErr: pidfile.ErrRunning}
	sv := newTestSupervisor(engine, pf)

	err := sv.Run(context.Background(), newServerSession())
	require.Error(t, err)

	assert.Equal(t, session.KindPidfile, session.KindOf(err))
	assert.Equal(t, 0, engine.ServerRuns())
	assert.Empty(t, pf.removed)
}

func TestNoPidfilePath(t *testing.T) {
	engine := &sessiontest.Engine{}
	sv := New(engine, DefaultConfig())
	s := newServerSession()
	s.PidFile = ""
	s.OneOff = true

	require.NoError(t, sv.Run(context.Background(), s))
	assert.Equal(t, 1, engine.ServerRuns())
}

func TestCancellationStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := &sessiontest.Engine{
		ServerFunc: func(_ context.Context, _ *session.Session, attempt int) error {
			if attempt == 3 {
				cancel()
			}
			return nil
		},
	}
	pf := &fakePidFiles{}
	sv := newTestSupervisor(engine, pf)

	require.NoError(t, sv.Run(ctx, newServerSession()))

	assert.Equal(t, 3, engine.ServerRuns())
	assert.Len(t, pf.removed, 1)
}

func TestCancelledAttemptIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := &sessiontest.Engine{
		ServerFunc: func(ctx context.Context, _ *session.Session, attempt int) error {
			if attempt == 2 {
				cancel()
				return ctx.Err()
			}
			return nil
		},
	}
	bus := events.NewBus()
	var seen []events.Event
	bus.Handle(func(e events.Event) { seen = append(seen, e) })

	pf := &fakePidFiles{}
	sv := newTestSupervisor(engine, pf)
	sv.SetEventBus(bus)

	require.NoError(t, sv.Run(ctx, newServerSession()))

	assert.Equal(t, 2, engine.ServerRuns())
	assert.Equal(t, 1, engine.Resets(), "no reset after the cancelled attempt")
	assert.Len(t, pf.removed, 1)

	stats := sv.Stats()
	assert.Equal(t, uint64(2), stats.Attempts)
	assert.Equal(t, uint64(1), stats.Successes)
	assert.Equal(t, uint64(0), stats.Failures)
	assert.Equal(t, uint64(1), stats.Cancelled)
	assert.Equal(t, 0, stats.MaxConsecutive)

	var attemptEvents int
	for _, e := range seen {
		if e.Type == events.EventServerAttempt {
			attemptEvents++
			assert.True(t, e.Data.Success)
		}
	}
	assert.Equal(t, 1, attemptEvents)

	stop := seen[len(seen)-2]
	assert.Equal(t, events.EventSupervisorStop, stop.Type)
	assert.Equal(t, events.StopCancelled, stop.Data.Reason)
	assert.Equal(t, 2, stop.Data.Attempt)
}

func TestRealPidfileLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iperf.pid")
	engine := &sessiontest.Engine{
		ServerFunc: func(context.Context, *session.Session, int) error {
			assert.FileExists(t, path)
			return nil
		},
	}
	sv := New(engine, DefaultConfig())
	sv.SetPidFiles(pidfile.System{})

	s := newServerSession()
	s.PidFile = path
	s.OneOff = true

	require.NoError(t, sv.Run(context.Background(), s))
	assert.NoFileExists(t, path)
}

func TestEventSequence(t *testing.T) {
	bus := events.NewBus()
	var seen []events.Event
	bus.Handle(func(e events.Event) { seen = append(seen, e) })

	engine := &sessiontest.Engine{ServerResults: sessiontest.Failures(5)}
	sv := newTestSupervisor(engine, &fakePidFiles{})
	sv.SetEventBus(bus)

	_ = sv.Run(context.Background(), newServerSession())

	var types []events.EventType
	for _, e := range seen {
		types = append(types, e.Type)
	}
	assert.Equal(t, []events.EventType{
		events.EventSupervisorStart,
		events.EventPidfileCreated,
		events.EventServerAttempt,
		events.EventServerAttempt,
		events.EventServerAttempt,
		events.EventServerAttempt,
		events.EventServerAttempt,
		events.EventSupervisorStop,
		events.EventPidfileRemoved,
	}, types)

	stop := seen[len(seen)-2]
	assert.Equal(t, events.StopTooManyErrors, stop.Data.Reason)
	assert.Equal(t, 5, stop.Data.Attempt)
}
