package dispatch

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iperf-harness/internal/events"
	"iperf-harness/internal/session"
	"iperf-harness/internal/session/sessiontest"
)

type fakeServer struct {
	err   error
	calls int
}

func (f *fakeServer) Run(context.Context, *session.Session) error {
	f.calls++
	return f.err
}

func newSession(role session.Role) *session.Session {
	s := session.New()
	s.Role = role
	return s
}

func TestDispatchServer(t *testing.T) {
	engine := &sessiontest.Engine{}
	server := &fakeServer{err: errors.New("loop gave up")}
	d := New(engine, server)

	err := d.Dispatch(context.Background(), newSession(session.RoleServer))

	assert.EqualError(t, err, "loop gave up", "server result is returned unchanged")
	assert.Equal(t, 1, server.calls)
	assert.Equal(t, 0, engine.ClientRuns())
}

func TestDispatchClientSuccess(t *testing.T) {
	engine := &sessiontest.Engine{}
	server := &fakeServer{}
	d := New(engine, server)

	require.NoError(t, d.Dispatch(context.Background(), newSession(session.RoleClient)))

	assert.Equal(t, 1, engine.ClientRuns())
	assert.Equal(t, 0, server.calls)
}

func TestDispatchClientFailureIsNotRetried(t *testing.T) {
	engine := &sessiontest.Engine{ClientResults: sessiontest.Failures(3)}
	d := New(engine, &fakeServer{})

	bus := events.NewBus()
	var seen []events.Event
	bus.Handle(func(e events.Event) { seen = append(seen, e) })
	d.SetEventBus(bus)

	err := d.Dispatch(context.Background(), newSession(session.RoleClient))
	require.Error(t, err)

	assert.Equal(t, session.KindEngineRun, session.KindOf(err))
	assert.Equal(t, 1, engine.ClientRuns())
	require.Len(t, seen, 1)
	assert.Equal(t, events.EventClientAttempt, seen[0].Type)
	assert.False(t, seen[0].Data.Success)
}

func TestDispatchUnknownRolePrintsUsage(t *testing.T) {
	engine := &sessiontest.Engine{}
	server := &fakeServer{}
	d := New(engine, server)
	buf := &bytes.Buffer{}
	d.SetUsageOutput(buf)

	require.NoError(t, d.Dispatch(context.Background(), newSession(session.RoleUnknown)))

	assert.Contains(t, buf.String(), "Usage:")
	assert.True(t, engine.Called("usage"))
	assert.Equal(t, 0, server.calls)
	assert.Equal(t, 0, engine.ClientRuns())
	assert.Equal(t, 0, engine.ServerRuns())
}
