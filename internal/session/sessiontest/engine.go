// Package sessiontest provides a scripted session.Engine for tests.
package sessiontest

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"iperf-harness/internal/session"
)

// ErrScripted is the default failure returned by scripted runs.
var ErrScripted = errors.New("scripted failure")

// Engine records every call and replays scripted results. Server and client
// results are consumed in order; once exhausted, runs succeed.
type Engine struct {
	mu sync.Mutex

	NewSessionErr error
	ServerResults []error
	ClientResults []error

	// ServerFunc, when set, replaces ServerResults. attempt starts at 1.
	ServerFunc func(ctx context.Context, s *session.Session, attempt int) error

	Calls       []string
	ParsedArgs  [][]string
	ClientPorts []int
	serverRuns  int
	clientRuns  int
	resets      int
	destroys    int
}

// NewSession implements session.Engine.
func (e *Engine) NewSession() (*session.Session, error) {
	e.record("new")
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	return session.New(), nil
}

// ApplyDefaults implements session.Engine.
func (e *Engine) ApplyDefaults(s *session.Session) {
	e.record("defaults")
	s.Port = 5201
}

// ParseArguments understands -s, -c host, -p port, -1, -D and -I path.
func (e *Engine) ParseArguments(s *session.Session, args []string) error {
	e.record("parse")
	e.mu.Lock()
	e.ParsedArgs = append(e.ParsedArgs, append([]string(nil), args...))
	e.mu.Unlock()

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-s":
			s.Role = session.RoleServer
		case "-1":
			s.OneOff = true
		case "-D":
			s.Daemon = true
		case "-c", "-p", "-I":
			if i+1 >= len(args) {
				return errors.Errorf("option %s requires an argument", args[i])
			}
			v := args[i+1]
			i++
			switch args[i-1] {
			case "-c":
				s.Role = session.RoleClient
				s.Host = v
			case "-I":
				s.PidFile = v
			case "-p":
				port, err := strconv.Atoi(v)
				if err != nil {
					return errors.Wrapf(err, "bad port %q", v)
				}
				s.Port = port
			}
		default:
			return errors.Errorf("unrecognized option %s", args[i])
		}
	}
	return nil
}

// RunServer implements session.Engine.
func (e *Engine) RunServer(ctx context.Context, s *session.Session) error {
	e.record("server")
	e.mu.Lock()
	e.serverRuns++
	attempt := e.serverRuns
	fn := e.ServerFunc
	var result error
	if fn == nil && len(e.ServerResults) > 0 {
		result = e.ServerResults[0]
		e.ServerResults = e.ServerResults[1:]
	}
	e.mu.Unlock()

	if fn != nil {
		return fn(ctx, s, attempt)
	}
	return result
}

// RunClient implements session.Engine.
func (e *Engine) RunClient(_ context.Context, s *session.Session) error {
	e.record("client")
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clientRuns++
	e.ClientPorts = append(e.ClientPorts, s.Port)
	if len(e.ClientResults) == 0 {
		return nil
	}
	result := e.ClientResults[0]
	e.ClientResults = e.ClientResults[1:]
	return result
}

// Reset implements session.Engine.
func (e *Engine) Reset(*session.Session) {
	e.record("reset")
	e.mu.Lock()
	e.resets++
	e.mu.Unlock()
}

// Destroy implements session.Engine.
func (e *Engine) Destroy(*session.Session) {
	e.record("destroy")
	e.mu.Lock()
	e.destroys++
	e.mu.Unlock()
}

// Usage implements session.Engine.
func (e *Engine) Usage(w io.Writer) {
	e.record("usage")
	_, _ = fmt.Fprintln(w, "Usage: iperf [-s|-c host] [options]")
}

// UsageLong implements session.Engine.
func (e *Engine) UsageLong(w io.Writer) {
	e.record("usage-long")
	_, _ = fmt.Fprintln(w, "Usage: iperf [-s|-c host] [options]\n  -p port")
}

// ServerRuns returns the number of RunServer calls.
func (e *Engine) ServerRuns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.serverRuns
}

// ClientRuns returns the number of RunClient calls.
func (e *Engine) ClientRuns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clientRuns
}

// Resets returns the number of Reset calls.
func (e *Engine) Resets() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resets
}

// Destroys returns the number of Destroy calls.
func (e *Engine) Destroys() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroys
}

// Called reports whether op was ever recorded.
func (e *Engine) Called(op string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.Calls {
		if c == op {
			return true
		}
	}
	return false
}

// Failures returns n copies of ErrScripted.
func Failures(n int) []error {
	out := make([]error, n)
	for i := range out {
		out[i] = ErrScripted
	}
	return out
}

func (e *Engine) record(op string) {
	e.mu.Lock()
	e.Calls = append(e.Calls, op)
	e.mu.Unlock()
}
