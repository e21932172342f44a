package engine

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"golang.org/x/net/netutil"

	"iperf-harness/internal/logger"
	"iperf-harness/internal/session"
)

const (
	DefaultPort     = 5201
	DefaultDuration = 10 * time.Second

	blockSize = 128 * 1024
)

// Config はエンジンのネットワーク設定
type Config struct {
	BindAttempts uint          // ポートが解放されるまでのリトライ回数
	BindDelay    time.Duration // リトライ間隔
	DialTimeout  time.Duration
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		BindAttempts: 3,
		BindDelay:    200 * time.Millisecond,
		DialTimeout:  10 * time.Second,
	}
}

// state はセッションのうちエンジンが管理する部分
type state struct {
	listener net.Listener
	bytes    atomic.Int64
}

// Engine はTCPで session.Engine を実装する
type Engine struct {
	config Config
}

// New は新しいEngineを作成する
func New(config Config) *Engine {
	return &Engine{config: config}
}

var _ session.Engine = (*Engine)(nil)

func stateOf(s *session.Session) *state {
	st, ok := s.State.(*state)
	if !ok {
		st = &state{}
		s.State = st
	}
	return st
}

// Bytes は現在の試行で転送したバイト数を返す
func Bytes(s *session.Session) int64 {
	return stateOf(s).bytes.Load()
}

// NewSession implements session.Engine.
func (e *Engine) NewSession() (*session.Session, error) {
	return session.New(), nil
}

// ApplyDefaults implements session.Engine.
func (e *Engine) ApplyDefaults(s *session.Session) {
	s.Port = DefaultPort
	s.Duration = DefaultDuration
	s.State = &state{}
}

type options struct {
	server  bool
	client  string
	port    int
	seconds int
	daemon  bool
	oneOff  bool
	pidfile string
	help    bool
}

func newFlagSet(o *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("iperf3", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	fs.BoolVarP(&o.server, "server", "s", false, "run in server mode")
	fs.StringVarP(&o.client, "client", "c", "", "run in client mode, connecting to `host`")
	fs.IntVarP(&o.port, "port", "p", DefaultPort, "server port to listen on/connect to")
	fs.IntVarP(&o.seconds, "time", "t", int(DefaultDuration/time.Second), "time in seconds to transmit for")
	fs.BoolVarP(&o.daemon, "daemon", "D", false, "run the server as a daemon")
	fs.BoolVarP(&o.oneOff, "one-off", "1", false, "handle one client connection then exit")
	fs.StringVarP(&o.pidfile, "pidfile", "I", "", "write PID file")
	fs.BoolVarP(&o.help, "help", "h", false, "show this message and quit")
	return fs
}

// ParseArguments implements session.Engine.
func (e *Engine) ParseArguments(s *session.Session, args []string) error {
	var o options
	fs := newFlagSet(&o)
	if s.Port > 0 {
		o.port = s.Port
	}
	if s.Duration >= time.Second {
		o.seconds = int(s.Duration / time.Second)
	}
	if err := fs.Parse(args); err != nil {
		return errors.WithStack(err)
	}

	switch {
	case o.help:
		return errors.WithStack(pflag.ErrHelp)
	case fs.NArg() > 0:
		return errors.Errorf("unexpected argument %q", fs.Arg(0))
	case o.server && o.client != "":
		return errors.New("cannot be both server and client")
	case !o.server && (o.daemon || o.oneOff || o.pidfile != ""):
		return errors.New("some option you are trying to set is server only")
	case o.port < 1 || o.port > 65535:
		return errors.Errorf("port %d out of range", o.port)
	case o.seconds < 1:
		return errors.Errorf("test time %d must be positive", o.seconds)
	}

	switch {
	case o.server:
		s.Role = session.RoleServer
	case o.client != "":
		s.Role = session.RoleClient
		s.Host = o.client
	default:
		s.Role = session.RoleUnknown
	}
	s.Port = o.port
	s.Duration = time.Duration(o.seconds) * time.Second
	s.Daemon = o.daemon
	s.OneOff = o.oneOff
	s.PidFile = o.pidfile
	return nil
}

// listen はセッションごとに1回だけポートをバインドする
// 前の所有者がまだ閉じている途中の場合はリトライする
func (e *Engine) listen(ctx context.Context, s *session.Session) (net.Listener, error) {
	st := stateOf(s)
	if st.listener != nil {
		return st.listener, nil
	}

	addr := net.JoinHostPort("", strconv.Itoa(s.Port))
	var lc net.ListenConfig
	var l net.Listener
	err := retry.Do(
		func() error {
			var err error
			l, err = lc.Listen(ctx, "tcp", addr)
			return err
		},
		retry.Attempts(e.config.BindAttempts),
		retry.Delay(e.config.BindDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug(s.ID, "bind %s attempt %d failed: %v", addr, n+1, err)
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to start listener on %s", addr)
	}

	// 同時に1テストのみ
	st.listener = netutil.LimitListener(l, 1)
	logger.Info(s.ID, "Server listening on %d", s.Port)
	return st.listener, nil
}

// RunServer は接続を1つ受け付けて全て読み捨てる
func (e *Engine) RunServer(ctx context.Context, s *session.Session) error {
	l, err := e.listen(ctx, s)
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	conn, err := l.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "accept")
		}
		return errors.Wrap(err, "accept")
	}
	defer conn.Close()

	stopConn := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopConn()

	logger.Info(s.ID, "Accepted connection from %s", conn.RemoteAddr())

	started := time.Now()
	n, err := io.Copy(io.Discard, conn)
	stateOf(s).bytes.Add(n)
	if err != nil {
		return errors.Wrap(err, "receive")
	}

	logger.Info(s.ID, "received %d bytes in %v", n, time.Since(started).Round(time.Millisecond))
	return nil
}

// RunClient は接続してセッションの時間だけ送信する
func (e *Engine) RunClient(ctx context.Context, s *session.Session) error {
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	d := net.Dialer{Timeout: e.config.DialTimeout}

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "unable to connect to server %s", addr)
	}
	defer conn.Close()

	logger.Info(s.ID, "Connecting to host %s, port %d", s.Host, s.Port)

	deadline := time.Now().Add(s.Duration)
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return errors.Wrap(err, "set deadline")
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetWriteDeadline(time.Now()) })
	defer stop()

	buf := make([]byte, blockSize)
	st := stateOf(s)
	started := time.Now()
	for {
		n, err := conn.Write(buf)
		st.bytes.Add(int64(n))
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "send")
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			break
		}
		return errors.Wrap(err, "send")
	}

	logger.Info(s.ID, "sent %d bytes in %v", st.bytes.Load(), time.Since(started).Round(time.Millisecond))
	return nil
}

// Reset implements session.Engine.
// リスナーは次の試行のために残す
func (e *Engine) Reset(s *session.Session) {
	stateOf(s).bytes.Store(0)
}

// Destroy implements session.Engine.
func (e *Engine) Destroy(s *session.Session) {
	st := stateOf(s)
	if st.listener != nil {
		_ = st.listener.Close()
		st.listener = nil
	}
}

// Usage implements session.Engine.
func (e *Engine) Usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: iperf3 [-s|-c host] [options]")
	_, _ = fmt.Fprintln(w, "Try `iperf3 --help' for more information.")
}

// UsageLong implements session.Engine.
func (e *Engine) UsageLong(w io.Writer) {
	var o options
	_, _ = fmt.Fprintln(w, "Usage: iperf3 [-s|-c host] [options]")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprint(w, newFlagSet(&o).FlagUsages())
}
