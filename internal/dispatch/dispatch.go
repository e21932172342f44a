package dispatch

import (
	"context"
	"io"
	"os"

	"iperf-harness/internal/events"
	"iperf-harness/internal/logger"
	"iperf-harness/internal/session"
)

// ServerRunner はサーバーロールのセッションを実行する
type ServerRunner interface {
	Run(ctx context.Context, s *session.Session) error
}

// Dispatcher はロールに応じてセッションを振り分ける
type Dispatcher struct {
	engine   session.Engine
	server   ServerRunner
	eventBus *events.Bus
	usage    io.Writer
}

// New は新しいDispatcherを作成する
// ロール未指定時の使い方は stderr に出力する
func New(engine session.Engine, server ServerRunner) *Dispatcher {
	return &Dispatcher{
		engine: engine,
		server: server,
		usage:  os.Stderr,
	}
}

// SetEventBus はイベントバスを設定する
func (d *Dispatcher) SetEventBus(bus *events.Bus) {
	d.eventBus = bus
}

// SetUsageOutput は使い方の出力先を変更する
func (d *Dispatcher) SetUsageOutput(w io.Writer) {
	d.usage = w
}

// Dispatch はロールに応じて s を実行し、ランナーの結果をそのまま返す
func (d *Dispatcher) Dispatch(ctx context.Context, s *session.Session) error {
	switch s.Role {
	case session.RoleServer:
		return d.server.Run(ctx, s)
	case session.RoleClient:
		return d.runClient(ctx, s)
	default:
		return d.unknownRole(s)
	}
}

// runClient はクライアントを1回だけ実行する（リトライしない）
func (d *Dispatcher) runClient(ctx context.Context, s *session.Session) error {
	err := d.engine.RunClient(ctx, s)
	d.eventBus.Publish(events.NewClientAttemptEvent(s.ID, err))
	if err != nil {
		err = session.Errorf(session.KindEngineRun, "run client", err)
		logger.Error(s.ID, "error - %v", err)
		return err
	}
	return nil
}

// unknownRole は使い方を表示するだけ
func (d *Dispatcher) unknownRole(s *session.Session) error {
	logger.Debug(s.ID, "no role selected")
	d.engine.Usage(d.usage)
	return nil
}
