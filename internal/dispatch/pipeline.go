package dispatch

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"iperf-harness/internal/logger"
	"iperf-harness/internal/session"
)

// 1回の実行の終了コード
const (
	ExitOK      = 0
	ExitFailure = 1
)

// Pipeline は Bootstrap → Dispatch → Destroy の1回の実行を表す
type Pipeline struct {
	engine     session.Engine
	dispatcher *Dispatcher
	stderr     io.Writer
}

// NewPipeline は新しいPipelineを作成する
func NewPipeline(engine session.Engine, dispatcher *Dispatcher) *Pipeline {
	return &Pipeline{
		engine:     engine,
		dispatcher: dispatcher,
		stderr:     os.Stderr,
	}
}

// SetErrorOutput は引数エラー時の詳細な使い方の出力先を変更する
func (p *Pipeline) SetErrorOutput(w io.Writer) {
	p.stderr = w
}

// Invoke は args からセッションを作成して実行し、最後に破棄する
// Bootstrap か実行が失敗した場合は ExitFailure を返す
func (p *Pipeline) Invoke(ctx context.Context, args []string) int {
	s, err := session.Bootstrap(p.engine, args)
	if err != nil {
		switch session.KindOf(err) {
		case session.KindArgument:
			logger.Error("", "parameter error - %v", detail(err))
			_, _ = fmt.Fprintln(p.stderr)
			p.engine.UsageLong(p.stderr)
		default:
			logger.Error("", "create new test error - %v", detail(err))
		}
		return ExitFailure
	}
	defer p.engine.Destroy(s)

	logger.Debug(s.ID, "dispatching %s session", s.Role)

	// 診断メッセージは各ランナーが出力済み
	if err := p.dispatcher.Dispatch(ctx, s); err != nil {
		return ExitFailure
	}
	return ExitOK
}

// detail はセッションエラーの種別を除いたエンジン側のメッセージを返す
func detail(err error) error {
	var se *session.Error
	if errors.As(err, &se) && se.Err != nil {
		return se.Err
	}
	return err
}
