package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"iperf-harness/internal/events"
	"iperf-harness/internal/logger"
)

// Invoker はテストを1回実行して終了コードを返す
type Invoker interface {
	Invoke(ctx context.Context, args []string) int
}

// Iteration は1回分の実行記録
type Iteration struct {
	Index    int
	Args     []string
	ExitCode int
	Duration time.Duration
}

// Result はHarness実行の結果
type Result struct {
	StartTime  time.Time
	EndTime    time.Time
	Planned    int
	Iterations []Iteration
	Cancelled  bool
}

// Harness はテストを繰り返し実行する
type Harness struct {
	config   Config
	invoker  Invoker
	eventBus *events.Bus
	stdout   io.Writer

	clock func() unix.Timespec
	sleep func(ctx context.Context, d time.Duration) error
}

// New は新しいHarnessを作成する（診断出力は stdout）
func New(invoker Invoker, config Config) *Harness {
	return &Harness{
		config:  config,
		invoker: invoker,
		stdout:  os.Stdout,
		clock:   monotonic,
		sleep:   sleepContext,
	}
}

// SetEventBus はイベントバスを設定する
func (h *Harness) SetEventBus(bus *events.Bus) {
	h.eventBus = bus
}

// SetOutput は開始・終了・ポートの出力先を変更する
func (h *Harness) SetOutput(w io.Writer) {
	h.stdout = w
}

// IterationCount は args に対するイテレーション数を返す
func (h *Harness) IterationCount(args []string) int {
	if hasFlag(args, h.config.ServerFlags) {
		return 1
	}
	return h.config.Iterations
}

// Run はイテレーションを実行する
// args はプログラム名を含まず、変更されない
func (h *Harness) Run(ctx context.Context, args []string) *Result {
	h.stamp("start")
	_, _ = fmt.Fprintf(h.stdout, "ARGC: %d\n", len(args)+1)

	result := &Result{
		StartTime: time.Now(),
		Planned:   h.IterationCount(args),
	}
	logger.Debug("harness", "running %d iterations", result.Planned)

	for i := 0; i < result.Planned; i++ {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		iterArgs := h.prepare(args, i)

		h.eventBus.Publish(events.NewIterationStartEvent(i))
		started := time.Now()
		code := h.invoker.Invoke(ctx, iterArgs)
		result.Iterations = append(result.Iterations, Iteration{
			Index:    i,
			Args:     iterArgs,
			ExitCode: code,
			Duration: time.Since(started),
		})
		h.eventBus.Publish(events.NewIterationFinishEvent(i, code))
		if code != 0 {
			logger.Warn("harness", "iteration %d exited with %d", i, code)
		}

		last := i == result.Planned-1
		if last && h.config.SkipTrailingPause {
			continue
		}
		if err := h.sleep(ctx, h.config.Pace); err != nil {
			result.Cancelled = true
			break
		}
	}

	result.EndTime = time.Now()
	h.stamp("exit")
	return result
}

// prepare はイテレーション i の引数を作り、ポートを書き換えた場合はその旨を出力する
func (h *Harness) prepare(args []string, i int) []string {
	iterArgs, rot, err := argsForIteration(args, h.config.PortFlags, i)
	if err != nil {
		logger.Warn("harness", "not rotating port: %v", err)
		return iterArgs
	}
	if rot != nil {
		_, _ = fmt.Fprintf(h.stdout, "Port is: %d\n", rot.oldPort)
		_, _ = fmt.Fprintf(h.stdout, "Port is now: %d\n", rot.newPort)
		h.eventBus.Publish(events.NewPortRotatedEvent(i, rot.oldPort, rot.newPort))
	}
	return iterArgs
}

func (h *Harness) stamp(what string) {
	ts := h.clock()
	_, _ = fmt.Fprintf(h.stdout, "iperf %s %d.%09d\n", what, ts.Sec, ts.Nsec)
}

// ExitCode はポリシーに従って終了コードを返す
func (r *Result) ExitCode(policy ExitPolicy) int {
	switch policy {
	case ExitLast:
		if len(r.Iterations) == 0 {
			return 0
		}
		return r.Iterations[len(r.Iterations)-1].ExitCode
	case ExitAny:
		for _, it := range r.Iterations {
			if it.ExitCode != 0 {
				return 1
			}
		}
		return 0
	default:
		return 0
	}
}

// Failed は失敗したイテレーション数を返す
func (r *Result) Failed() int {
	n := 0
	for _, it := range r.Iterations {
		if it.ExitCode != 0 {
			n++
		}
	}
	return n
}

// Report は結果のレポートを生成する
func (r *Result) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, `
================================================================================
                              HARNESS REPORT
================================================================================

  Start Time:     %s
  End Time:       %s
  Duration:       %v
  Iterations:     %d of %d
  Failed:         %d
  Cancelled:      %v

ITERATIONS
----------
`,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Sub(r.StartTime).Round(time.Millisecond),
		len(r.Iterations), r.Planned,
		r.Failed(),
		r.Cancelled,
	)

	for _, it := range r.Iterations {
		fmt.Fprintf(&b, "  #%-3d exit=%d  %-10v %s\n",
			it.Index, it.ExitCode, it.Duration.Round(time.Millisecond), strings.Join(it.Args, " "))
	}

	b.WriteString("\n================================================================================")
	return b.String()
}
