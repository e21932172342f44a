package supervisor

import (
	"context"
	"sync"

	"iperf-harness/internal/events"
	"iperf-harness/internal/logger"
	"iperf-harness/internal/session"

	"github.com/pkg/errors"
)

// Config はSupervisorの設定
type Config struct {
	MaxConsecutiveFailures int // 連続失敗がこの回数に達するとループを抜ける
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		MaxConsecutiveFailures: 5,
	}
}

// Daemonizer はプロセスを制御端末から切り離す
type Daemonizer interface {
	Daemonize() error
}

// PidFiles はPIDファイルの作成と削除を行う
type PidFiles interface {
	Create(path string) error
	Remove(path string) error
}

// Stats は全てのRun呼び出しを通じた試行結果の統計
type Stats struct {
	Attempts       uint64
	Successes      uint64
	Failures       uint64
	Cancelled      uint64
	MaxConsecutive int
}

// Supervisor はサーバーモードのセッションのライフサイクルを管理する
type Supervisor struct {
	config   Config
	engine   session.Engine
	daemon   Daemonizer
	pidfiles PidFiles
	eventBus *events.Bus

	mu    sync.RWMutex
	stats Stats
}

// New は新しいSupervisorを作成する
// デーモン化やPIDファイルが必要なセッションの前に SetDaemonizer と SetPidFiles を設定すること
func New(engine session.Engine, config Config) *Supervisor {
	if config.MaxConsecutiveFailures <= 0 {
		config.MaxConsecutiveFailures = DefaultConfig().MaxConsecutiveFailures
	}
	return &Supervisor{
		config: config,
		engine: engine,
	}
}

// SetDaemonizer はデーモン化の実装を設定する
func (sv *Supervisor) SetDaemonizer(d Daemonizer) {
	sv.daemon = d
}

// SetPidFiles はPIDファイルの実装を設定する
func (sv *Supervisor) SetPidFiles(p PidFiles) {
	sv.pidfiles = p
}

// SetEventBus はイベントバスを設定する
func (sv *Supervisor) SetEventBus(bus *events.Bus) {
	sv.eventBus = bus
}

// Run はデーモン化、PIDファイル作成、実行ループ、PIDファイル削除の順にセッションを処理する
// セットアップ失敗時は KindDaemon / KindPidfile のエラーを返す
// ループの終了（連続失敗の上限、one-off、キャンセル）はいずれも nil を返す
func (sv *Supervisor) Run(ctx context.Context, s *session.Session) error {
	sv.eventBus.Publish(events.NewSupervisorStartEvent(s.ID))

	if s.Daemon {
		if err := sv.daemonize(); err != nil {
			err = session.Errorf(session.KindDaemon, "daemonize", err)
			logger.Error(s.ID, "error - %v", err)
			return err
		}
	}

	if err := sv.createPidfile(s); err != nil {
		err = session.Errorf(session.KindPidfile, "create pidfile", err)
		logger.Error(s.ID, "error - %v", err)
		return err
	}
	defer sv.removePidfile(s)

	sv.loop(ctx, s)
	return nil
}

func (sv *Supervisor) loop(ctx context.Context, s *session.Session) {
	consecutive := 0
	attempts := 0

	for {
		if ctx.Err() != nil {
			logger.Info(s.ID, "server cancelled after %d attempts", attempts)
			sv.eventBus.Publish(events.NewSupervisorStopEvent(s.ID, events.StopCancelled, attempts))
			return
		}

		attempts++
		err := sv.engine.RunServer(ctx, s)

		// 実行中のキャンセルは失敗として数えない
		if err != nil && ctx.Err() != nil {
			logger.Info(s.ID, "server cancelled during attempt %d", attempts)
			sv.recordCancelled()
			sv.eventBus.Publish(events.NewSupervisorStopEvent(s.ID, events.StopCancelled, attempts))
			return
		}

		if err != nil {
			consecutive++
			logger.Error(s.ID, "error - %v", err)
		} else {
			consecutive = 0
		}
		sv.record(err, consecutive)
		sv.eventBus.Publish(events.NewServerAttemptEvent(s.ID, attempts, consecutive, err))

		if consecutive >= sv.config.MaxConsecutiveFailures {
			logger.Error(s.ID, "too many errors, exiting")
			sv.eventBus.Publish(events.NewSupervisorStopEvent(s.ID, events.StopTooManyErrors, attempts))
			return
		}

		sv.engine.Reset(s)

		if s.OneOff {
			sv.eventBus.Publish(events.NewSupervisorStopEvent(s.ID, events.StopOneOff, attempts))
			return
		}
	}
}

func (sv *Supervisor) daemonize() error {
	if sv.daemon == nil {
		return errors.New("no daemonizer configured")
	}
	return sv.daemon.Daemonize()
}

func (sv *Supervisor) createPidfile(s *session.Session) error {
	if s.PidFile == "" {
		return nil
	}
	if sv.pidfiles == nil {
		return errors.New("no pidfile backend configured")
	}
	if err := sv.pidfiles.Create(s.PidFile); err != nil {
		return err
	}
	logger.Debug(s.ID, "wrote pidfile %s", s.PidFile)
	sv.eventBus.Publish(events.NewPidfileEvent(events.EventPidfileCreated, s.ID, s.PidFile))
	return nil
}

// removePidfile の失敗はログに残すだけ
func (sv *Supervisor) removePidfile(s *session.Session) {
	if s.PidFile == "" {
		return
	}
	if err := sv.pidfiles.Remove(s.PidFile); err != nil {
		logger.Warn(s.ID, "failed to remove pidfile: %v", err)
		return
	}
	sv.eventBus.Publish(events.NewPidfileEvent(events.EventPidfileRemoved, s.ID, s.PidFile))
}

func (sv *Supervisor) record(err error, consecutive int) {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	sv.stats.Attempts++
	if err != nil {
		sv.stats.Failures++
	} else {
		sv.stats.Successes++
	}
	if consecutive > sv.stats.MaxConsecutive {
		sv.stats.MaxConsecutive = consecutive
	}
}

func (sv *Supervisor) recordCancelled() {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	sv.stats.Attempts++
	sv.stats.Cancelled++
}

// Stats は統計のスナップショットを返す
func (sv *Supervisor) Stats() Stats {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	return sv.stats
}
