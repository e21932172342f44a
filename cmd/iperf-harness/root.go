package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"iperf-harness/internal/config"
	"iperf-harness/internal/daemon"
	"iperf-harness/internal/dispatch"
	"iperf-harness/internal/engine"
	"iperf-harness/internal/events"
	"iperf-harness/internal/harness"
	"iperf-harness/internal/logger"
	"iperf-harness/internal/metrics"
	"iperf-harness/internal/pidfile"
	"iperf-harness/internal/supervisor"
)

var version = "dev"

const configFlag = "--harness-config"

// splitHarnessArgs は先頭の "--harness-config path"（または "--harness-config=path"）を取り除く
// 残りは全てエンジンの引数
func splitHarnessArgs(args []string) (string, []string) {
	if len(args) == 0 {
		return "", args
	}
	if v, ok := strings.CutPrefix(args[0], configFlag+"="); ok {
		return v, args[1:]
	}
	if args[0] == configFlag && len(args) > 1 {
		return args[1], args[2:]
	}
	return "", args
}

// newDetacher はデーモン化用の Detacher を作成する
// 子プロセスは "/" で起動するため、解決済みの設定ファイルパスを明示的に渡す
func newDetacher(configPath string, args []string) *daemon.Detacher {
	childArgs := make([]string, 0, len(args)+2)
	if configPath != "" {
		childArgs = append(childArgs, configFlag, configPath)
	}
	return &daemon.Detacher{Args: append(childArgs, args...)}
}

func rootCmd(exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "iperf-harness [--harness-config file] [iperf options]",
		Short: "Run an iperf-style throughput test repeatedly, rotating the port between runs.",
		Long: `iperf-harness runs the same test several times in a row. Client runs
rotate the -p value by one each iteration; server runs (-s) execute once and
retry internally. Harness settings come from --harness-config or the
` + config.EnvConfigPath + ` environment variable.`,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := run(cmd.Context(), args)
			*exitCode = code
			return err
		},
	}
}

func execute(args []string) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			logger.Warn("", "interrupt received, stopping")
			cancel()
		case <-ctx.Done():
		}
	}()

	exitCode := 0
	cmd := rootCmd(&exitCode)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		logger.Error("", "%v", err)
		return 1
	}
	return exitCode
}

func run(ctx context.Context, rawArgs []string) (int, error) {
	configPath, args := splitHarnessArgs(rawArgs)
	configPath, err := config.Resolve(configPath)
	if err != nil {
		return 1, err
	}

	fileConfig, err := config.Load(configPath)
	if err != nil {
		return 1, err
	}
	level, err := fileConfig.Level()
	if err != nil {
		return 1, err
	}
	logger.Default.SetLevel(level)
	logger.Debug("", "iperf-harness %s", version)

	harnessConfig, err := fileConfig.ToHarnessConfig()
	if err != nil {
		return 1, err
	}

	bus := events.NewBus()

	collector := metrics.New()
	bus.Handle(collector.Observe)
	if addr := fileConfig.Metrics.Listen; addr != "" {
		go func() {
			if err := collector.Serve(ctx, addr); err != nil {
				logger.Warn("metrics", "%v", err)
			}
		}()
	}

	eng := engine.New(engine.DefaultConfig())

	sup := supervisor.New(eng, fileConfig.ToSupervisorConfig())
	sup.SetDaemonizer(newDetacher(configPath, args))
	sup.SetPidFiles(pidfile.System{})
	sup.SetEventBus(bus)

	dispatcher := dispatch.New(eng, sup)
	dispatcher.SetEventBus(bus)
	pipeline := dispatch.NewPipeline(eng, dispatcher)

	h := harness.New(pipeline, harnessConfig)
	h.SetEventBus(bus)

	result := h.Run(ctx, args)
	logger.Debug("harness", "%s", result.Report())

	if stats := sup.Stats(); stats.Attempts > 0 {
		logger.Debug("supervisor", "attempts=%d successes=%d failures=%d cancelled=%d",
			stats.Attempts, stats.Successes, stats.Failures, stats.Cancelled)
	}

	return result.ExitCode(harnessConfig.ExitPolicy), nil
}
