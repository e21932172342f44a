// Package daemon detaches the server from its controlling terminal.
//
// Go cannot fork a running runtime, so detaching re-executes the binary in a
// new session with stdio on /dev/null and the working directory at "/". The
// child is marked through the environment; when it reaches Daemonize it
// returns immediately and carries on serving. The parent exits with status 0.
package daemon

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
)

// EnvMarker はデーモン化した子プロセスの環境変数に設定される
const EnvMarker = "IPERF_HARNESS_DAEMONIZED"

// Detacher は実行中のバイナリをデーモンとして再実行する
type Detacher struct {
	// Args は子プロセスの引数（nil なら os.Args[1:]）
	Args []string
	// Exit は親プロセスを終了する（nil なら os.Exit）
	Exit func(code int)

	start func(cmd *exec.Cmd) error
}

// IsChild はデーモン化済みの子プロセスかどうかを返す
func IsChild() bool {
	return os.Getenv(EnvMarker) == "1"
}

// Daemonize はプロセスをデーモン化する
// 親プロセスでは成功時に戻らない
func (d *Detacher) Daemonize() error {
	if IsChild() {
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "locate executable")
	}

	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return errors.Wrap(err, "open "+os.DevNull)
	}
	defer devnull.Close()

	args := d.Args
	if args == nil {
		args = os.Args[1:]
	}

	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), EnvMarker+"=1")
	cmd.Dir = "/"
	cmd.Stdin = devnull
	cmd.Stdout = devnull
	cmd.Stderr = devnull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	start := d.start
	if start == nil {
		start = (*exec.Cmd).Start
	}
	if err := start(cmd); err != nil {
		return errors.Wrap(err, "start detached child")
	}
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}

	exit := d.Exit
	if exit == nil {
		exit = os.Exit
	}
	exit(0)
	return nil
}
