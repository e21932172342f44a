// Package pidfile writes and removes the server's PID file.
//
// A PID file that names a live process other than the caller is treated as
// a conflict. One that names a dead process is stale and gets overwritten.
package pidfile

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ErrRunning はPIDファイルが生存中のプロセスのものである場合のエラー
var ErrRunning = errors.New("another server is already running")

// Create は path に現在のプロセスIDを書き込む
// path が空なら何もしない
func Create(path string) error {
	if path == "" {
		return nil
	}

	// 読めない・解析できない内容は上書きする
	if pid, err := Read(path); err == nil && pid != os.Getpid() && alive(pid) {
		return errors.Wrapf(ErrRunning, "pid %d in %s", pid, path)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

// Remove はPIDファイルを削除する
// path が空、またはファイルが無い場合はエラーにしない
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove %s", path)
	}
	return nil
}

// Read は path に記録されたPIDを返す
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s", path)
	}
	return pid, nil
}

// alive はシグナル0でプロセスの生存を確認する
// EPERM は他ユーザーのプロセスが存在することを意味する
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// System は実ファイルシステム上のPIDファイル操作
type System struct{}

// Create calls the package-level Create.
func (System) Create(path string) error { return Create(path) }

// Remove calls the package-level Remove.
func (System) Remove(path string) error { return Remove(path) }
