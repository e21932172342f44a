package harness

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ExitPolicy はイテレーションの結果をプロセスの終了コードにどう反映するかを表す
type ExitPolicy string

const (
	// ExitIgnore は常に0で終了する
	ExitIgnore ExitPolicy = "ignore"
	// ExitLast は最後のイテレーションの終了コードを使う
	ExitLast ExitPolicy = "last"
	// ExitAny はいずれかが失敗していれば1で終了する
	ExitAny ExitPolicy = "any"
)

// ParseExitPolicy はポリシー名を検証する（空は ExitIgnore）
func ParseExitPolicy(name string) (ExitPolicy, error) {
	switch p := ExitPolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return ExitIgnore, nil
	case ExitIgnore, ExitLast, ExitAny:
		return p, nil
	default:
		return "", errors.Errorf("unknown exit policy: %s", name)
	}
}

// Config はHarnessの設定
type Config struct {
	Iterations        int           // サーバーフラグが無い場合の回数
	Pace              time.Duration // 各イテレーション後の待機時間
	SkipTrailingPause bool          // 最後のイテレーション後は待機しない
	ServerFlags       []string      // いずれかがあれば1回だけ実行する
	PortFlags         []string      // 最初に見つかったフラグの値を書き換える
	ExitPolicy        ExitPolicy
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Iterations:  5,
		Pace:        2 * time.Second,
		ServerFlags: []string{"-s", "--server"},
		PortFlags:   []string{"-p", "--port"},
		ExitPolicy:  ExitIgnore,
	}
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if c.Iterations < 1 {
		return errors.New("iterations must be at least 1")
	}
	if c.Pace < 0 {
		return errors.New("pace must be non-negative")
	}
	if _, err := ParseExitPolicy(string(c.ExitPolicy)); err != nil {
		return err
	}
	return nil
}
