package session

import (
	"github.com/pkg/errors"
)

// Bootstrap はセッションを作成し、デフォルト値を設定して引数を解析する
// 引数エラーの場合はセッションを破棄してから返す
func Bootstrap(engine Engine, args []string) (*Session, error) {
	s, err := engine.NewSession()
	if err != nil {
		return nil, Errorf(KindAllocation, "create new test", err)
	}
	if s == nil {
		return nil, Errorf(KindAllocation, "create new test", errors.New("engine returned no session"))
	}

	engine.ApplyDefaults(s)

	if err := engine.ParseArguments(s, args); err != nil {
		engine.Destroy(s)
		return nil, Errorf(KindArgument, "parse arguments", err)
	}

	return s, nil
}
