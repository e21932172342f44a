package session

import (
	"context"
	"io"
)

// Engine は計測とプロトコル処理を担当する
// 全てのメソッドはブロックする
type Engine interface {
	// NewSession はセッションを作成する
	NewSession() (*Session, error)
	// ApplyDefaults はデフォルト値を設定する
	ApplyDefaults(s *Session)
	// ParseArguments は引数（プログラム名を除く）を s に解析する
	ParseArguments(s *Session, args []string) error
	// RunServer はサーバーとしてテストを1回実行する
	RunServer(ctx context.Context, s *Session) error
	// RunClient はクライアントとしてテストを1回実行する
	RunClient(ctx context.Context, s *Session) error
	// Reset は試行ごとの状態をクリアする
	Reset(s *Session)
	// Destroy は s が保持するリソースを解放する
	Destroy(s *Session)
	// Usage は短い使い方を出力する
	Usage(w io.Writer)
	// UsageLong は詳細な使い方を出力する
	UsageLong(w io.Writer)
}
