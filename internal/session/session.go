package session

import (
	"time"

	"github.com/google/uuid"
)

// Role はクライアント／サーバーの役割を表す
type Role int

const (
	RoleUnknown Role = iota
	RoleClient
	RoleServer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "unknown"
	}
}

// Session は1回のテストの設定を保持する
// 1イテレーションの間だけ存在し、共有されない
type Session struct {
	ID   string
	Role Role

	Daemon  bool   // サーバー実行前にデーモン化する
	OneOff  bool   // 1回だけ実行して終了する
	PidFile string // 空ならPIDファイルを作らない

	Host     string
	Port     int
	Duration time.Duration

	// State はエンジンが管理する
	State any
}

// New は新しいIDを持つ空のセッションを返す
func New() *Session {
	return &Session{
		ID:   uuid.NewString(),
		Role: RoleUnknown,
	}
}
