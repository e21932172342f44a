package session

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind はエラーの種別
type Kind int

const (
	KindNone Kind = iota
	KindAllocation
	KindArgument
	KindDaemon
	KindPidfile
	KindEngineRun
)

func (k Kind) String() string {
	switch k {
	case KindAllocation:
		return "allocation error"
	case KindArgument:
		return "parameter error"
	case KindDaemon:
		return "unable to become a daemon"
	case KindPidfile:
		return "unable to write PID file"
	case KindEngineRun:
		return "test run failed"
	default:
		return "no error"
	}
}

// Error は種別と発生した操作を持つエラー
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf は err を種別と操作名でラップする
func Errorf(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf はエラーチェーンで最も外側の *Error の種別を返す
// 見つからなければ KindNone
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}
