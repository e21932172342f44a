package logger

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Level はログレベルを表す
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) logrus() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLevel は "debug" や "WARN" のようなレベル名をLevelに変換する
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.Errorf("unknown log level: %s", name)
	}
}

// Logger はlogrusのロガーをラップし、全てのエントリにコンポーネント名を付ける
type Logger struct {
	entry *logrus.Logger
}

// Default はデフォルトのロガー（stderr、INFOレベル）
var Default = New(os.Stderr, LevelInfo)

// New は out にテキスト形式で出力するロガーを作成する
func New(out io.Writer, minLevel Level) *Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(minLevel.logrus())
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	return &Logger{entry: l}
}

// SetLevel は最小ログレベルを変更する
func (l *Logger) SetLevel(level Level) {
	l.entry.SetLevel(level.logrus())
}

func (l *Logger) log(level Level, component string, format string, args ...any) {
	var e *logrus.Entry
	if component != "" {
		e = l.entry.WithField("component", component)
	} else {
		e = logrus.NewEntry(l.entry)
	}
	e.Logf(level.logrus(), format, args...)
}

// Debug はDEBUGレベルでログを出力する
func (l *Logger) Debug(component string, format string, args ...any) {
	l.log(LevelDebug, component, format, args...)
}

// Info はINFOレベルでログを出力する
func (l *Logger) Info(component string, format string, args ...any) {
	l.log(LevelInfo, component, format, args...)
}

// Warn はWARNレベルでログを出力する
func (l *Logger) Warn(component string, format string, args ...any) {
	l.log(LevelWarn, component, format, args...)
}

// Error はERRORレベルでログを出力する
func (l *Logger) Error(component string, format string, args ...any) {
	l.log(LevelError, component, format, args...)
}

// パッケージレベルの関数（デフォルトロガーを使用）

// Debug はデフォルトロガーでDEBUGログを出力する
func Debug(component string, format string, args ...any) {
	Default.Debug(component, format, args...)
}

// Info はデフォルトロガーでINFOログを出力する
func Info(component string, format string, args ...any) {
	Default.Info(component, format, args...)
}

// Warn はデフォルトロガーでWARNログを出力する
func Warn(component string, format string, args ...any) {
	Default.Warn(component, format, args...)
}

// Error はデフォルトロガーでERRORログを出力する
func Error(component string, format string, args ...any) {
	Default.Error(component, format, args...)
}
