// Package config loads harness settings from a YAML or JSON file.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"iperf-harness/internal/harness"
	"iperf-harness/internal/logger"
	"iperf-harness/internal/supervisor"
)

// EnvConfigPath は設定ファイルのパスを指定する環境変数名
const EnvConfigPath = "IPERF_HARNESS_CONFIG"

// FileConfig は設定ファイル全体の構造
type FileConfig struct {
	Harness    HarnessConfig    `yaml:"harness" json:"harness"`
	Supervisor SupervisorConfig `yaml:"supervisor" json:"supervisor"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
	LogLevel   string           `yaml:"log_level" json:"log_level"`
}

// HarnessConfig は繰り返し実行の設定
type HarnessConfig struct {
	Iterations        int      `yaml:"iterations" json:"iterations"`
	Pace              string   `yaml:"pace" json:"pace"`
	SkipTrailingPause bool     `yaml:"skip_trailing_pause" json:"skip_trailing_pause"`
	ExitPolicy        string   `yaml:"exit_policy" json:"exit_policy"`
	ServerFlags       []string `yaml:"server_flags" json:"server_flags"`
	PortFlags         []string `yaml:"port_flags" json:"port_flags"`
}

// SupervisorConfig はサーバー実行ループの設定
type SupervisorConfig struct {
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures" json:"max_consecutive_failures"`
}

// MetricsConfig はメトリクスの設定
// Listen が空でなければPrometheusエンドポイントを公開する
type MetricsConfig struct {
	Listen string `yaml:"listen" json:"listen"`
}

// LoadFile は設定ファイルを読み込む
// 形式は拡張子で判定する
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, errors.Wrap(err, "failed to parse YAML")
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, errors.Wrap(err, "failed to parse JSON")
		}
	default:
		return nil, errors.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// Resolve は実際に読み込む設定ファイルのパスを返す
// path が空なら IPERF_HARNESS_CONFIG を使い、相対パスは絶対パスに変換する
// どちらも空なら空文字列を返す
func Resolve(path string) (string, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return "", nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve config path %s", path)
	}
	return abs, nil
}

// Load は Resolve したパスの設定ファイルを読み込んで検証する
// パスが無ければ空の FileConfig（全てデフォルト）を返す
func Load(path string) (*FileConfig, error) {
	path, err := Resolve(path)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return &FileConfig{}, nil
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// ToHarnessConfig は harness.DefaultConfig に設定ファイルの値を重ねる
func (f *FileConfig) ToHarnessConfig() (harness.Config, error) {
	hc := f.Harness
	config := harness.DefaultConfig()

	if hc.Iterations > 0 {
		config.Iterations = hc.Iterations
	}
	if hc.Pace != "" {
		d, err := time.ParseDuration(hc.Pace)
		if err != nil {
			return config, errors.Wrap(err, "invalid pace")
		}
		config.Pace = d
	}
	config.SkipTrailingPause = hc.SkipTrailingPause

	policy, err := harness.ParseExitPolicy(hc.ExitPolicy)
	if err != nil {
		return config, err
	}
	config.ExitPolicy = policy

	if len(hc.ServerFlags) > 0 {
		config.ServerFlags = hc.ServerFlags
	}
	if len(hc.PortFlags) > 0 {
		config.PortFlags = hc.PortFlags
	}

	return config, nil
}

// ToSupervisorConfig は supervisor.DefaultConfig に設定ファイルの値を重ねる
func (f *FileConfig) ToSupervisorConfig() supervisor.Config {
	config := supervisor.DefaultConfig()
	if f.Supervisor.MaxConsecutiveFailures > 0 {
		config.MaxConsecutiveFailures = f.Supervisor.MaxConsecutiveFailures
	}
	return config
}

// Level はログレベルを返す
func (f *FileConfig) Level() (logger.Level, error) {
	return logger.ParseLevel(f.LogLevel)
}

// Validate は設定値の範囲を検証する
func (f *FileConfig) Validate() error {
	if f.Harness.Iterations < 0 {
		return errors.New("harness.iterations must be non-negative")
	}

	if f.Harness.Pace != "" {
		d, err := time.ParseDuration(f.Harness.Pace)
		if err != nil {
			return errors.Wrap(err, "harness.pace")
		}
		if d < 0 {
			return errors.New("harness.pace must be non-negative")
		}
	}

	if _, err := harness.ParseExitPolicy(f.Harness.ExitPolicy); err != nil {
		return errors.Wrap(err, "harness.exit_policy")
	}

	if f.Supervisor.MaxConsecutiveFailures < 0 {
		return errors.New("supervisor.max_consecutive_failures must be non-negative")
	}

	if _, err := f.Level(); err != nil {
		return errors.Wrap(err, "log_level")
	}

	return nil
}
