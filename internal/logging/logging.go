// Package logging 负责 zerolog 的初始化。日志一律写 stderr，stdout 留给 RunReport。
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config 是日志配置。
type Config struct {
	// Level 为 trace/debug/info/warn/error；无法识别时按 info。
	Level string
	// Pretty 使用带颜色的人类可读格式（默认 JSON 行）。
	Pretty bool
	// Output 默认 os.Stderr。
	Output io.Writer
}

// DefaultConfig 返回 info 级别、JSON 行、写 stderr 的配置。
func DefaultConfig() Config {
	return Config{Level: "info", Output: os.Stderr}
}

// Setup 构造 logger 并设为全局 log.Logger。
func Setup(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// ParseLevel 容忍大小写与首尾空白。
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Component 返回带 component 字段的子 logger。
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
