package config

import (
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	Level       string `json:"level" yaml:"level"`
	Development bool   `json:"development" yaml:"development"` // console 输出
}

func (l *LogConfig) Validate() []error {
	var errs = make([]error, 0)
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		errs = append(errs, errors.Errorf("日志级别无效: %q", l.Level))
	}
	return errs
}

func NewDefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:       "info",
		Development: true,
	}
}
