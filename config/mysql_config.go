package config

import (
	"time"

	"github.com/pkg/errors"
)

// MySQLConfig 运行历史的 MySQL 镜像，DSN 为空时不启用
type MySQLConfig struct {
	DSN             string        `json:"dsn" yaml:"dsn"`
	Replicas        []string      `json:"replicas" yaml:"replicas"` // 只读副本 DSN 列表
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
}

func (m *MySQLConfig) Enabled() bool {
	return m != nil && m.DSN != ""
}

func (m *MySQLConfig) Validate() []error {
	var errs = make([]error, 0)
	if !m.Enabled() {
		return errs
	}
	if m.MaxOpenConns < 0 || m.MaxIdleConns < 0 {
		errs = append(errs, errors.Errorf("MySQL 连接池大小不能为负数"))
	}
	if m.MaxIdleConns > m.MaxOpenConns && m.MaxOpenConns > 0 {
		errs = append(errs, errors.Errorf("MySQL maxIdleConns(%d) 不能大于 maxOpenConns(%d)", m.MaxIdleConns, m.MaxOpenConns))
	}
	for i, r := range m.Replicas {
		if r == "" {
			errs = append(errs, errors.Errorf("MySQL 第 %d 个副本 DSN 为空", i+1))
		}
	}
	return errs
}

func NewDefaultMySQLConfig() *MySQLConfig {
	return &MySQLConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}
