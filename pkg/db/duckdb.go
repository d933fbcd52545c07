package db

import (
	"database/sql"
	"sync"

	"ems-director/config"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var duckDB *sql.DB
var duckDBOnce sync.Once

// InitDuckDB 初始化 duckdb 连接
func InitDuckDB(cfg *config.DuckDBConfig) error {
	var err error
	duckDBOnce.Do(func() {
		duckDB, err = sql.Open("duckdb", cfg.DSN())
		if err != nil {
			err = errors.Wrapf(err, "连接 duckdb 失败")
			return
		}

		// 测试连接
		if err = duckDB.Ping(); err != nil {
			err = errors.Wrapf(err, "duckdb 连接测试失败")
			return
		}

		zap.S().Debugf("duckdb 初始化完成: %s", cfg.DSN())
	})
	return err
}

// GetDuckDB 获取 DuckDB 连接
func GetDuckDB() *sql.DB {
	return duckDB
}

// CloseDuckDB 关闭连接，未初始化时不做任何事
func CloseDuckDB() error {
	if duckDB == nil {
		return nil
	}
	return duckDB.Close()
}
