package db

import (
	"path/filepath"
	"testing"

	"ems-director/config"

	"github.com/stretchr/testify/require"
)

func TestInitDuckDB(t *testing.T) {
	cfg := config.NewDefaultDuckDBConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "ems.duckdb")
	require.Empty(t, cfg.Validate())

	require.NoError(t, InitDuckDB(cfg))
	t.Cleanup(func() { require.NoError(t, CloseDuckDB()) })

	// 重复初始化复用同一个连接
	first := GetDuckDB()
	require.NoError(t, InitDuckDB(cfg))
	require.Same(t, first, GetDuckDB())
	require.NoError(t, first.Ping())
	require.FileExists(t, cfg.DBPath)
}

func TestOpenMySQLRequiresDSN(t *testing.T) {
	_, err := OpenMySQL(config.NewDefaultMySQLConfig())
	require.Error(t, err)
	require.Nil(t, GetMySQL())
}
