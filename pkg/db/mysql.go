package db

import (
	"sync"

	"ems-director/config"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

var mysqlDB *gorm.DB
var mysqlOnce sync.Once

// InitMySQL 初始化 MySQL 连接，配置了副本时读请求走副本
func InitMySQL(cfg *config.MySQLConfig) error {
	var err error
	mysqlOnce.Do(func() {
		mysqlDB, err = OpenMySQL(cfg)
		if err != nil {
			return
		}
		zap.S().Debugf("MySQL 初始化完成, 副本数: %d", len(cfg.Replicas))
	})
	return err
}

// OpenMySQL 打开一个新的 gorm 连接
func OpenMySQL(cfg *config.MySQLConfig) (*gorm.DB, error) {
	if !cfg.Enabled() {
		return nil, errors.New("MySQL DSN 未配置")
	}
	gdb, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "连接 MySQL 失败")
	}

	if len(cfg.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(cfg.Replicas))
		for _, dsn := range cfg.Replicas {
			replicas = append(replicas, mysql.Open(dsn))
		}
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		}).
			SetMaxOpenConns(cfg.MaxOpenConns).
			SetMaxIdleConns(cfg.MaxIdleConns).
			SetConnMaxLifetime(cfg.ConnMaxLifetime)
		if err := gdb.Use(resolver); err != nil {
			return nil, errors.Wrap(err, "注册 MySQL 副本失败")
		}
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, errors.Wrap(err, "获取 MySQL 连接池失败")
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return gdb, nil
}

// GetMySQL 获取 MySQL 连接，未启用时为 nil
func GetMySQL() *gorm.DB {
	return mysqlDB
}
