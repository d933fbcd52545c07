package service

import (
	"context"
	"database/sql"

	"ems-director/pkg/model"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RunRecorder 保存运行记录
type RunRecorder interface {
	Save(ctx context.Context, rec *model.RunRecord) error
}

var _ RunRecorder = (*RunStore)(nil)

// RunStore 运行历史：DuckDB 为主，MySQL 为可选镜像
type RunStore struct {
	duckDB  *sql.DB
	mysqlDB *gorm.DB
}

// NewRunStore mysqlDB 可以为 nil
func NewRunStore(duckDB *sql.DB, mysqlDB *gorm.DB) *RunStore {
	return &RunStore{
		duckDB:  duckDB,
		mysqlDB: mysqlDB,
	}
}

// EnsureSchema 创建运行历史表
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	if s.duckDB == nil {
		return errors.New("DuckDB 连接未初始化")
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS ems_runs (
			id TEXT PRIMARY KEY,
			url TEXT,
			downloaded_path TEXT,
			output_path TEXT,
			download_mode TEXT,
			processor_mode TEXT,
			events INTEGER,
			status TEXT,
			error_reason TEXT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		)
	`
	if _, err := s.duckDB.ExecContext(ctx, createTableSQL); err != nil {
		return errors.Wrap(err, "创建 DuckDB 表失败")
	}
	zap.S().Debug("DuckDB 表 ems_runs 就绪")

	if s.mysqlDB != nil {
		if err := s.mysqlDB.WithContext(ctx).AutoMigrate(&model.RunRecord{}); err != nil {
			return errors.Wrap(err, "MySQL 表迁移失败")
		}
		zap.S().Debug("MySQL 表 ems_runs 就绪")
	}
	return nil
}

// Save 写入一条运行记录，MySQL 镜像失败不影响 DuckDB
func (s *RunStore) Save(ctx context.Context, rec *model.RunRecord) error {
	if s.duckDB == nil {
		return errors.New("DuckDB 连接未初始化")
	}

	insertSQL := `
		INSERT INTO ems_runs (id, url, downloaded_path, output_path, download_mode, processor_mode,
			events, status, error_reason, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.duckDB.ExecContext(ctx, insertSQL,
		rec.ID,
		rec.URL,
		rec.DownloadedPath,
		rec.OutputPath,
		rec.DownloadMode,
		rec.ProcessorMode,
		rec.Events,
		rec.Status.String(),
		rec.ErrorReason,
		rec.StartedAt,
		rec.FinishedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "插入运行记录 %s 失败", rec.ID)
	}

	if s.mysqlDB != nil {
		if err := s.mysqlDB.WithContext(ctx).Create(rec).Error; err != nil {
			zap.S().Warnf("运行记录 %s 写入 MySQL 失败: %v", rec.ID, err)
		}
	}
	return nil
}

// Recent 按开始时间倒序返回最近的运行记录
func (s *RunStore) Recent(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if s.duckDB == nil {
		return nil, errors.New("DuckDB 连接未初始化")
	}

	query := `SELECT id, url, downloaded_path, output_path, download_mode, processor_mode,
			events, status, error_reason, started_at, finished_at
		FROM ems_runs
		ORDER BY started_at DESC
		LIMIT ?`
	rows, err := s.duckDB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "查询运行记录失败")
	}
	defer rows.Close()

	records := make([]model.RunRecord, 0, limit)
	for rows.Next() {
		var rec model.RunRecord
		var url, downloaded, output, downloadMode, processorMode, status, reason sql.NullString
		var events sql.NullInt64
		var startedAt, finishedAt sql.NullTime

		if err := rows.Scan(&rec.ID, &url, &downloaded, &output, &downloadMode, &processorMode,
			&events, &status, &reason, &startedAt, &finishedAt); err != nil {
			return nil, errors.Wrap(err, "扫描运行记录失败")
		}

		rec.URL = url.String
		rec.DownloadedPath = downloaded.String
		rec.OutputPath = output.String
		rec.DownloadMode = downloadMode.String
		rec.ProcessorMode = processorMode.String
		rec.Events = UnknownEvents
		if events.Valid {
			rec.Events = int(events.Int64)
		}
		rec.Status = model.RunStatus(status.String)
		rec.ErrorReason = reason.String
		if startedAt.Valid {
			rec.StartedAt = startedAt.Time
		}
		if finishedAt.Valid {
			rec.FinishedAt = finishedAt.Time
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "读取运行记录失败")
	}
	return records, nil
}

// RecentFromMySQL 从 MySQL 镜像读取，配置了副本时由 dbresolver 路由到副本
func (s *RunStore) RecentFromMySQL(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if s.mysqlDB == nil {
		return nil, errors.New("MySQL 未启用")
	}
	var records []model.RunRecord
	err := s.mysqlDB.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "查询 MySQL 运行记录失败")
	}
	return records, nil
}

// Count 获取运行记录数量
func (s *RunStore) Count(ctx context.Context) (int64, error) {
	if s.duckDB == nil {
		return 0, errors.New("DuckDB 连接未初始化")
	}

	// COUNT 的具体整数类型由驱动决定
	var raw any
	if err := s.duckDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM ems_runs").Scan(&raw); err != nil {
		return 0, errors.Wrap(err, "查询数量失败")
	}
	count, err := cast.ToInt64E(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "无法解析数量 %v", raw)
	}
	return count, nil
}
