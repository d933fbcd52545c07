package model

import "time"

// RunStatus 一次运行的最终状态
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

func (s RunStatus) String() string {
	return string(s)
}

// RunRecord 表示一次 director 运行，存储到 DuckDB，可选镜像到 MySQL
type RunRecord struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"` // UUID v7
	URL            string    `gorm:"type:text" json:"url"`         // 输入文件中读取的内容
	DownloadedPath string    `gorm:"type:text" json:"downloaded_path"`
	OutputPath     string    `gorm:"type:text" json:"output_path"`
	DownloadMode   string    `gorm:"size:16" json:"download_mode"`
	ProcessorMode  string    `gorm:"size:16" json:"processor_mode"`
	Events         int       `json:"events"` // -1 表示未知
	Status         RunStatus `gorm:"size:16;index" json:"status"`
	ErrorReason    string    `gorm:"type:text" json:"error_reason"`
	StartedAt      time.Time `gorm:"index" json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// TableName 指定表名
func (RunRecord) TableName() string {
	return "ems_runs"
}

// Duration 运行耗时
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
