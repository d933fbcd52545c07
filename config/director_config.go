package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DownloadModeLocal = "local"
	DownloadModeHTTP  = "http"

	ProcessorModeJar    = "jar"
	ProcessorModeNative = "native"
)

// DirectorConfig 输入输出文件位置
type DirectorConfig struct {
	InputPath    string `json:"inputPath" yaml:"inputPath"`       // 第一行为报表 URL
	OutputPath   string `json:"outputPath" yaml:"outputPath"`     // 生成的 csv
	KeepDownload bool   `json:"keepDownload" yaml:"keepDownload"` // 处理后保留下载文件
}

func (d *DirectorConfig) Validate() []error {
	var errs = make([]error, 0)
	if d.InputPath == "" {
		errs = append(errs, errors.Errorf("输入文件路径不能为空"))
	}
	if d.OutputPath == "" {
		errs = append(errs, errors.Errorf("输出文件路径不能为空"))
	} else if !strings.EqualFold(filepath.Ext(d.OutputPath), ".csv") {
		errs = append(errs, errors.Errorf("输出文件必须是 .csv 文件: %s", d.OutputPath))
	}
	return errs
}

func NewDefaultDirectorConfig() *DirectorConfig {
	return &DirectorConfig{
		InputPath:  "input.txt",
		OutputPath: "output.csv",
	}
}

type DownloadConfig struct {
	Mode        string        `json:"mode" yaml:"mode"` // local | http
	Dir         string        `json:"dir" yaml:"dir"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	Retries     int           `json:"retries" yaml:"retries"`
	RetryDelay  time.Duration `json:"retryDelay" yaml:"retryDelay"`
	MaxBodySize int           `json:"maxBodySize" yaml:"maxBodySize"` // 0 表示不限制
	UserAgent   string        `json:"userAgent" yaml:"userAgent"`     // 为空时使用随机 UA
}

func (d *DownloadConfig) Validate() []error {
	var errs = make([]error, 0)
	switch d.Mode {
	case DownloadModeLocal:
	case DownloadModeHTTP:
		if d.Dir == "" {
			errs = append(errs, errors.Errorf("http 下载模式需要指定下载目录"))
		}
		if d.Timeout < 0 {
			errs = append(errs, errors.Errorf("下载超时不能为负数"))
		}
		if d.Retries < 0 {
			errs = append(errs, errors.Errorf("重试次数不能为负数"))
		}
		if d.MaxBodySize < 0 {
			errs = append(errs, errors.Errorf("maxBodySize 不能为负数"))
		}
	default:
		errs = append(errs, errors.Errorf("未知的下载模式: %q", d.Mode))
	}
	return errs
}

func NewDefaultDownloadConfig() *DownloadConfig {
	return &DownloadConfig{
		Mode:       DownloadModeLocal,
		Dir:        ".",
		Timeout:    30 * time.Second,
		Retries:    1,
		RetryDelay: 2 * time.Second,
	}
}

type ProcessorConfig struct {
	Mode    string        `json:"mode" yaml:"mode"` // jar | native
	Java    string        `json:"java" yaml:"java"`
	JarPath string        `json:"jarPath" yaml:"jarPath"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"` // 0 表示不限制
}

func (p *ProcessorConfig) Validate() []error {
	var errs = make([]error, 0)
	switch p.Mode {
	case ProcessorModeJar:
		if p.Java == "" {
			errs = append(errs, errors.Errorf("java 可执行文件不能为空"))
		}
		if p.JarPath == "" {
			errs = append(errs, errors.Errorf("jar 路径不能为空"))
		}
	case ProcessorModeNative:
	default:
		errs = append(errs, errors.Errorf("未知的处理模式: %q", p.Mode))
	}
	if p.Timeout < 0 {
		errs = append(errs, errors.Errorf("处理超时不能为负数"))
	}
	return errs
}

func NewDefaultProcessorConfig() *ProcessorConfig {
	return &ProcessorConfig{
		Mode:    ProcessorModeJar,
		Java:    "java",
		JarPath: "../out/artifacts/ems_processor_jar/ems-processor.jar",
	}
}
