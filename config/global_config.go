package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type GlobalConfig struct {
	DirectorConfig  *DirectorConfig  `json:"director" yaml:"director"`
	DownloadConfig  *DownloadConfig  `json:"download" yaml:"download"`
	ProcessorConfig *ProcessorConfig `json:"processor" yaml:"processor"`
	DuckDBConfig    *DuckDBConfig    `json:"duckdb" yaml:"duckdb"`
	MySQLConfig     *MySQLConfig     `json:"mysql" yaml:"mysql"`
	LogConfig       *LogConfig       `json:"log" yaml:"log"`
}

func (g *GlobalConfig) Validate() []error {
	var errs = make([]error, 0)
	if g.DirectorConfig == nil {
		errs = append(errs, errors.New("director 配置未设置"))
	} else {
		errs = append(errs, g.DirectorConfig.Validate()...)
	}
	if g.DownloadConfig == nil {
		errs = append(errs, errors.New("download 配置未设置"))
	} else {
		errs = append(errs, g.DownloadConfig.Validate()...)
	}
	if g.ProcessorConfig == nil {
		errs = append(errs, errors.New("processor 配置未设置"))
	} else {
		errs = append(errs, g.ProcessorConfig.Validate()...)
	}
	if g.DuckDBConfig != nil {
		errs = append(errs, g.DuckDBConfig.Validate()...)
	}
	if g.MySQLConfig != nil {
		errs = append(errs, g.MySQLConfig.Validate()...)
	}
	if g.LogConfig != nil {
		errs = append(errs, g.LogConfig.Validate()...)
	}
	return errs
}

func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		DirectorConfig:  NewDefaultDirectorConfig(),
		DownloadConfig:  NewDefaultDownloadConfig(),
		ProcessorConfig: NewDefaultProcessorConfig(),
		DuckDBConfig:    NewDefaultDuckDBConfig(),
		MySQLConfig:     NewDefaultMySQLConfig(),
		LogConfig:       NewDefaultLogConfig(),
	}
}

// Load 读取配置；当 configFilePath 不存在且 optional 为 true 时返回默认配置
func Load(configFilePath string, optional bool) (*GlobalConfig, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg, err := TryLoadFromDisk(configFilePath)
	if err == nil {
		return cfg, nil
	}
	if optional && os.IsNotExist(errors.Cause(err)) {
		return NewDefaultGlobalConfig(), nil
	}
	return nil, err
}

func TryLoadFromDisk(configFilePath string) (*GlobalConfig, error) {
	_, err := os.Stat(configFilePath)
	if err != nil {
		return nil, err
	}
	dir, file := filepath.Split(configFilePath)
	fileType := filepath.Ext(file)
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(strings.TrimSuffix(file, fileType))
	v.SetConfigType(strings.TrimPrefix(fileType, "."))
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.ReadInConfig(); err != nil {
		if errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
		return nil, errors.Errorf("解析配置文件错误:%s", err.Error())
	}
	cfg := NewDefaultGlobalConfig()
	if err := v.Unmarshal(cfg, func(config *mapstructure.DecoderConfig) {
		config.TagName = strings.TrimPrefix(fileType, ".")
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}
