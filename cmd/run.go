package cmd

import (
	"context"
	"errors"

	"ems-director/config"
	"ems-director/pkg/db"
	"ems-director/pkg/logger"
	"ems-director/pkg/service"
	"ems-director/pkg/signals"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfigPath = "./etc/config.yaml"

type runOptions struct {
	configFilePath string
	input          string
	output         string
	processor      string
	download       string
	jar            string
	keepDownload   bool
}

func newRunOptions() *runOptions {
	return &runOptions{}
}

func (o *runOptions) bindFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.configFilePath, "config", "c", defaultConfigPath, "配置文件路径")
	cmd.Flags().StringVarP(&o.input, "input", "i", "", "包含报表地址的输入文件")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "输出 csv 文件")
	cmd.Flags().StringVarP(&o.processor, "processor", "p", "", "处理方式: jar | native")
	cmd.Flags().StringVarP(&o.download, "download", "d", "", "下载方式: local | http")
	cmd.Flags().StringVar(&o.jar, "jar", "", "ems-processor.jar 路径")
	cmd.Flags().BoolVar(&o.keepDownload, "keep-download", false, "处理完成后保留下载文件")
}

// apply 只覆盖命令行上显式设置的值
func (o *runOptions) apply(cmd *cobra.Command, cfg *config.GlobalConfig) {
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.DirectorConfig.InputPath = o.input
	}
	if flags.Changed("output") {
		cfg.DirectorConfig.OutputPath = o.output
	}
	if flags.Changed("keep-download") {
		cfg.DirectorConfig.KeepDownload = o.keepDownload
	}
	if flags.Changed("download") {
		cfg.DownloadConfig.Mode = o.download
	}
	if flags.Changed("processor") {
		cfg.ProcessorConfig.Mode = o.processor
	}
	if flags.Changed("jar") {
		cfg.ProcessorConfig.JarPath = o.jar
	}
}

func NewRunCommand() *cobra.Command {
	opts := newRunOptions()
	cmd := &cobra.Command{
		Use:          "run",
		Short:        "执行一次下载和转换",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd)
		},
	}
	opts.bindFlags(cmd)
	return cmd
}

func (o *runOptions) run(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd, o.configFilePath)
	if err != nil {
		return err
	}
	o.apply(cmd, cfg)
	// 默认配置文件可能缺少部分配置段
	fillDefaults(cfg)
	if errs := cfg.Validate(); len(errs) > 0 {
		return errors.Join(errs...)
	}

	sync, err := logger.Init(cfg.LogConfig)
	if err != nil {
		return err
	}
	defer sync()

	ctx := signals.SetupSignalHandler()

	downloader, err := service.NewDownloader(cfg.DownloadConfig)
	if err != nil {
		return err
	}
	processor, err := service.NewProcessor(cfg.ProcessorConfig)
	if err != nil {
		return err
	}

	director := service.NewDirector(cfg.DirectorConfig, downloader, processor)
	store, closeStore := openRunStore(ctx, cfg)
	defer closeStore()
	if store != nil {
		director.WithRecorder(store)
	}

	rec, err := director.Run(ctx)
	if err != nil {
		zap.S().Errorf("运行 %s 失败:%s", rec.ID, err.Error())
		return err
	}
	return nil
}

// loadConfig 未显式指定 --config 时，默认配置文件不存在则使用默认值
func loadConfig(cmd *cobra.Command, path string) (*config.GlobalConfig, error) {
	optional := !cmd.Flags().Changed("config")
	cfg, err := config.Load(path, optional)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func fillDefaults(cfg *config.GlobalConfig) {
	if cfg.DirectorConfig == nil {
		cfg.DirectorConfig = config.NewDefaultDirectorConfig()
	}
	if cfg.DownloadConfig == nil {
		cfg.DownloadConfig = config.NewDefaultDownloadConfig()
	}
	if cfg.ProcessorConfig == nil {
		cfg.ProcessorConfig = config.NewDefaultProcessorConfig()
	}
}

// openRunStore 运行历史不可用时只记录警告，不影响本次运行
func openRunStore(ctx context.Context, cfg *config.GlobalConfig) (*service.RunStore, func()) {
	noop := func() {}
	if cfg.DuckDBConfig == nil || !cfg.DuckDBConfig.Enabled {
		return nil, noop
	}
	if err := db.InitDuckDB(cfg.DuckDBConfig); err != nil {
		zap.S().Warnf("DuckDB 连接错误, 不记录运行历史:%s", err.Error())
		return nil, noop
	}
	closeFn := func() {
		if err := db.CloseDuckDB(); err != nil {
			zap.S().Warnf("关闭 DuckDB 失败:%s", err.Error())
		}
	}

	if cfg.MySQLConfig.Enabled() {
		if err := db.InitMySQL(cfg.MySQLConfig); err != nil {
			zap.S().Warnf("MySQL 数据库连接错误, 只写入 DuckDB:%s", err.Error())
		}
	}

	store := service.NewRunStore(db.GetDuckDB(), db.GetMySQL())
	if err := store.EnsureSchema(ctx); err != nil {
		zap.S().Warnf("初始化运行历史表失败:%s", err.Error())
		closeFn()
		return nil, noop
	}
	return store, closeFn
}
