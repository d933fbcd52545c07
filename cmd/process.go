package cmd

import (
	"fmt"
	"path/filepath"

	"ems-director/config"
	"ems-director/pkg/ems"
	"ems-director/pkg/logger"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewProcessCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:          "process <input.html> <output.csv>",
		Short:        "把 EMS 报表转换为 Google 日历 csv",
		Long:         "解析 EMS Enterprise 导出的 html 预订报表，输出可导入 Google 日历的 csv 文件",
		Example:      "  ems-director process report.html output.csv",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logCfg := config.NewDefaultLogConfig()
			if !verbose {
				logCfg.Level = "warn"
			}
			sync, err := logger.Init(logCfg)
			if err != nil {
				return err
			}
			defer sync()

			input, output := args[0], args[1]
			n, err := ems.ProcessFile(input, output)
			if errors.Is(err, ems.ErrInvalidInput) || errors.Is(err, ems.ErrInvalidOutput) {
				return err
			}
			// 与 ems-processor.jar 一致，报表解析失败时同样输出事件数
			fmt.Fprintf(cmd.OutOrStdout(), "Parsed %d events to %s\n", n, filepath.Base(output))
			return err
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")
	return cmd
}
