package cmd

import (
	"ems-director/pkg/util"

	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	opts := newRunOptions()
	rootCmd := &cobra.Command{
		Use:   "ems-director",
		Short: "下载 EMS 预订报表并转换为日历 csv",
		Long:  "读取 input.txt 中的报表地址，下载后调用 ems-processor 生成 output.csv，最后删除下载文件",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableNoDescFlag:   true,
			DisableDescriptions: true,
			HiddenDefaultCmd:    true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		// 不带子命令时等同于 run
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd)
		},
	}
	opts.bindFlags(rootCmd)

	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewProcessCommand())
	rootCmd.AddCommand(NewHistoryCommand())

	rootCmd.Version = util.GetVersion().Version
	return rootCmd
}
