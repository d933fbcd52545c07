package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"ems-director/pkg/db"
	"ems-director/pkg/logger"
	"ems-director/pkg/model"
	"ems-director/pkg/service"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	historySourceDuckDB = "duckdb"
	historySourceMySQL  = "mysql"
)

func NewHistoryCommand() *cobra.Command {
	var configFilePath string
	var limit int
	var source string

	cmd := &cobra.Command{
		Use:          "history",
		Short:        "查看最近的运行记录",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return errors.Errorf("limit 必须大于 0: %d", limit)
			}
			cfg, err := loadConfig(cmd, configFilePath)
			if err != nil {
				return err
			}
			sync, err := logger.Init(cfg.LogConfig)
			if err != nil {
				return err
			}
			defer sync()

			if cfg.DuckDBConfig == nil || !cfg.DuckDBConfig.Enabled {
				return errors.New("DuckDB 未启用, 没有运行历史")
			}
			if errs := cfg.DuckDBConfig.Validate(); len(errs) > 0 {
				return errs[0]
			}
			if err := db.InitDuckDB(cfg.DuckDBConfig); err != nil {
				return err
			}
			defer db.CloseDuckDB()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			var records []model.RunRecord
			var store *service.RunStore
			switch source {
			case historySourceDuckDB:
				store = service.NewRunStore(db.GetDuckDB(), nil)
				if err := store.EnsureSchema(ctx); err != nil {
					return err
				}
				records, err = store.Recent(ctx, limit)
			case historySourceMySQL:
				if !cfg.MySQLConfig.Enabled() {
					return errors.New("MySQL 未配置")
				}
				if err := db.InitMySQL(cfg.MySQLConfig); err != nil {
					return err
				}
				store = service.NewRunStore(db.GetDuckDB(), db.GetMySQL())
				if err := store.EnsureSchema(ctx); err != nil {
					return err
				}
				records, err = store.RecentFromMySQL(ctx, limit)
			default:
				return errors.Errorf("未知的数据源: %q", source)
			}
			if err != nil {
				return err
			}

			total, err := store.Count(ctx)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), records, total)
		},
	}

	cmd.Flags().StringVarP(&configFilePath, "config", "c", defaultConfigPath, "配置文件路径")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "显示的记录数")
	cmd.Flags().StringVar(&source, "source", historySourceDuckDB, "数据源: duckdb | mysql")
	return cmd
}

func printHistory(out io.Writer, records []model.RunRecord, total int64) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATUS\tEVENTS\tDURATION\tPROCESSOR\tURL\tERROR")
	for i := range records {
		rec := &records[i]
		events := "-"
		if rec.Events != service.UnknownEvents {
			events = fmt.Sprint(rec.Events)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.StartedAt.Local().Format(time.DateTime),
			rec.Status,
			events,
			rec.Duration().Round(time.Millisecond),
			rec.ProcessorMode,
			rec.URL,
			rec.ErrorReason,
		)
	}
	fmt.Fprintf(w, "共 %d 条运行记录\n", total)
	return w.Flush()
}
