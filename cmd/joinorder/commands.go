package main

import (
	"encoding/json"
	"fmt"

	"github.com/kasuganosora/joinorder/pkg/api"
	"github.com/kasuganosora/joinorder/pkg/config"
	mcpserver "github.com/kasuganosora/joinorder/server/mcp"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "joinorder",
		Short:         "Left-deep join order optimizer based on IKKBZ",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "配置文件路径 (json 或 yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "日志级别: debug, info, warn, error")

	cmd.AddCommand(newOptimizeCmd(opts), newExplainCmd(opts), newMCPCmd(opts))
	return cmd
}

// loadConfig 加载配置文件并应用命令行覆盖项
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(o.configPath); err != nil {
			return nil, err
		}
	} else {
		cfg = config.LoadConfigOrDefault()
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

func newOptimizeCmd(root *rootOptions) *cobra.Command {
	var graphPath, rootLabel, format string
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Compute the join order of a graph file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			q, err := api.LoadQuery(graphPath)
			if err != nil {
				return err
			}
			if rootLabel != "" {
				q.Root = rootLabel
			}

			opt, err := api.NewOptimizerFromConfig(cfg)
			if err != nil {
				return err
			}
			defer opt.Close()

			res, err := opt.Optimize(cmd.Context(), q)
			if err != nil {
				return err
			}
			return writeResult(cmd, res, format)
		},
	}
	cmd.Flags().StringVar(&graphPath, "graph", "", "连接图文件 (json 或 yaml)")
	cmd.Flags().StringVar(&rootLabel, "root", "", "指定根关系，默认尝试所有关系")
	cmd.Flags().StringVar(&format, "format", "text", "输出格式: text 或 json")
	_ = cmd.MarkFlagRequired("graph")
	return cmd
}

func newExplainCmd(root *rootOptions) *cobra.Command {
	var sql, driver, dsn, workbook string
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Explain the join order of a SELECT statement",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if driver != "" {
				cfg.Stats = config.StatsConfig{Driver: driver, DSN: dsn}
			} else if workbook != "" {
				cfg.Stats = config.StatsConfig{Workbook: workbook}
			}

			opt, err := api.NewOptimizerFromConfig(cfg)
			if err != nil {
				return err
			}
			defer opt.Close()

			out, err := opt.ExplainSQL(cmd.Context(), sql)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&sql, "sql", "", "SELECT 语句")
	cmd.Flags().StringVar(&driver, "stats-driver", "", "统计信息数据库驱动: mysql, postgres, sqlite")
	cmd.Flags().StringVar(&dsn, "stats-dsn", "", "统计信息数据库连接串")
	cmd.Flags().StringVar(&workbook, "stats-workbook", "", "统计信息 Excel 工作簿")
	_ = cmd.MarkFlagRequired("sql")
	return cmd
}

func newMCPCmd(root *rootOptions) *cobra.Command {
	var transport string
	var port int
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the optimizer as MCP tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if transport != "" {
				cfg.MCP.Transport = transport
			}
			if port != 0 {
				cfg.MCP.Port = port
			}

			opt, err := api.NewOptimizerFromConfig(cfg)
			if err != nil {
				return err
			}
			defer opt.Close()

			return mcpserver.NewServer(opt, &cfg.MCP).Start()
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "", "传输方式: stdio 或 http")
	cmd.Flags().IntVar(&port, "port", 0, "HTTP 端口")
	return cmd
}

func writeResult(cmd *cobra.Command, res *api.Result, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "text", "":
		fmt.Fprint(cmd.OutOrStdout(), api.FormatResult(res))
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
