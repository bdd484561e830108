package cmd

import (
	"fmt"
	"os"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"

	"geoadmin-go/internal/conf"
	"geoadmin-go/internal/data"
)

var (
	cfgPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "geoadminctl",
	Short: "geoadmin 运维工具",
	Long:  `geoadminctl 提供行政区划数据导入、清库、就绪等待等子命令。`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "conf", "c", "./configs", "config path (directory or file)")
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// loadBootstrap 读取 yaml 配置（与服务端同一份）。
func loadBootstrap() (*conf.Bootstrap, error) {
	c := config.New(config.WithSource(file.NewSource(cfgPath)))
	defer c.Close()
	if err := c.Load(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		return nil, err
	}
	return &bc, nil
}

func newLogger() log.Logger {
	return log.With(log.NewStdLogger(os.Stdout), "ts", log.DefaultTimestamp)
}

// openData 按配置建连（含建表迁移），返回数据层与释放函数。
func openData(bc *conf.Bootstrap, logger log.Logger) (*data.Data, func(), error) {
	drv := data.NewSqlDriver(bc.Data)
	return data.NewData(bc.Data, drv, logger)
}
