package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"geoadmin-go/internal/arcgis"
	"geoadmin-go/internal/biz"
	"geoadmin-go/internal/data"
	"geoadmin-go/internal/service"
)

var (
	impHardReset bool
	impCountry   string
	impMaxLevel  int
	impTimeout   time.Duration
)

// importCmd runs the two-phase import pipeline against the configured feature service
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "从要素服务导入行政区划（国家层先行，随后逐国逐层）",
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := loadBootstrap()
		if err != nil {
			return err
		}
		logger := newLogger()
		d, cleanup, err := openData(bc, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := context.WithTimeout(context.Background(), impTimeout)
		defer cancel()
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		repo := data.NewAdminAreaRepo(d)
		src := arcgis.NewClient(bc.Upstream, logger)
		importer := biz.NewImportUsecase(repo, src, service.NewImportConfig(bc), logger)

		summary, err := importer.ImportAll(ctx, biz.ImportOptions{
			HardReset:   impHardReset,
			CountryISO3: impCountry,
			MaxLevel:    impMaxLevel,
		})
		if summary != nil {
			b, _ := json.MarshalIndent(summary, "", "  ")
			fmt.Println(string(b))
		}
		return err
	},
}

func init() {
	importCmd.Flags().BoolVar(&impHardReset, "hard-reset", false, "导入前清空 admin_area")
	importCmd.Flags().StringVar(&impCountry, "country", "", "只导入指定国家（ISO3）")
	importCmd.Flags().IntVar(&impMaxLevel, "max-level", 0, "导入深度上限，0 表示用配置默认值")
	importCmd.Flags().DurationVar(&impTimeout, "timeout", 24*time.Hour, "整体超时")
	rootCmd.AddCommand(importCmd)
}
