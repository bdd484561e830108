package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"geoadmin-go/internal/data"
)

var resetYes bool

// resetCmd wipes the admin_area table
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "清空 admin_area（不可逆，需 --yes 确认）",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			return fmt.Errorf("reset 会清空全部行政区划数据，确认请加 --yes")
		}
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

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		repo := data.NewAdminAreaRepo(d)
		if err := repo.DeleteAll(ctx); err != nil {
			return err
		}
		fmt.Println("admin_area cleared")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "确认执行")
	rootCmd.AddCommand(resetCmd)
}
