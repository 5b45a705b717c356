package main

import (
	"github.com/RecoveryAshes/MovieCrawler/internal/server"
	"github.com/RecoveryAshes/MovieCrawler/internal/tui"
	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动HTTP API服务",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateAddr(appConfig.Server.Addr); err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		dash, cleanup, err := newDashboard(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		srv := server.NewServer(dash, appConfig.Server)
		if err := srv.Run(ctx); err != nil {
			return err
		}
		utils.Info("✨ 服务已退出")
		return nil
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "打开终端控制面板",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		dash, cleanup, err := newDashboard(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		return tui.Run(ctx, dash)
	},
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", "", "监听地址 (如 :8080),为空时使用配置值")
}
