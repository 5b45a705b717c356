package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "查看和维护反爬设置",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "显示当前反爬设置",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dash, err := offlineDashboard()
		if err != nil {
			return err
		}
		cfg, err := dash.AntiCrawler()
		if err != nil {
			return err
		}
		// 自定义请求头中的Cookie/Token等敏感值不直接输出
		cfg.CustomHeaders = utils.NewHeaderRedactor().RedactText(cfg.CustomHeaders)
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "验证反爬设置和请求头",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		utils.Info("🔍 验证HTTP头部配置...")
		dash, err := offlineDashboard()
		if err != nil {
			return err
		}
		cfg, err := dash.AntiCrawler()
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("配置验证失败: %w", err)
		}

		// 显示合并后的头部(脱敏)
		safeHeaders, err := dash.SafeHeaders()
		if err != nil {
			return fmt.Errorf("配置验证失败: %w", err)
		}
		utils.Info("✅ 配置验证通过!")
		utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
		names := make([]string, 0, len(safeHeaders))
		for name := range safeHeaders {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			utils.Infof("  %s: %s", name, safeHeaders[name])
		}
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "恢复默认反爬设置",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dash, err := offlineDashboard()
		if err != nil {
			return err
		}
		if _, err := dash.ResetAntiCrawler(); err != nil {
			return err
		}
		utils.Infof("✅ 已写入默认设置: %s", appConfig.AntiCrawler.ConfigFile)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configValidateCmd, configResetCmd)
}
