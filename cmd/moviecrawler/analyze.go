package main

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
	"github.com/spf13/cobra"
)

var (
	analyzeJSON    bool
	analyzeLink    int
	analyzeTimeout time.Duration
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "分析网站 (模拟)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetURL, err := NormalizeURL(args[0])
		if err != nil {
			return fmt.Errorf("无效的目标URL: %w", err)
		}

		ctx, stop := signalContext()
		defer stop()
		if analyzeTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, analyzeTimeout)
			defer cancel()
		}

		dash, cleanup, err := newDashboard(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		h, err := dash.AnalyzeURL(ctx, targetURL)
		if err != nil {
			return err
		}

		spinner := utils.NewSpinner("🔍 正在分析 " + targetURL)
		ticker := time.NewTicker(100 * time.Millisecond)
	wait:
		for {
			select {
			case <-h.Done():
				break wait
			case <-ticker.C:
				_ = spinner.Add(1)
			}
		}
		ticker.Stop()
		_ = spinner.Finish()

		result, err := h.Result()
		if err != nil {
			return fmt.Errorf("分析失败: %w", err)
		}

		if analyzeJSON {
			data, err := result.ToJSON()
			if err != nil {
				return err
			}
			fmt.Println(string(data))
		} else {
			fmt.Println("\n==================================================")
			fmt.Println("📊 分析结果")
			fmt.Println("==================================================")
			fmt.Printf("标题: %s\n", result.Title)
			fmt.Printf("域名: %s\n", result.Domain)
			fmt.Printf("内容类型: %s\n", result.ContentType)
			fmt.Printf("推荐策略: %s\n", result.RecommendedStrategy)
			fmt.Printf("法律状态: %s\n", result.LegalStatus)
			fmt.Println("发现的资源:")
			for i, link := range result.FoundLinks {
				fmt.Printf("  [%d] %-5s %-6s %-8s %s\n", i, link.Type, link.Quality, link.Size, link.URL)
			}
			fmt.Println("反爬措施:")
			for _, m := range result.AntiCrawlerMeasures {
				fmt.Printf("  [%s] %v 可绕过=%v\n", m.Level, m.Measures, m.Bypassable)
			}
			fmt.Println("==================================================")
		}

		if analyzeLink >= 0 {
			task, err := dash.CreateTaskFromLink(analyzeLink)
			if err != nil {
				return err
			}
			utils.Infof("✅ 已创建任务 #%d: %s (%s)", task.ID, task.Title, task.Quality)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "以JSON格式输出结果")
	analyzeCmd.Flags().IntVar(&analyzeLink, "create-task", -1, "用第N个发现的资源创建任务 (从0开始)")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 0, "分析超时时间,0表示不限制")
}
