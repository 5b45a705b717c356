package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/RecoveryAshes/MovieCrawler/internal/core"
	"github.com/RecoveryAshes/MovieCrawler/internal/models"
	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	// 任务参数
	statusFilter string
	listJSON     bool
	taskTitle    string
	taskQuality  string
	exportDir    string

	// 批量导入参数
	batchDelay      int
	continueOnError bool
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "管理下载任务 (配合 --snapshot 持久化)",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出任务 (最新在前)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateStatusFilter(statusFilter); err != nil {
			return err
		}
		dash, err := offlineDashboard()
		if err != nil {
			return err
		}

		tasks := filterTasks(dash.Store().Tasks(), statusFilter)
		if listJSON {
			data, err := json.MarshalIndent(tasks, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\t状态\t标题\t清晰度\t进度\t大小\t创建时间")
		for _, t := range tasks {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.Status.Label(), t.DisplayTitle(), t.Quality,
				utils.FormatProgress(t.Progress), utils.FormatTaskSize(t.FileSize), utils.FormatDate(t.CreatedAt))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		stats := dash.Store().Stats()
		fmt.Printf("\n共 %d 个任务: 已完成 %d | 下载中 %d | 已暂停 %d | 等待中 %d | 失败 %d\n",
			stats.Total, stats.Completed, stats.Running, stats.Paused, stats.Pending, stats.Failed)
		return nil
	},
}

var tasksAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "创建下载任务",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dash, err := offlineDashboard()
		if err != nil {
			return err
		}
		task, err := dash.CreateTask(models.CreateTaskInput{URL: args[0], Title: taskTitle, Quality: taskQuality})
		if err != nil {
			return err
		}
		utils.Infof("✅ 已创建任务 #%d: %s", task.ID, task.Title)
		return nil
	},
}

var tasksToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "开始/暂停任务",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTaskID(args[0], func(dash *core.Dashboard, id int) {
			if task, changed := dash.ToggleTaskStatus(id); changed {
				utils.Infof("任务 #%d 状态: %s", id, task.Status.Label())
			} else {
				utils.Warnf("任务 #%d 不存在或当前状态不可切换", id)
			}
		})
	},
}

var tasksRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "重试任务",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTaskID(args[0], func(dash *core.Dashboard, id int) {
			if dash.RetryTask(id) {
				utils.Infof("任务 #%d 已重新排队", id)
			} else {
				utils.Warnf("任务 #%d 不存在", id)
			}
		})
	},
}

var tasksDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "删除任务",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTaskID(args[0], func(dash *core.Dashboard, id int) {
			if dash.DeleteTask(id) {
				utils.Infof("任务 #%d 已删除", id)
			} else {
				utils.Warnf("任务 #%d 不存在", id)
			}
		})
	},
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "以JSON显示单个任务",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("无效的任务ID: %s", args[0])
		}
		dash, err := offlineDashboard()
		if err != nil {
			return err
		}
		task, err := dash.Store().Get(id)
		if err != nil {
			return fmt.Errorf("任务 #%d: %w", id, err)
		}
		data, err := task.ToJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var tasksExportCmd = &cobra.Command{
	Use:   "export",
	Short: "导出任务列表为JSON报告",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dash, err := offlineDashboard()
		if err != nil {
			return err
		}
		dir := exportDir
		if dir == "" {
			dir = appConfig.Output.ReportDir
		}
		_, err = utils.NewReporter(dir).WriteReport("tasks", dash.Snapshot())
		return err
	},
}

var importCmd = &cobra.Command{
	Use:   "import <url-file>",
	Short: "从文件批量导入URL为下载任务",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateImportFlags(taskQuality, batchDelay); err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		dash, err := offlineDashboard()
		if err != nil {
			return err
		}

		importer := core.NewBatchImporter(dash.Store(), taskQuality, time.Duration(batchDelay)*time.Millisecond, continueOnError)
		var bar *progressbar.ProgressBar
		importer.OnProgress = func(done, total int) {
			if bar == nil {
				bar = utils.NewProgressBar(total, "📥 导入任务")
			}
			_ = bar.Set(done)
		}

		summary, err := importer.ImportFile(ctx, args[0])
		if bar != nil {
			_ = bar.Finish()
		}
		if summary != nil {
			if _, rerr := utils.NewReporter(appConfig.Output.ReportDir).WriteReport("import", summary); rerr != nil {
				utils.Error(rerr, "保存导入报告失败")
			}
		}
		if err != nil {
			return fmt.Errorf("批量导入失败: %w", err)
		}
		if summary.FailCount > 0 && !continueOnError {
			return fmt.Errorf("批量导入中止: %d 个URL失败", summary.FailCount)
		}

		utils.Info("✨ 批量导入完成!")
		return nil
	},
}

// offlineDashboard 创建不运行资源监控的控制面板
func offlineDashboard() (*core.Dashboard, error) {
	dash, _, err := newDashboard(context.Background())
	if err != nil {
		return nil, err
	}
	if appConfig.Store.SnapshotFile == "" {
		utils.Debug("未设置任务快照文件,本次变更不会保存")
	}
	return dash, nil
}

func withTaskID(raw string, fn func(dash *core.Dashboard, id int)) error {
	id, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("无效的任务ID: %s", raw)
	}
	dash, err := offlineDashboard()
	if err != nil {
		return err
	}
	fn(dash, id)
	return nil
}

func filterTasks(tasks []models.Task, status string) []models.Task {
	if status == "" {
		return tasks
	}
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if string(t.Status) == status {
			out = append(out, t)
		}
	}
	return out
}

func init() {
	tasksListCmd.Flags().StringVarP(&statusFilter, "status", "s", "", "按状态过滤 (pending|running|paused|completed|failed)")
	tasksListCmd.Flags().BoolVar(&listJSON, "json", false, "以JSON格式输出")

	tasksAddCmd.Flags().StringVarP(&taskTitle, "title", "t", "", "任务标题,为空时自动生成")
	tasksAddCmd.Flags().StringVarP(&taskQuality, "quality", "q", "", "清晰度 (4K|1080p|720p|480p|360p),默认720p")

	tasksExportCmd.Flags().StringVarP(&exportDir, "output", "o", "", "报告目录,为空时使用配置值")

	importCmd.Flags().StringVarP(&taskQuality, "quality", "q", "", "清晰度 (4K|1080p|720p|480p|360p),默认720p")
	importCmd.Flags().IntVar(&batchDelay, "batch-delay", 0, "两次创建之间的间隔(毫秒)")
	importCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "遇到错误继续处理")

	tasksCmd.AddCommand(tasksListCmd, tasksShowCmd, tasksAddCmd, tasksToggleCmd, tasksRetryCmd, tasksDeleteCmd, tasksExportCmd)
}
