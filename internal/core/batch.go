package core

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/RecoveryAshes/MovieCrawler/internal/models"
	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
)

// BatchImporter 批量导入器
// 将URL列表逐个创建为下载任务
type BatchImporter struct {
	store         *TaskStore
	quality       string
	batchDelay    time.Duration
	continueOnErr bool

	// OnProgress 每处理完一个URL调用一次 (可选)
	OnProgress func(done, total int)
}

// BatchResult 单个URL的导入结果
type BatchResult struct {
	URL         string      `json:"url"`
	Success     bool        `json:"success"`
	TaskID      int         `json:"taskId,omitempty"`
	Error       string      `json:"error,omitempty"`
	ProcessedAt time.Time   `json:"processedAt"`
	Task        models.Task `json:"-"`
}

// BatchSummary 批量导入摘要
type BatchSummary struct {
	TotalURLs     int           `json:"totalUrls"`
	SuccessCount  int           `json:"successCount"`
	FailCount     int           `json:"failCount"`
	SkippedCount  int           `json:"skippedCount"` // 重复或已有任务的URL
	Aborted       bool          `json:"aborted"`
	TotalDuration float64       `json:"totalDuration"`
	Results       []BatchResult `json:"results"`
}

// NewBatchImporter 创建批量导入器
// quality为空时使用默认质量,batchDelay为两次创建之间的间隔
func NewBatchImporter(store *TaskStore, quality string, batchDelay time.Duration, continueOnErr bool) *BatchImporter {
	return &BatchImporter{
		store:         store,
		quality:       quality,
		batchDelay:    batchDelay,
		continueOnErr: continueOnErr,
	}
}

// ImportFile 从文件读取URL并导入
func (bi *BatchImporter) ImportFile(ctx context.Context, path string) (*BatchSummary, error) {
	urls, err := ReadURLFile(path)
	if err != nil {
		return nil, err
	}
	return bi.Import(ctx, urls)
}

// ReadURLFile 读取URL列表文件,每行一个
// #开头为注释,无效URL记录警告后跳过,文件中没有可用URL时返回错误
func ReadURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开URL文件失败: %w", err)
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		u := strings.TrimSpace(sc.Text())
		switch {
		case u == "", strings.HasPrefix(u, "#"):
		case models.ValidateURL(u) != nil:
			utils.Warnf("第 %d 行不是有效的http(s)地址,已忽略: %s", n, u)
		default:
			urls = append(urls, u)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("读取URL文件失败: %w", err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%s 中没有可导入的URL", path)
	}

	utils.Debugf("URL文件 %s: %d 个地址", path, len(urls))
	return urls, nil
}

// Import 批量导入URL列表
// 列表内重复或已有任务的URL跳过,ctx取消时停止并返回已处理部分的摘要和ctx错误
func (bi *BatchImporter) Import(ctx context.Context, urls []string) (*BatchSummary, error) {
	if _, err := models.ParseQuality(bi.quality); err != nil {
		return nil, err
	}

	queue := NewImportQueue(len(urls))
	for _, t := range bi.store.Tasks() {
		queue.MarkSeen(t.URL)
	}
	skipped := 0
	for _, u := range urls {
		if err := queue.Push(u); err != nil {
			skipped++
			utils.Debugf("跳过URL [%s]: %v", u, err)
		}
	}
	queue.Close()
	total := queue.PendingCount()

	utils.Infof("🚀 开始批量导入: %d个URL", total)

	summary := &BatchSummary{
		TotalURLs:    len(urls),
		SkippedCount: skipped,
		Results:      make([]BatchResult, 0, total),
	}
	startTime := time.Now()

	for done := 0; ; {
		if err := ctx.Err(); err != nil {
			summary.Aborted = true
			summary.TotalDuration = time.Since(startTime).Seconds()
			return summary, err
		}

		targetURL, ok := queue.Pop(ctx)
		if !ok {
			if err := ctx.Err(); err != nil {
				summary.Aborted = true
				summary.TotalDuration = time.Since(startTime).Seconds()
				return summary, err
			}
			break
		}

		result := bi.importSingleURL(targetURL)
		summary.Results = append(summary.Results, result)
		done++

		if result.Success {
			summary.SuccessCount++
		} else {
			summary.FailCount++
			utils.Errorf("❌ 导入失败 [%s]: %s", targetURL, result.Error)
		}

		if bi.OnProgress != nil {
			bi.OnProgress(done, total)
		}

		if !result.Success && !bi.continueOnErr {
			utils.Warn("批量导入中止 (--continue-on-error=false)")
			summary.Aborted = true
			break
		}

		// 最后一个URL不需要等待
		if done < total && bi.batchDelay > 0 {
			select {
			case <-ctx.Done():
				summary.Aborted = true
				summary.TotalDuration = time.Since(startTime).Seconds()
				return summary, ctx.Err()
			case <-time.After(bi.batchDelay):
			}
		}
	}

	summary.TotalDuration = time.Since(startTime).Seconds()
	bi.logSummary(summary)
	return summary, nil
}

// importSingleURL 导入单个URL
func (bi *BatchImporter) importSingleURL(targetURL string) BatchResult {
	result := BatchResult{
		URL:         targetURL,
		ProcessedAt: time.Now(),
	}

	task, err := bi.store.CreateTask(models.CreateTaskInput{URL: targetURL, Quality: bi.quality})
	if err != nil {
		result.Error = fmt.Sprintf("创建任务失败: %v", err)
		return result
	}

	result.Success = true
	result.TaskID = task.ID
	result.Task = task
	return result
}

// logSummary 输出批量导入摘要
func (bi *BatchImporter) logSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("📊 批量导入摘要")
	utils.Infof("总URL数: %d", summary.TotalURLs)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	if summary.SkippedCount > 0 {
		utils.Infof("⏭️  重复跳过: %d", summary.SkippedCount)
	}
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("失败的URL:")
		for _, result := range summary.Results {
			if !result.Success {
				utils.Warnf("  - %s: %s", result.URL, result.Error)
			}
		}
	}
}
