package utils

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatFileSize 格式化字节数 (1024进制,最多两位小数,去掉末尾的0)
func FormatFileSize(bytes float64) string {
	if bytes <= 0 {
		return "0 B"
	}

	i := int(math.Floor(math.Log(bytes) / math.Log(1024)))
	if i < 0 {
		i = 0
	}
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}

	value := math.Round(bytes/math.Pow(1024, float64(i))*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[i]
}

// FormatTaskSize 格式化任务文件大小 (单位MB)
func FormatTaskSize(mb float64) string {
	return FormatFileSize(mb * 1024 * 1024)
}

// FormatDate 格式化任务创建时间,如 2025/10/29 09:15
func FormatDate(t time.Time) string {
	return t.Format("2006/01/02 15:04")
}

// FormatProgress 格式化进度百分比
func FormatProgress(progress int) string {
	return fmt.Sprintf("%d%%", progress)
}
