package models

import (
	"encoding/json"
	"time"
)

// FoundLink 分析中发现的视频资源
type FoundLink struct {
	URL     string  `json:"url"`
	Type    string  `json:"type"` // m3u8, mp4 ...
	Quality Quality `json:"quality"`
	Size    string  `json:"size"` // 估算大小(展示用)
}

// AntiCrawlerMeasure 某一级别的反爬措施
type AntiCrawlerMeasure struct {
	Level      string   `json:"level"`
	Measures   []string `json:"measures"`
	Bypassable bool     `json:"bypassable"`
}

// RobotsTxt robots.txt检查结果
type RobotsTxt struct {
	Allowed    bool `json:"allowed"`
	CrawlDelay int  `json:"crawlDelay"` // 秒
}

// AnalysisResult URL分析结果
// 链接/反爬/合规字段仅作透传展示,不做校验
type AnalysisResult struct {
	URL                 string               `json:"url"`
	Domain              string               `json:"domain"`
	Title               string               `json:"title"`
	ContentType         string               `json:"contentType"`
	FoundLinks          []FoundLink          `json:"foundLinks"`
	AntiCrawlerMeasures []AntiCrawlerMeasure `json:"antiCrawlerMeasures"`
	RecommendedStrategy string               `json:"recommendedStrategy"`
	RobotsTxt           RobotsTxt            `json:"robotsTxt"`
	LegalStatus         string               `json:"legalStatus"`
	AnalyzedAt          time.Time            `json:"analyzedAt"`
}

// CannedAnalysis 返回固定的模拟分析结果
// url/domain 使用请求的地址,其余字段为固定数据
func CannedAnalysis(url, domain string, analyzedAt time.Time) *AnalysisResult {
	return &AnalysisResult{
		URL:         url,
		Domain:      domain,
		Title:       "复仇者联盟4：终局之战",
		ContentType: "HLS",
		FoundLinks: []FoundLink{
			{URL: "https://cdn.example.com/videos/avengers4/1080p/index.m3u8", Type: "m3u8", Quality: Quality1080p, Size: "~3.2GB"},
			{URL: "https://cdn.example.com/videos/avengers4/720p/index.m3u8", Type: "m3u8", Quality: Quality720p, Size: "~1.8GB"},
			{URL: "https://cdn.example.com/videos/avengers4/480p/index.m3u8", Type: "m3u8", Quality: Quality480p, Size: "~950MB"},
		},
		AntiCrawlerMeasures: []AntiCrawlerMeasure{
			{Level: "初级", Measures: []string{"User-Agent检测", "IP频率限制"}, Bypassable: true},
			{Level: "中级", Measures: []string{"JS加密参数"}, Bypassable: true},
		},
		RecommendedStrategy: "HLS流媒体下载策略",
		RobotsTxt:           RobotsTxt{Allowed: true, CrawlDelay: 1},
		LegalStatus:         "符合爬虫规则",
		AnalyzedAt:          analyzedAt,
	}
}

// Clone 深拷贝分析结果
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	c := *r
	c.FoundLinks = append([]FoundLink(nil), r.FoundLinks...)
	c.AntiCrawlerMeasures = make([]AntiCrawlerMeasure, len(r.AntiCrawlerMeasures))
	for i, m := range r.AntiCrawlerMeasures {
		m.Measures = append([]string(nil), m.Measures...)
		c.AntiCrawlerMeasures[i] = m
	}
	return &c
}

// TaskInputForLink 根据分析结果中的某个资源生成创建任务的输入
func (r *AnalysisResult) TaskInputForLink(link FoundLink) CreateTaskInput {
	return CreateTaskInput{
		URL:     r.URL,
		Title:   r.Title,
		Quality: string(link.Quality),
	}
}

// ToJSON 序列化为JSON
func (r *AnalysisResult) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
