package models

import (
	"encoding/json"
	"time"
)

// PageBatch 单个站点地图中提取出的页面URL,交给Sink持久化的单位
// 大列表会拆成多段发布,Part 从1开始,Parts 为总段数
type PageBatch struct {
	Source       string    `json:"source"`
	URLs         []string  `json:"urls"`
	Part         int       `json:"part"`
	Parts        int       `json:"parts"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// NodeFailure 失败节点记录
type NodeFailure struct {
	URL   string `json:"url"`
	Kind  string `json:"kind"` // network|status|decompress|parse|sink
	Error string `json:"error"`
}

// SourceSummary 单个成功节点的统计
type SourceSummary struct {
	Source      string `json:"source"`
	Depth       int    `json:"depth"`
	Children    int    `json:"children"`     // 文档中的子站点地图条目(未去重)
	NewChildren int    `json:"new_children"` // 其中首次发现并入队的数量
	Pages       int    `json:"pages"`
	Persisted   int    `json:"persisted"`
}

// RunResult 一次运行的最终结果,运行结束时生成一次,之后不再修改
type RunResult struct {
	RunID string `json:"run_id"`

	// SitemapCount 访问过的不同站点地图URL总数(含种子和失败节点)
	SitemapCount int `json:"sitemap_count"`
	// PageCount 发现的不同页面URL总数
	PageCount int `json:"page_count"`

	Processed int             `json:"processed"`
	Failures  []NodeFailure   `json:"failures,omitempty"`
	Sources   []SourceSummary `json:"sources,omitempty"`

	// SinkFailures 写入Sink失败的来源,这些节点仍计为成功处理
	SinkFailures []NodeFailure `json:"sink_failures,omitempty"`

	// Cancelled 运行被外部取消,Pending 为尚未派发的站点地图
	Cancelled bool     `json:"cancelled"`
	Pending   []string `json:"pending,omitempty"`

	// AggregatePersisted 汇总站点地图列表写入的条目数
	AggregatePersisted int `json:"aggregate_persisted"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration 运行耗时
func (r RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedCount 失败节点数
func (r RunResult) FailedCount() int {
	return len(r.Failures)
}

// IsEmpty 没有任何工作(空种子)
func (r RunResult) IsEmpty() bool {
	return r.SitemapCount == 0 && r.PageCount == 0
}

// RunReport 写入 run_report.json 的运行报告
type RunReport struct {
	RunID     string    `json:"run_id"`
	Seeds     []string  `json:"seeds"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒
	FetchMode string    `json:"fetch_mode"`
	UseProxy  bool      `json:"use_proxy"`
	Workers   int       `json:"workers"`
	OutputDir string    `json:"output_dir"`
	Sinks     []string  `json:"sinks"`

	SitemapCount int  `json:"sitemap_count"`
	PageCount    int  `json:"page_count"`
	Processed    int  `json:"processed"`
	FailedCount  int  `json:"failed_count"`
	Cancelled    bool `json:"cancelled"`
	PendingCount int  `json:"pending_count"`

	Sources      []SourceSummary `json:"sources"`
	Failures     []NodeFailure   `json:"failures"`
	SinkFailures []NodeFailure   `json:"sink_failures"`
}

// NewRunReport 由运行结果生成报告
func NewRunReport(result RunResult, seeds []string) *RunReport {
	sources := result.Sources
	if sources == nil {
		sources = []SourceSummary{}
	}
	failures := result.Failures
	if failures == nil {
		failures = []NodeFailure{}
	}
	sinkFailures := result.SinkFailures
	if sinkFailures == nil {
		sinkFailures = []NodeFailure{}
	}

	return &RunReport{
		RunID:        result.RunID,
		Seeds:        seeds,
		StartTime:    result.StartedAt,
		EndTime:      result.FinishedAt,
		Duration:     result.Duration().Seconds(),
		SitemapCount: result.SitemapCount,
		PageCount:    result.PageCount,
		Processed:    result.Processed,
		FailedCount:  result.FailedCount(),
		Cancelled:    result.Cancelled,
		PendingCount: len(result.Pending),
		Sources:      sources,
		Failures:     failures,
		SinkFailures: sinkFailures,
	}
}

// ToJSON 序列化为JSON
func (r *RunReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *RunReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}

// Progress 运行中的计数快照,随观察者事件一起发出
type Progress struct {
	Processed int `json:"processed"` // 已完成(成功+失败)的站点地图
	Failed    int `json:"failed"`
	Sitemaps  int `json:"sitemaps"` // 已发现的不同站点地图
	Pages     int `json:"pages"`    // 已发现的不同页面
	InFlight  int `json:"in_flight"`
	Queued    int `json:"queued"`
}
