package core

import (
	"github.com/rs/zerolog"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
)

// LogObserver 把引擎事件写成带时间戳的进度行
type LogObserver struct {
	logger     zerolog.Logger
	dispatched int
	total      int
}

// NewLogObserver 创建日志观察者
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

// RunStarted 记录种子数,作为进度分母的初始值
func (o *LogObserver) RunStarted(runID string, seeds int) {
	o.dispatched = 0
	o.total = seeds
	o.logger.Info().Str("run_id", runID).Int("seeds", seeds).
		Msgf("Starting processing of %d initial sitemaps", seeds)
}

// NodeDispatched 输出 "Processing sitemap x/y" 和抓取方式
func (o *LogObserver) NodeDispatched(node models.SitemapNode) {
	o.dispatched++
	o.logger.Info().Str("url", node.URL).Int("depth", node.Depth).
		Msgf("Processing sitemap %d/%d: %s", o.dispatched, o.total, node.URL)

	if node.IsCompressed {
		o.logger.Debug().Msgf("Fetching and decompressing %s", node.URL)
	} else {
		o.logger.Debug().Msgf("Fetching XML from %s", node.URL)
	}
}

// NodeSucceeded 输出本节点发现的子站点地图数和页面数,随后输出进度
func (o *LogObserver) NodeSucceeded(node models.SitemapNode, summary models.SourceSummary, progress models.Progress) {
	o.total = progress.Sitemaps
	o.logger.Info().
		Str("url", node.URL).
		Int("sitemaps", summary.Children).
		Int("pages", summary.Pages).
		Msgf("Found %d sitemaps and %d pages in %s", summary.Children, summary.Pages, node.URL)
	o.progress(progress)
}

// NodeFailed 失败按类别记为警告,运行继续
func (o *LogObserver) NodeFailed(node models.SitemapNode, err error, progress models.Progress) {
	o.total = progress.Sitemaps
	o.logger.Warn().
		Str("url", node.URL).
		Str("kind", models.FailureKind(err)).
		Msgf("Failed to process %s: %v", node.URL, err)
	o.progress(progress)
}

func (o *LogObserver) progress(p models.Progress) {
	o.logger.Info().Int("processed", p.Processed).Int("sitemaps", p.Sitemaps).
		Msgf("Progress: %d/%d sitemaps processed", p.Processed, p.Sitemaps)
	o.logger.Info().Int("pages", p.Pages).
		Msgf("Total URLs found so far: %d", p.Pages)
}

// RunFinished 输出最终统计
func (o *LogObserver) RunFinished(result models.RunResult) {
	if result.Cancelled {
		o.logger.Warn().Int("pending", len(result.Pending)).Msg("Processing interrupted")
	} else {
		o.logger.Info().Msg("Completed processing")
	}
	o.logger.Info().Int("sitemaps", result.SitemapCount).
		Msgf("Total sitemaps processed: %d", result.SitemapCount)
	o.logger.Info().Int("pages", result.PageCount).
		Msgf("Total URLs extracted: %d", result.PageCount)
	if n := result.FailedCount(); n > 0 {
		o.logger.Warn().Int("failed", n).Msgf("%d sitemaps failed", n)
	}
	o.logger.Info().Dur("duration", result.Duration()).Msg("⏱️  运行结束")
}
