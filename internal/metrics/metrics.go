// Package metrics 以 Prometheus 指标暴露遍历进度
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
)

const namespace = "sitemapextract"

// Collector 记录引擎事件,使用独立的注册表
type Collector struct {
	registry *prometheus.Registry

	runs       prometheus.Counter
	dispatched prometheus.Counter
	succeeded  prometheus.Counter
	failed     *prometheus.CounterVec
	persisted  prometheus.Counter
	sitemaps   prometheus.Gauge
	pages      prometheus.Gauge
	inFlight   prometheus.Gauge
	queued     prometheus.Gauge
	duration   prometheus.Histogram
}

// NewCollector 创建并注册全部指标
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "runs_total",
			Help: "Number of crawl runs started.",
		}),
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sitemaps_dispatched_total",
			Help: "Sitemaps handed to a worker.",
		}),
		succeeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sitemaps_succeeded_total",
			Help: "Sitemaps fetched and parsed successfully.",
		}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sitemaps_failed_total",
			Help: "Sitemaps that failed, by failure kind.",
		}, []string{"kind"}),
		persisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "items_persisted_total",
			Help: "Items written to the sink.",
		}),
		sitemaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sitemaps_discovered",
			Help: "Distinct sitemap URLs discovered in the current run.",
		}),
		pages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pages_discovered",
			Help: "Distinct page URLs discovered in the current run.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sitemaps_in_flight",
			Help: "Sitemaps currently being fetched.",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sitemaps_queued",
			Help: "Sitemaps waiting to be dispatched.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "run_duration_seconds",
			Help:    "Wall time of finished runs.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}

	c.registry.MustRegister(
		c.runs, c.dispatched, c.succeeded, c.failed, c.persisted,
		c.sitemaps, c.pages, c.inFlight, c.queued, c.duration,
	)
	return c
}

// Registry 返回注册表
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler 返回 /metrics 处理器
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RunStarted 运行计数加一,重置进度指标
func (c *Collector) RunStarted(runID string, seeds int) {
	c.runs.Inc()
	c.sitemaps.Set(float64(seeds))
	c.pages.Set(0)
	c.queued.Set(float64(seeds))
}

// NodeDispatched 派发计数
func (c *Collector) NodeDispatched(node models.SitemapNode) {
	c.dispatched.Inc()
}

// NodeSucceeded 成功计数和写入条目数
func (c *Collector) NodeSucceeded(node models.SitemapNode, summary models.SourceSummary, progress models.Progress) {
	c.succeeded.Inc()
	c.persisted.Add(float64(summary.Persisted))
	c.update(progress)
}

// NodeFailed 按失败类别计数
func (c *Collector) NodeFailed(node models.SitemapNode, err error, progress models.Progress) {
	c.failed.WithLabelValues(models.FailureKind(err)).Inc()
	c.update(progress)
}

// RunFinished 写入最终统计和运行耗时
func (c *Collector) RunFinished(result models.RunResult) {
	c.sitemaps.Set(float64(result.SitemapCount))
	c.pages.Set(float64(result.PageCount))
	c.inFlight.Set(0)
	c.queued.Set(float64(len(result.Pending)))
	c.duration.Observe(result.Duration().Seconds())
}

func (c *Collector) update(p models.Progress) {
	c.sitemaps.Set(float64(p.Sitemaps))
	c.pages.Set(float64(p.Pages))
	c.inFlight.Set(float64(p.InFlight))
	c.queued.Set(float64(p.Queued))
}

// Serve 在 addr 上提供 /metrics,ctx 结束时关闭
func (c *Collector) Serve(ctx context.Context, addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("关闭指标服务失败")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("指标服务已启动")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("指标服务异常")
		}
	}()
}
