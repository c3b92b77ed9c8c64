package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/RecoveryAshes/SitemapExtract/internal/crawlers"
	"github.com/RecoveryAshes/SitemapExtract/internal/models"
	"github.com/RecoveryAshes/SitemapExtract/internal/sink"
)

// DefaultAggregateName 汇总站点地图列表的来源名
const DefaultAggregateName = "sitemap_index"

// DefaultWorkers 默认并发数
const DefaultWorkers = 4

// Observer 接收引擎事件
// 所有回调都在协调协程中同步调用,实现方不需要加锁,但不应阻塞
type Observer interface {
	RunStarted(runID string, seeds int)
	NodeDispatched(node models.SitemapNode)
	NodeSucceeded(node models.SitemapNode, summary models.SourceSummary, progress models.Progress)
	NodeFailed(node models.SitemapNode, err error, progress models.Progress)
	RunFinished(result models.RunResult)
}

// Engine 站点地图树遍历引擎
//
// 协调协程独占 Frontier: 负责出队、派发、合并子站点地图和页面。
// 工作协程只做 抓取 → 解析 → 持久化本节点的页面和父子边,然后把结果发回协调协程。
// 只有抓取和解析错误使节点失败; 写入失败记入 SinkFailures,遍历照常继续。
// 并发数由 workers 限制,结果通道容量等于 workers,协调协程只在
// 有空闲名额时派发,因此工作协程发送结果时不会阻塞。
type Engine struct {
	fetcher crawlers.Fetcher
	sink    sink.Sink
	parse   crawlers.ParseFunc

	workers       int
	maxSitemaps   int
	aggregateName string
	observers     []Observer
	resume        *models.Checkpoint
	logger        zerolog.Logger

	// 最近一次运行结束时的边界快照
	checkpoint *models.Checkpoint
}

// EngineOption 引擎选项
type EngineOption func(*Engine)

// WithWorkers 设置并发数,小于1时使用默认值
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger 设置日志器
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithObserver 添加事件观察者
func WithObserver(observers ...Observer) EngineOption {
	return func(e *Engine) {
		for _, o := range observers {
			if o != nil {
				e.observers = append(e.observers, o)
			}
		}
	}
}

// WithMaxSitemaps 站点地图数量上限,达到后不再接收新的子站点地图
func WithMaxSitemaps(n int) EngineOption {
	return func(e *Engine) {
		e.maxSitemaps = n
	}
}

// WithAggregateName 汇总列表的来源名
func WithAggregateName(name string) EngineOption {
	return func(e *Engine) {
		if name != "" {
			e.aggregateName = name
		}
	}
}

// WithParser 替换解析函数
func WithParser(fn crawlers.ParseFunc) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.parse = fn
		}
	}
}

// WithCheckpoint 从检查点恢复边界
func WithCheckpoint(cp *models.Checkpoint) EngineOption {
	return func(e *Engine) {
		e.resume = cp
	}
}

// NewEngine 创建引擎
func NewEngine(fetcher crawlers.Fetcher, s sink.Sink, opts ...EngineOption) *Engine {
	e := &Engine{
		fetcher:       fetcher,
		sink:          s,
		parse:         crawlers.ParseSitemap,
		workers:       DefaultWorkers,
		aggregateName: DefaultAggregateName,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Workers 实际并发数
func (e *Engine) Workers() int {
	return e.workers
}

// Checkpoint 最近一次运行结束时的边界快照,未运行时为nil
func (e *Engine) Checkpoint() *models.Checkpoint {
	return e.checkpoint
}

type taskResult struct {
	node      models.SitemapNode
	doc       crawlers.SitemapDocument
	persisted int

	// err 抓取或解析失败,节点记为失败
	err error

	// persistErr 和 edgeErr 只记录,不影响子站点地图和页面的合并
	persistErr error
	edgeErr    error
}

// Run 从种子开始遍历站点地图树
//
// 单个节点的失败不会中断运行。ctx 取消后停止派发,等待进行中的任务结束,
// 返回 Cancelled=true 的部分结果,Pending 为尚未处理的站点地图。
// 只有汇总列表持久化失败时返回错误。
func (e *Engine) Run(ctx context.Context, seeds []string) (models.RunResult, error) {
	result := models.RunResult{
		RunID:     models.NewRunID(),
		StartedAt: time.Now(),
	}

	frontier := crawlers.NewFrontier()
	if e.resume != nil {
		frontier.Restore(e.resume)
		if e.resume.RunID != "" {
			result.RunID = e.resume.RunID
		}
	}
	frontier.Seed(seeds)

	if frontier.Len() == 0 && frontier.SitemapCount() == 0 {
		e.logger.Warn().Msg("没有需要处理的站点地图")
		result.FinishedAt = time.Now()
		e.checkpoint = nil
		e.notify(func(o Observer) { o.RunFinished(result) })
		return result, nil
	}

	logger := e.logger.With().Str("run_id", result.RunID).Logger()
	logger.Debug().Int("workers", e.workers).Int("seeds", frontier.Len()).Msg("开始遍历")
	e.notify(func(o Observer) { o.RunStarted(result.RunID, frontier.Len()) })

	var g errgroup.Group
	g.SetLimit(e.workers)
	results := make(chan taskResult, e.workers)
	inFlight := 0

	for {
		for ctx.Err() == nil && inFlight < e.workers {
			node, ok := frontier.Next()
			if !ok {
				break
			}
			inFlight++
			e.notify(func(o Observer) { o.NodeDispatched(node) })

			g.Go(func() error {
				results <- e.process(ctx, node)
				return nil
			})
		}

		if inFlight == 0 {
			break
		}

		r := <-results
		inFlight--
		e.merge(ctx, frontier, &result, r, inFlight, logger)
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		result.Cancelled = true
		result.Pending = frontier.Pending()
		logger.Warn().Int("pending", len(result.Pending)).Msg("运行被取消,返回部分结果")
	}

	result.SitemapCount = frontier.SitemapCount()
	result.PageCount = frontier.PageCount()
	e.checkpoint = e.snapshot(frontier, seeds, result.RunID)

	// 取消后仍写出已发现的站点地图,保证部分结果可用
	aggCtx := context.WithoutCancel(ctx)
	n, err := e.sink.Persist(aggCtx, e.aggregateName, frontier.Sitemaps())
	result.AggregatePersisted = n
	result.FinishedAt = time.Now()

	e.notify(func(o Observer) { o.RunFinished(result) })

	if err != nil {
		return result, fmt.Errorf("写入汇总列表失败: %w", err)
	}
	return result, nil
}

// process 在工作协程中执行: 抓取 → 解析 → 持久化本节点的页面和父子边
func (e *Engine) process(ctx context.Context, node models.SitemapNode) taskResult {
	r := taskResult{node: node}

	body, err := e.fetcher.Fetch(ctx, node.URL, node.IsCompressed)
	if err != nil {
		r.err = err
		return r
	}

	doc, err := e.parse(body)
	if err != nil {
		var pe *models.ParseError
		if errors.As(err, &pe) && pe.URL == "" {
			pe.URL = node.URL
		}
		r.err = err
		return r
	}
	r.doc = doc

	n, err := e.sink.Persist(ctx, node.URL, doc.Pages)
	if err != nil {
		r.persistErr = &models.SinkError{Source: node.URL, Cause: err}
	} else {
		r.persisted = n
	}

	// 边写入是幂等的,按文档中的全部子站点地图写,不依赖协调协程的去重结果
	if es, ok := e.sink.(sink.EdgeSink); ok && len(doc.Sitemaps) > 0 {
		r.edgeErr = es.PersistEdges(ctx, node.URL, doc.Sitemaps)
	}
	return r
}

// merge 在协调协程中合并工作协程的结果
func (e *Engine) merge(ctx context.Context, frontier *crawlers.Frontier, result *models.RunResult, r taskResult, inFlight int, logger zerolog.Logger) {
	node := r.node

	// 取消导致的中断放回队列,留给下次恢复
	if ctx.Err() != nil && (models.FailureKind(r.err) == "cancelled" || models.FailureKind(r.persistErr) == "cancelled") {
		frontier.Requeue(node.URL)
		logger.Debug().Str("url", node.URL).Msg("任务被取消,重新排队")
		return
	}

	if r.err != nil {
		frontier.MarkFailed(node.URL)
		result.Processed++
		result.Failures = append(result.Failures, models.NodeFailure{
			URL:   node.URL,
			Kind:  models.FailureKind(r.err),
			Error: r.err.Error(),
		})
		logger.Error().Err(r.err).Str("url", node.URL).Str("kind", models.FailureKind(r.err)).Msg("站点地图处理失败")

		progress := e.progress(frontier, result, inFlight)
		e.notify(func(o Observer) { o.NodeFailed(node, r.err, progress) })
		return
	}

	added := make([]string, 0, len(r.doc.Sitemaps))
	dropped := 0
	for _, child := range r.doc.Sitemaps {
		if _, seen := frontier.State(child); seen {
			continue
		}
		if e.maxSitemaps > 0 && frontier.SitemapCount() >= e.maxSitemaps {
			dropped++
			continue
		}
		if frontier.Offer(child, node.URL) {
			added = append(added, child)
		}
	}
	if dropped > 0 {
		logger.Warn().Int("max_sitemaps", e.maxSitemaps).Int("dropped", dropped).Str("url", node.URL).Msg("达到站点地图数量上限,忽略新发现的子站点地图")
	}
	frontier.AddPages(r.doc.Pages)
	frontier.MarkDone(node.URL)
	result.Processed++

	if r.persistErr != nil {
		result.SinkFailures = append(result.SinkFailures, models.NodeFailure{
			URL:   node.URL,
			Kind:  models.FailureKind(r.persistErr),
			Error: r.persistErr.Error(),
		})
		logger.Error().Err(r.persistErr).Str("url", node.URL).Msg("页面列表写入失败,继续遍历子站点地图")
	}
	if r.edgeErr != nil {
		logger.Warn().Err(r.edgeErr).Str("url", node.URL).Msg("写入站点地图边失败")
	}

	summary := models.SourceSummary{
		Source:      node.URL,
		Depth:       node.Depth,
		Children:    len(r.doc.Sitemaps),
		NewChildren: len(added),
		Pages:       len(r.doc.Pages),
		Persisted:   r.persisted,
	}
	result.Sources = append(result.Sources, summary)

	progress := e.progress(frontier, result, inFlight)
	e.notify(func(o Observer) { o.NodeSucceeded(node, summary, progress) })
}

func (e *Engine) progress(frontier *crawlers.Frontier, result *models.RunResult, inFlight int) models.Progress {
	return models.Progress{
		Processed: result.Processed,
		Failed:    len(result.Failures),
		Sitemaps:  frontier.SitemapCount(),
		Pages:     frontier.PageCount(),
		InFlight:  inFlight,
		Queued:    frontier.Len(),
	}
}

func (e *Engine) snapshot(frontier *crawlers.Frontier, seeds []string, runID string) *models.Checkpoint {
	now := time.Now()
	cp := &models.Checkpoint{
		RunID:     runID,
		Seeds:     seeds,
		Sitemaps:  frontier.Sitemaps(),
		Pending:   frontier.Pending(),
		Failed:    frontier.Failed(),
		Pages:     frontier.Pages(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if e.resume != nil && !e.resume.CreatedAt.IsZero() {
		cp.CreatedAt = e.resume.CreatedAt
	}
	return cp
}

func (e *Engine) notify(fn func(Observer)) {
	for _, o := range e.observers {
		fn(o)
	}
}
