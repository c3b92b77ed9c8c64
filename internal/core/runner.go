package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/rs/zerolog"

	"github.com/RecoveryAshes/SitemapExtract/internal/crawlers"
	"github.com/RecoveryAshes/SitemapExtract/internal/metrics"
	"github.com/RecoveryAshes/SitemapExtract/internal/models"
	"github.com/RecoveryAshes/SitemapExtract/internal/sink"
	"github.com/RecoveryAshes/SitemapExtract/internal/utils"
)

// RunOptions 一次运行的输入
type RunOptions struct {
	Seeds      SeedInput
	CLIHeaders []string

	// Resume 从 checkpoint.path 恢复
	Resume bool

	// Progress 显示进度条,输出到 ProgressOut (默认 stderr)
	Progress    bool
	ProgressOut io.Writer

	// Fetcher/Sink 非空时替换按配置构建的组件
	Fetcher crawlers.Fetcher
	Sink    sink.Sink
}

// Runner 按配置组装各组件并执行一次遍历
type Runner struct {
	cfg    *Config
	logger zerolog.Logger
}

// NewRunner 创建运行器
func NewRunner(cfg *Config, logger zerolog.Logger) *Runner {
	return &Runner{cfg: cfg, logger: logger}
}

// Run 执行遍历
// 执行流程:
//  1. 收集种子
//  2. 加载请求头与身份池
//  3. 构建抓取链和Sink
//  4. 运行引擎
//  5. 取消时保存断点,最后生成报告
func (r *Runner) Run(ctx context.Context, opts RunOptions) (models.RunResult, error) {
	cfg := r.cfg

	var cp *models.Checkpoint
	if opts.Resume {
		loaded, err := models.LoadCheckpointFromFile(cfg.Checkpoint.Path)
		switch {
		case err == nil:
			r.logger.Info().
				Str("path", cfg.Checkpoint.Path).
				Int("pending", len(loaded.Pending)).
				Int("failed", len(loaded.Failed)).
				Msg("从断点恢复")
			cp = loaded
		case errors.Is(err, fs.ErrNotExist):
			r.logger.Warn().Str("path", cfg.Checkpoint.Path).Msg("断点文件不存在,从头开始")
		default:
			return models.RunResult{}, err
		}
	}

	var seeds []string
	if cp != nil && opts.Seeds.IsEmpty() {
		// 只给 --resume 时沿用断点里的种子
		seeds = cp.Seeds
		r.logger.Info().Int("seeds", len(seeds)).Msg("使用断点中保存的种子")
	} else {
		collected, err := CollectSeeds(opts.Seeds, r.logger)
		if err != nil {
			return models.RunResult{}, err
		}
		seeds = collected
	}
	r.logger.Info().Msgf("Starting to process %d sitemaps", len(seeds))

	hm, err := NewHeaderManager(cfg.Headers.File, opts.CLIHeaders, r.logger)
	if err != nil {
		return models.RunResult{}, err
	}
	if err := hm.Prepare(); err != nil {
		return models.RunResult{}, err
	}
	r.logger.Debug().Interface("headers", hm.GetSafeHeaders()).Int("user_agents", len(hm.UserAgents())).Msg("请求头已就绪")

	monitor := crawlers.NewResourceMonitor(crawlers.ResourceMonitorConfig{}, r.logger)
	workers := monitor.RecommendedWorkers(cfg.Crawl.Workers)
	if cfg.Fetch.UseBrowser {
		cfg.Fetch.BrowserPages = monitor.MaxPages(cfg.Fetch.BrowserPages)
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		built, err := crawlers.BuildFetcher(cfg.Fetch, hm, r.logger)
		if err != nil {
			return models.RunResult{}, err
		}
		defer built.Close()
		fetcher = built
	}
	r.logger.Info().
		Str("mode", cfg.Fetch.Mode()).
		Bool("proxy", cfg.Fetch.UseProxy).
		Str("proxy_url", utils.RedactURL(cfg.Fetch.ProxyURL)).
		Int("workers", workers).
		Msg("抓取器已就绪")

	out := opts.Sink
	if out == nil {
		built, err := BuildSink(cfg, r.logger)
		if err != nil {
			return models.RunResult{}, err
		}
		defer func() {
			if err := built.Close(); err != nil {
				r.logger.Warn().Err(err).Msg("关闭sink失败")
			}
		}()
		out = built
	}

	engineOpts := []EngineOption{
		WithWorkers(workers),
		WithLogger(r.logger),
		WithMaxSitemaps(cfg.Crawl.MaxSitemaps),
		WithAggregateName(cfg.Output.AggregateName),
		WithObserver(NewLogObserver(r.logger)),
	}

	if cp != nil {
		engineOpts = append(engineOpts, WithCheckpoint(cp))
	}

	if opts.Progress {
		w := opts.ProgressOut
		if w == nil {
			w = os.Stderr
		}
		engineOpts = append(engineOpts, WithObserver(utils.NewProgressObserver(w)))
	}

	if cfg.Metrics.Addr != "" {
		collector := metrics.NewCollector()
		metricsCtx, stop := context.WithCancel(context.Background())
		defer stop()
		collector.Serve(metricsCtx, cfg.Metrics.Addr, r.logger)
		engineOpts = append(engineOpts, WithObserver(collector))
	}

	engine := NewEngine(fetcher, out, engineOpts...)
	result, runErr := engine.Run(ctx, seeds)

	r.saveCheckpoint(engine, result, opts.Resume)

	if cfg.Output.Report && !result.IsEmpty() {
		report := models.NewRunReport(result, seeds)
		report.FetchMode = cfg.Fetch.Mode()
		report.UseProxy = cfg.Fetch.UseProxy
		report.Workers = workers
		report.OutputDir = cfg.Output.Dir
		report.Sinks = cfg.Sink.Kinds

		reporter := utils.NewReporter(cfg.Output.Dir, cfg.Output.Markdown, r.logger)
		if err := reporter.GenerateReport(report); err != nil {
			r.logger.Error().Err(err).Msg("生成报告失败")
		}
	}

	return result, runErr
}

// saveCheckpoint 取消时写入断点;恢复后完整跑完则删除断点
func (r *Runner) saveCheckpoint(engine *Engine, result models.RunResult, resumed bool) {
	path := r.cfg.Checkpoint.Path
	if path == "" {
		return
	}

	if result.Cancelled {
		cp := engine.Checkpoint()
		if cp == nil {
			return
		}
		if err := cp.SaveToFile(path); err != nil {
			r.logger.Error().Err(err).Str("path", path).Msg("保存断点失败")
			return
		}
		r.logger.Info().Str("path", path).Int("pending", len(cp.Pending)).Msg("💾 断点已保存,使用 --resume 继续")
		return
	}

	if resumed {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn().Err(err).Str("path", path).Msg("删除断点失败")
		}
	}
}

// BuildSink 按 sink.kinds 创建Sink,多个时组合为 MultiSink
func BuildSink(cfg *Config, logger zerolog.Logger) (sink.Sink, error) {
	sinks := make([]sink.Sink, 0, len(cfg.Sink.Kinds))
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}

	for _, kind := range cfg.Sink.Kinds {
		s, err := newSink(kind, cfg, logger)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("创建%s sink失败: %w", kind, err)
		}
		sinks = append(sinks, s)
		logger.Debug().Str("kind", kind).Msg("sink已创建")
	}

	switch len(sinks) {
	case 0:
		return nil, fmt.Errorf("sink.kinds 至少需要一个")
	case 1:
		return sinks[0], nil
	default:
		return sink.NewMultiSink(sinks...), nil
	}
}

func newSink(kind string, cfg *Config, logger zerolog.Logger) (sink.Sink, error) {
	sc := cfg.Sink
	switch kind {
	case sink.KindFile:
		return sink.NewFileSink(cfg.Output.Dir, logger)
	case sink.KindSQLite:
		dir := sc.SQLiteDir
		if dir == "" {
			dir = cfg.Output.Dir
		}
		return sink.NewSQLiteSink(dir, logger)
	case sink.KindPostgres:
		return sink.NewPostgresSink(sc.PostgresDSN, logger)
	case sink.KindRedis:
		return sink.NewRedisSink(sc.RedisAddr, sc.RedisPrefix), nil
	case sink.KindKafka:
		return sink.NewKafkaSink(sc.KafkaBrokers, sc.KafkaTopic), nil
	case sink.KindNeo4j:
		return sink.NewNeo4jSink(sc.Neo4jURI, sc.Neo4jUser, sc.Neo4jPassword, cfg.Output.AggregateName)
	default:
		return nil, fmt.Errorf("不支持的sink类型: %s", kind)
	}
}
