package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/SitemapExtract/internal/core"
	"github.com/RecoveryAshes/SitemapExtract/internal/models"
	"github.com/RecoveryAshes/SitemapExtract/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	quiet      bool
	logLevel   string

	// HTTP头部参数
	headers        []string
	headersFile    string
	validateConfig bool

	// 输入参数
	targetURL string
	urlFile   string
	directory string

	// 抓取参数
	noScraper   bool
	useBrowser  bool
	useProxy    bool
	proxyURL    string
	workers     int
	maxSitemaps int

	// 输出参数
	outputDir   string
	sinks       []string
	metricsAddr string
	resume      bool
	progress    bool
)

// 运行时状态,由 PersistentPreRunE 初始化
var (
	appConfig *core.Config
	logger    = zerolog.Nop()
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "sitemapextract",
	Short: "站点地图树遍历与URL提取工具",
	Long: `SitemapExtract - 站点地图树遍历与URL提取工具

从一个或多个站点地图出发,递归展开 sitemap index,提取全部页面URL:
  • 支持 .xml.gz 压缩站点地图和本地文件
  • 站点地图与页面URL全局去重
  • 三种抓取方式: 普通HTTP / 模拟浏览器客户端 / 无头浏览器
  • 可选代理
  • 结果写入文本文件、SQLite、PostgreSQL、Redis、Kafka 或 Neo4j
  • Ctrl+C 中断后可用 --resume 继续

示例:
  # 单个站点地图
  sitemapextract -u https://example.com/sitemap_index.xml

  # 从文件和目录读取站点地图
  sitemapextract -f sitemaps.txt -d ./downloaded

  # 通过代理,同时写入 SQLite
  sitemapextract -u https://example.com/sitemap.xml --proxy-url http://127.0.0.1:8080 --sink file --sink sqlite

  # 验证配置文件
  sitemapextract --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 命令行参数覆盖配置文件
		config.MergeCLIFlags(core.CLIFlags{
			NoScraper:   noScraper,
			Browser:     useBrowser,
			Proxy:       useProxy,
			ProxyURL:    proxyURL,
			Workers:     workers,
			MaxSitemaps: maxSitemaps,
			OutputDir:   outputDir,
			Sinks:       sinks,
			MetricsAddr: metricsAddr,
			HeadersFile: headersFile,
			LogLevel:    logLevel,
			Verbose:     verbose,
		})

		// 初始化日志系统
		l, closer, err := utils.NewLogger(utils.LogConfig{
			Level:      config.Logging.Level,
			LogDir:     config.Logging.LogDir,
			MaxSize:    config.Logging.Rotation.MaxSize,
			MaxBackups: config.Logging.Rotation.MaxBackups,
			MaxAge:     config.Logging.Rotation.MaxAge,
			Compress:   config.Logging.Rotation.Compress,
			Quiet:      quiet,
		})
		if err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		logger, logCloser, appConfig = l, closer, config

		if verbose {
			logger.Info().Msg("详细模式已启用")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateConfig {
			return runValidateConfig(appConfig, configFile, headers)
		}

		if err := ValidateFlags(targetURL, workers, maxSitemaps); err != nil {
			return err
		}
		if err := appConfig.Validate(); err != nil {
			return fmt.Errorf("配置无效: %w", err)
		}

		// 设置信号处理(Ctrl+C优雅退出)
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			if errors.Is(ctx.Err(), context.Canceled) {
				logger.Warn().Msg("收到中断信号, 正在优雅关闭...")
			}
		}()

		runner := core.NewRunner(appConfig, logger)
		result, err := runner.Run(ctx, core.RunOptions{
			Seeds: core.SeedInput{
				URL:       targetURL,
				File:      urlFile,
				Directory: directory,
			},
			CLIHeaders: headers,
			Resume:     resume,
			Progress:   progress,
		})
		if errors.Is(err, models.ErrNoSeeds) {
			logger.Error().Msg("Error: No URLs provided to process")
			_ = cmd.Usage()
			return err
		}
		if err != nil {
			return err
		}

		printSummary(cmd.OutOrStdout(), result)

		if result.Cancelled {
			logger.Warn().Msg("⚠️ 运行被中断")
			return nil
		}
		logger.Info().Msg("✨ 站点地图提取完成!")
		return nil
	},
}

// printSummary 输出运行统计
func printSummary(w io.Writer, result models.RunResult) {
	fmt.Fprintln(w, "\n==================================================")
	fmt.Fprintln(w, "📊 运行统计")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "✅ 站点地图数(去重): %d\n", result.SitemapCount)
	fmt.Fprintf(w, "✅ 页面URL数(去重): %d\n", result.PageCount)
	fmt.Fprintf(w, "✅ 已处理: %d\n", result.Processed)
	fmt.Fprintf(w, "❌ 失败: %d\n", result.FailedCount())
	if n := len(result.SinkFailures); n > 0 {
		fmt.Fprintf(w, "⚠️  写入失败: %d\n", n)
	}
	if result.Cancelled {
		fmt.Fprintf(w, "⏸️  未处理: %d\n", len(result.Pending))
	}
	fmt.Fprintf(w, "⏱️  总耗时: %.2f秒\n", result.Duration().Seconds())
	fmt.Fprintln(w, "==================================================")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "SitemapExtract %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "构建时间: %s\n", BuildTime)
	},
}

var (
	initOutput string
	initForce  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "生成默认配置文件和请求头配置",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd.OutOrStdout(), initOutput, headersFile, initForce)
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径 (默认搜索 ./configs, ., $XDG_CONFIG_HOME/sitemapextract)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "不输出到控制台,只写日志文件")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().StringVar(&headersFile, "headers-file", "", "请求头与身份池配置文件 (默认 configs/headers.yaml)")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 输入参数
	rootCmd.Flags().StringVarP(&targetURL, "url", "u", "", "站点地图URL")
	rootCmd.Flags().StringVarP(&urlFile, "file", "f", "", "包含站点地图URL列表的文件,每行一个")
	rootCmd.Flags().StringVarP(&directory, "directory", "d", "", "包含 .xml/.xml.gz 站点地图的目录")

	// 抓取参数
	rootCmd.Flags().BoolVar(&noScraper, "no-scraper", false, "使用普通HTTP客户端")
	rootCmd.Flags().BoolVar(&useBrowser, "browser", false, "使用无头浏览器抓取")
	rootCmd.Flags().BoolVar(&useProxy, "proxy", false, "使用 fetch.proxy_url 配置的代理")
	rootCmd.Flags().StringVar(&proxyURL, "proxy-url", "", "代理地址,隐含 --proxy")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 0, "并发抓取数 (0 使用配置文件)")
	rootCmd.Flags().IntVar(&maxSitemaps, "max-sitemaps", 0, "站点地图数量上限 (0 使用配置文件)")

	// 输出参数
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "输出目录")
	rootCmd.Flags().StringSliceVar(&sinks, "sink", nil, "持久化目标 (file|sqlite|postgres|redis|kafka|neo4j),可多次指定")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Prometheus 指标服务地址,例如 :9091")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "从断点恢复")
	rootCmd.Flags().BoolVar(&progress, "progress", false, "显示进度条")

	initCmd.Flags().StringVarP(&initOutput, "output", "o", core.DefaultConfigFile, "配置文件输出路径")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "覆盖已存在的配置文件")

	// 添加子命令
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
