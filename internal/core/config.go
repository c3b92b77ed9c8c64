package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
	"github.com/RecoveryAshes/SitemapExtract/internal/sink"
)

// AppName 应用名,用于配置目录
const AppName = "sitemapextract"

// EnvPrefix 环境变量前缀,例如 SITEMAP_FETCH_USE_PROXY=true
const EnvPrefix = "SITEMAP"

// Config 应用程序配置
type Config struct {
	Crawl      models.CrawlConfig `mapstructure:"crawl" yaml:"crawl"`
	Fetch      models.FetchConfig `mapstructure:"fetch" yaml:"fetch"`
	Headers    HeadersConfig      `mapstructure:"headers" yaml:"headers"`
	Output     OutputConfig       `mapstructure:"output" yaml:"output"`
	Sink       SinkConfig         `mapstructure:"sink" yaml:"sink"`
	Logging    LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Metrics    MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
	Checkpoint CheckpointConfig   `mapstructure:"checkpoint" yaml:"checkpoint"`
}

// HeadersConfig 请求头配置文件位置
type HeadersConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	Dir           string `mapstructure:"dir" yaml:"dir"`
	AggregateName string `mapstructure:"aggregate_name" yaml:"aggregate_name"`
	Report        bool   `mapstructure:"report" yaml:"report"`
	Markdown      bool   `mapstructure:"markdown" yaml:"markdown"`
}

// SinkConfig 持久化目标配置
type SinkConfig struct {
	Kinds []string `mapstructure:"kinds" yaml:"kinds"`

	// SQLiteDir 为空时使用 output.dir
	SQLiteDir   string `mapstructure:"sqlite_dir" yaml:"sqlite_dir"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`

	RedisAddr   string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix" yaml:"redis_prefix"`

	KafkaBrokers []string `mapstructure:"kafka_brokers" yaml:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic" yaml:"kafka_topic"`

	Neo4jURI      string `mapstructure:"neo4j_uri" yaml:"neo4j_uri"`
	Neo4jUser     string `mapstructure:"neo4j_user" yaml:"neo4j_user"`
	Neo4jPassword string `mapstructure:"neo4j_password" yaml:"neo4j_password"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level" yaml:"level"`
	LogDir   string         `mapstructure:"log_dir" yaml:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int  `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig 指标服务配置,Addr 为空时不启动
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// CheckpointConfig 断点文件配置
type CheckpointConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ConfigSearchPaths 未指定配置文件时的搜索目录,按优先级
func ConfigSearchPaths() []string {
	paths := []string{"./configs", ".", filepath.Join(xdg.ConfigHome, AppName)}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, "."+AppName))
	}
	return paths
}

// LoadConfig 加载配置
// 顺序: .env → 默认值 → 配置文件 → SITEMAP_ 环境变量
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取.env失败: %w", err)
	}

	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range ConfigSearchPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
		// 配置文件不存在,使用默认值
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: fmt.Errorf("解析配置文件失败: %w", err)}
	}

	return &config, nil
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	var config Config
	if err := newViper().Unmarshal(&config); err != nil {
		panic(err)
	}
	return &config
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 遍历配置默认值
	v.SetDefault("crawl.workers", DefaultWorkers)
	v.SetDefault("crawl.max_sitemaps", 0)

	// 抓取配置默认值
	v.SetDefault("fetch.use_scraper_client", true)
	v.SetDefault("fetch.use_browser", false)
	v.SetDefault("fetch.headless", true)
	v.SetDefault("fetch.use_proxy", false)
	v.SetDefault("fetch.proxy_url", "")
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.max_body_size", 50*1024*1024)
	v.SetDefault("fetch.insecure_skip_verify", false)
	v.SetDefault("fetch.browser_pages", 2)
	v.SetDefault("fetch.retry.max_attempts", 3)
	v.SetDefault("fetch.retry.base_delay", 500*time.Millisecond)
	v.SetDefault("fetch.retry.max_delay", 5*time.Second)

	v.SetDefault("headers.file", "configs/headers.yaml")

	// 输出配置默认值
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.aggregate_name", DefaultAggregateName)
	v.SetDefault("output.report", true)
	v.SetDefault("output.markdown", true)

	v.SetDefault("sink.kinds", []string{sink.KindFile})
	v.SetDefault("sink.sqlite_dir", "")
	v.SetDefault("sink.postgres_dsn", "")
	v.SetDefault("sink.redis_addr", "localhost:6379")
	v.SetDefault("sink.redis_prefix", sink.DefaultRedisPrefix)
	v.SetDefault("sink.kafka_brokers", []string{"localhost:9092"})
	v.SetDefault("sink.kafka_topic", sink.DefaultKafkaTopic)
	v.SetDefault("sink.neo4j_uri", "neo4j://localhost:7687")
	v.SetDefault("sink.neo4j_user", "neo4j")
	v.SetDefault("sink.neo4j_password", "")

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("checkpoint.path", filepath.Join("output", "checkpoint.json"))
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Crawl.Validate(); err != nil {
		return err
	}
	if err := c.Fetch.Validate(); err != nil {
		return err
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir 不能为空")
	}
	if len(c.Sink.Kinds) == 0 {
		return fmt.Errorf("sink.kinds 至少需要一个")
	}
	for _, kind := range c.Sink.Kinds {
		if !sink.IsValidKind(kind) {
			return fmt.Errorf("不支持的sink类型: %s (可选: %s)", kind, strings.Join(sink.Kinds, ", "))
		}
		switch kind {
		case sink.KindPostgres:
			if c.Sink.PostgresDSN == "" {
				return fmt.Errorf("使用 postgres 时必须设置 sink.postgres_dsn")
			}
		case sink.KindKafka:
			if len(c.Sink.KafkaBrokers) == 0 {
				return fmt.Errorf("使用 kafka 时必须设置 sink.kafka_brokers")
			}
		case sink.KindNeo4j:
			if c.Sink.Neo4jURI == "" {
				return fmt.Errorf("使用 neo4j 时必须设置 sink.neo4j_uri")
			}
		}
	}
	return nil
}

// CheckConfigKeys 严格解析配置文件,发现未知的键
// viper 会静默忽略拼写错误的键,这里用 yaml.v3 的 KnownFields 检查
func CheckConfigKeys(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &models.ConfigError{FilePath: path, Cause: err}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var config Config
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return &models.ConfigError{FilePath: path, Cause: err}
	}
	return nil
}

// MergeCLIFlags 合并命令行参数到配置
// 命令行参数优先于配置文件,未设置的参数保持配置文件中的值
func (c *Config) MergeCLIFlags(flags CLIFlags) {
	if flags.NoScraper {
		c.Fetch.UseScraperClient = false
	}
	if flags.Browser {
		c.Fetch.UseBrowser = true
	}
	if flags.Proxy {
		c.Fetch.UseProxy = true
	}
	if flags.ProxyURL != "" {
		c.Fetch.ProxyURL = flags.ProxyURL
		c.Fetch.UseProxy = true
	}
	if flags.Workers > 0 {
		c.Crawl.Workers = flags.Workers
	}
	if flags.MaxSitemaps > 0 {
		c.Crawl.MaxSitemaps = flags.MaxSitemaps
	}
	if flags.OutputDir != "" {
		c.Output.Dir = flags.OutputDir
	}
	if len(flags.Sinks) > 0 {
		c.Sink.Kinds = flags.Sinks
	}
	if flags.MetricsAddr != "" {
		c.Metrics.Addr = flags.MetricsAddr
	}
	if flags.HeadersFile != "" {
		c.Headers.File = flags.HeadersFile
	}
	if flags.LogLevel != "" {
		c.Logging.Level = flags.LogLevel
	}
	if flags.Verbose {
		c.Logging.Level = "debug"
	}
}

// CLIFlags 命令行参数
type CLIFlags struct {
	NoScraper   bool
	Browser     bool
	Proxy       bool
	ProxyURL    string
	Workers     int
	MaxSitemaps int
	OutputDir   string
	Sinks       []string
	MetricsAddr string
	HeadersFile string
	LogLevel    string
	Verbose     bool
}
