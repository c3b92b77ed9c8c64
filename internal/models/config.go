package models

import (
	"fmt"
	"net/url"
	"time"
)

// 抓取方式
const (
	FetchModePlain   = "plain"
	FetchModeScraper = "scraper"
	FetchModeBrowser = "browser"
)

// CrawlConfig 遍历配置
type CrawlConfig struct {
	// Workers 并发抓取数, 0 表示根据CPU和内存自动计算
	Workers int `mapstructure:"workers" yaml:"workers"`
	// MaxSitemaps 站点地图数量上限, 0 表示不限制
	MaxSitemaps int `mapstructure:"max_sitemaps" yaml:"max_sitemaps"`
}

// Validate 验证遍历配置
func (c *CrawlConfig) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("crawl.workers 不能为负数: %d", c.Workers)
	}
	if c.MaxSitemaps < 0 {
		return fmt.Errorf("crawl.max_sitemaps 不能为负数: %d", c.MaxSitemaps)
	}
	return nil
}

// RetryConfig 抓取重试配置
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// FetchConfig 抓取器配置
type FetchConfig struct {
	// UseScraperClient 使用模拟浏览器请求特征的colly客户端,否则使用普通HTTP客户端
	UseScraperClient bool `mapstructure:"use_scraper_client" yaml:"use_scraper_client"`
	// UseBrowser 使用无头浏览器抓取,优先级高于 UseScraperClient
	UseBrowser bool `mapstructure:"use_browser" yaml:"use_browser"`
	Headless   bool `mapstructure:"headless" yaml:"headless"`

	UseProxy bool   `mapstructure:"use_proxy" yaml:"use_proxy"`
	ProxyURL string `mapstructure:"proxy_url" yaml:"proxy_url"`

	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxBodySize        int64         `mapstructure:"max_body_size" yaml:"max_body_size"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	BrowserPages       int           `mapstructure:"browser_pages" yaml:"browser_pages"`

	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`
}

// Mode 实际使用的抓取方式
func (c *FetchConfig) Mode() string {
	switch {
	case c.UseBrowser:
		return FetchModeBrowser
	case c.UseScraperClient:
		return FetchModeScraper
	default:
		return FetchModePlain
	}
}

// Validate 验证抓取配置
func (c *FetchConfig) Validate() error {
	if c.UseProxy {
		if c.ProxyURL == "" {
			return fmt.Errorf("启用代理时必须设置 fetch.proxy_url")
		}
		u, err := url.Parse(c.ProxyURL)
		if err != nil {
			return fmt.Errorf("代理地址无效: %w", err)
		}
		if u.Host == "" {
			return fmt.Errorf("代理地址缺少主机名: %s", c.ProxyURL)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout 必须大于0")
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("fetch.max_body_size 不能为负数")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("fetch.retry.max_attempts 至少为1")
	}
	if c.Retry.MaxDelay > 0 && c.Retry.BaseDelay > c.Retry.MaxDelay {
		return fmt.Errorf("fetch.retry.base_delay 不能大于 max_delay")
	}
	return nil
}
