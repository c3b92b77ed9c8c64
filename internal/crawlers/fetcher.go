package crawlers

import (
	"context"
	"fmt"
	"io"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
	"github.com/rs/zerolog"
)

const acceptXML = "application/xml,text/xml;q=0.9,application/x-gzip;q=0.8,*/*;q=0.5"

// Fetcher 获取站点地图内容
//
// compressed 由URL后缀决定,为 true 时返回解压后的内容。
// 失败时返回 *models.FetchError,Kind 区分网络、状态码和解压三类。
// 实现必须可以被多个协程并发调用。
type Fetcher interface {
	Fetch(ctx context.Context, url string, compressed bool) ([]byte, error)
}

// FetcherFunc 函数适配器
type FetcherFunc func(ctx context.Context, url string, compressed bool) ([]byte, error)

// Fetch 实现 Fetcher
func (f FetcherFunc) Fetch(ctx context.Context, url string, compressed bool) ([]byte, error) {
	return f(ctx, url, compressed)
}

// NewRemoteFetcher 按配置选择远程抓取器
// 优先级: 浏览器 > colly > 普通HTTP
func NewRemoteFetcher(cfg models.FetchConfig, decorator models.RequestDecorator, logger zerolog.Logger) (Fetcher, error) {
	switch cfg.Mode() {
	case models.FetchModeBrowser:
		monitor := NewResourceMonitor(ResourceMonitorConfig{}, logger)
		return NewBrowserFetcher(cfg, decorator, monitor, logger), nil
	case models.FetchModeScraper:
		return NewScraperFetcher(cfg, decorator, logger)
	default:
		return NewPlainFetcher(cfg, decorator, logger)
	}
}

// BuildFetcher 组装完整的抓取链: 本地文件路由 → 重试 → 远程抓取器
func BuildFetcher(cfg models.FetchConfig, decorator models.RequestDecorator, logger zerolog.Logger) (*LocalFetcher, error) {
	remote, err := NewRemoteFetcher(cfg, decorator, logger)
	if err != nil {
		return nil, fmt.Errorf("创建%s抓取器失败: %w", cfg.Mode(), err)
	}

	retry := NewRetryFetcher(remote, cfg.Retry, logger)
	return NewLocalFetcher(retry, cfg.MaxBodySize, closerOf(remote)), nil
}

func closerOf(f Fetcher) io.Closer {
	if c, ok := f.(io.Closer); ok {
		return c
	}
	return nil
}
