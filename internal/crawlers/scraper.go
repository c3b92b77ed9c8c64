package crawlers

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
	"github.com/rs/zerolog"
)

// scraperHeaders 模拟真实浏览器的请求特征
var scraperHeaders = map[string]string{
	"Accept-Language":           "en-US,en;q=0.9",
	"Cache-Control":             "no-cache",
	"Pragma":                    "no-cache",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
}

// ScraperFetcher 基于colly的抓取器,带浏览器请求特征和随机身份
type ScraperFetcher struct {
	base        *colly.Collector
	decorator   models.RequestDecorator
	maxBodySize int64
	logger      zerolog.Logger
}

// NewScraperFetcher 创建colly抓取器
func NewScraperFetcher(cfg models.FetchConfig, decorator models.RequestDecorator, logger zerolog.Logger) (*ScraperFetcher, error) {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.MaxBodySize(int(cfg.MaxBodySize)),
	)
	c.SetRequestTimeout(cfg.Timeout)

	// 必须先替换transport再设置代理,SetProxy修改的是当前transport
	transport, err := newTransport(models.FetchConfig{
		Timeout:            cfg.Timeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}
	c.WithTransport(transport)

	if cfg.UseProxy {
		if err := c.SetProxy(cfg.ProxyURL); err != nil {
			return nil, fmt.Errorf("设置代理失败: %w", err)
		}
	}

	return &ScraperFetcher{
		base:        c,
		decorator:   decorator,
		maxBodySize: cfg.MaxBodySize,
		logger:      logger,
	}, nil
}

// Fetch 实现 Fetcher
// 每次请求克隆一个collector,回调和身份只属于这一次请求
func (f *ScraperFetcher) Fetch(ctx context.Context, target string, compressed bool) ([]byte, error) {
	c := f.base.Clone()
	c.Context = ctx

	// colly生成的随机身份作为兜底,身份池非空时由装饰器覆盖
	extensions.RandomUserAgent(c)

	var (
		body        []byte
		status      int
		encoding    string
		fetchErr    error
		decorateErr error
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", acceptXML)
		for name, value := range scraperHeaders {
			r.Headers.Set(name, value)
		}
		if f.decorator != nil {
			if err := f.decorator.Decorate(*r.Headers); err != nil {
				decorateErr = err
				r.Abort()
			}
		}
	})

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
		if r.Headers != nil {
			encoding = r.Headers.Get("Content-Encoding")
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	err := c.Request(http.MethodGet, target, nil, nil, nil)

	if decorateErr != nil {
		return nil, models.NewNetworkError(target, fmt.Errorf("装饰请求失败: %w", decorateErr))
	}
	if err == nil {
		err = fetchErr
	}
	if err != nil {
		if status != 0 && (status < 200 || status > 299) {
			return nil, models.NewStatusError(target, status)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, models.NewNetworkError(target, ctxErr)
		}
		// colly 对 .xml.gz 路径自动解压,流损坏时错误来自gzip读取
		if compressed && isGzipStreamError(err) {
			return nil, models.NewDecompressError(target, err)
		}
		return nil, models.NewNetworkError(target, err)
	}
	if status < 200 || status > 299 {
		return nil, models.NewStatusError(target, status)
	}

	// colly 只自动解开 gzip,deflate 和 br 仍需手动处理
	if encoding == "deflate" || encoding == "br" {
		decoded, err := decodeContentEncoding(encoding, body)
		if err != nil {
			return nil, models.NewDecompressError(target, err)
		}
		body = decoded
	}

	f.logger.Debug().
		Str("url", target).
		Int("status", status).
		Int("bytes", len(body)).
		Msg("colly获取完成")

	return Decompress(target, body, compressed, f.maxBodySize)
}

func isGzipStreamError(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, gzip.ErrChecksum) ||
		errors.Is(err, gzip.ErrHeader)
}
