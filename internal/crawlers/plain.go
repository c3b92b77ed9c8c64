package crawlers

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
	"github.com/rs/zerolog"
)

// PlainFetcher 基于 net/http 的抓取器
type PlainFetcher struct {
	client      *http.Client
	decorator   models.RequestDecorator
	maxBodySize int64
	logger      zerolog.Logger
}

// NewPlainFetcher 创建普通HTTP抓取器
func NewPlainFetcher(cfg models.FetchConfig, decorator models.RequestDecorator, logger zerolog.Logger) (*PlainFetcher, error) {
	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}

	return &PlainFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		decorator:   decorator,
		maxBodySize: cfg.MaxBodySize,
		logger:      logger,
	}, nil
}

// newTransport 构造共享的 http.Transport,代理配置只在这里生效
func newTransport(cfg models.FetchConfig) (*http.Transport, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	}

	if cfg.UseProxy {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("代理地址无效: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return transport, nil
}

// Fetch 实现 Fetcher
func (f *PlainFetcher) Fetch(ctx context.Context, target string, compressed bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, models.NewNetworkError(target, err)
	}

	req.Header.Set("Accept", acceptXML)
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if f.decorator != nil {
		if err := f.decorator.Decorate(req.Header); err != nil {
			return nil, models.NewNetworkError(target, fmt.Errorf("装饰请求失败: %w", err))
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", models.DefaultUserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, models.NewNetworkError(target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, models.NewStatusError(target, resp.StatusCode)
	}

	body, err := readLimited(resp.Body, f.maxBodySize)
	if err != nil {
		return nil, models.NewNetworkError(target, err)
	}

	body, err = decodeContentEncoding(resp.Header.Get("Content-Encoding"), body)
	if err != nil {
		return nil, models.NewDecompressError(target, err)
	}

	f.logger.Debug().
		Str("url", target).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Msg("HTTP获取完成")

	return Decompress(target, body, compressed, f.maxBodySize)
}
