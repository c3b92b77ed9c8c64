package crawlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// fetchInPage 在页面内用 fetch() 取回原始字节,以base64返回
// 页面先导航到同源首页,反爬挑战产生的cookie会随请求带上
const fetchInPage = `async (target) => {
	const resp = await fetch(target, {credentials: 'include'});
	const buf = new Uint8Array(await resp.arrayBuffer());
	let bin = '';
	for (let i = 0; i < buf.length; i += 0x8000) {
		bin += String.fromCharCode.apply(null, buf.subarray(i, i + 0x8000));
	}
	return {status: resp.status, body: btoa(bin)};
}`

// BrowserFetcher 基于无头浏览器的抓取器
// 浏览器在第一次抓取时才启动
type BrowserFetcher struct {
	cfg       models.FetchConfig
	decorator models.RequestDecorator
	monitor   *ResourceMonitor
	logger    zerolog.Logger

	once      sync.Once
	launchErr error
	launcher  *launcher.Launcher
	browser   *rod.Browser
	pool      *PagePool
}

// NewBrowserFetcher 创建浏览器抓取器
func NewBrowserFetcher(cfg models.FetchConfig, decorator models.RequestDecorator, monitor *ResourceMonitor, logger zerolog.Logger) *BrowserFetcher {
	return &BrowserFetcher{
		cfg:       cfg,
		decorator: decorator,
		monitor:   monitor,
		logger:    logger,
	}
}

// launch 启动浏览器并创建标签页池
func (f *BrowserFetcher) launch() error {
	l := launcher.New().Headless(f.cfg.Headless)

	if f.cfg.InsecureSkipVerify {
		l = l.Set("ignore-certificate-errors")
	}
	if f.cfg.UseProxy {
		// Chromium的 --proxy-server 不接受用户名密码
		proxyURL, err := url.Parse(f.cfg.ProxyURL)
		if err != nil {
			return fmt.Errorf("代理地址无效: %w", err)
		}
		l = l.Proxy(proxyURL.Host)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("连接浏览器失败: %w", err)
	}

	f.launcher = l
	f.browser = browser
	f.pool = NewPagePool(browser, f.monitor.MaxPages(f.cfg.BrowserPages), f.logger)
	f.logger.Debug().Str("control_url", controlURL).Msg("浏览器已启动")
	return nil
}

// Fetch 实现 Fetcher
func (f *BrowserFetcher) Fetch(ctx context.Context, target string, compressed bool) ([]byte, error) {
	f.once.Do(func() { f.launchErr = f.launch() })
	if f.launchErr != nil {
		return nil, models.NewNetworkError(target, f.launchErr)
	}

	origin, err := originOf(target)
	if err != nil {
		return nil, models.NewNetworkError(target, err)
	}

	pp, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, models.NewNetworkError(target, err)
	}

	status, body, err := f.fetchWithPage(ctx, pp, origin, target)
	f.pool.Release(pp, err != nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, models.NewNetworkError(target, ctxErr)
		}
		return nil, models.NewNetworkError(target, err)
	}

	if status < 200 || status > 299 {
		return nil, models.NewStatusError(target, status)
	}
	if f.cfg.MaxBodySize > 0 && int64(len(body)) > f.cfg.MaxBodySize {
		return nil, models.NewNetworkError(target, models.ErrBodyTooLarge)
	}

	f.logger.Debug().
		Str("url", target).
		Int("status", status).
		Int("bytes", len(body)).
		Msg("浏览器获取完成")

	return Decompress(target, body, compressed, f.cfg.MaxBodySize)
}

func (f *BrowserFetcher) fetchWithPage(ctx context.Context, pp *pooledPage, origin, target string) (int, []byte, error) {
	page := pp.page.Context(ctx).Timeout(f.cfg.Timeout)

	header := make(http.Header)
	if f.decorator != nil {
		if err := f.decorator.Decorate(header); err != nil {
			return 0, nil, fmt.Errorf("装饰请求失败: %w", err)
		}
	}
	if ua := header.Get("User-Agent"); ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			return 0, nil, fmt.Errorf("设置User-Agent失败: %w", err)
		}
		header.Del("User-Agent")
	}

	extra := make([]string, 0, len(header)*2)
	for name := range header {
		extra = append(extra, name, header.Get(name))
	}
	if len(extra) > 0 {
		cleanup, err := page.SetExtraHeaders(extra)
		if err != nil {
			return 0, nil, fmt.Errorf("设置请求头失败: %w", err)
		}
		defer cleanup()
	}

	if pp.origin != origin {
		if err := page.Navigate(origin); err != nil {
			return 0, nil, fmt.Errorf("打开源站失败: %w", err)
		}
		if err := page.WaitLoad(); err != nil {
			return 0, nil, fmt.Errorf("等待页面加载失败: %w", err)
		}
		pp.origin = origin
	}

	res, err := page.Evaluate(rod.Eval(fetchInPage, target).ByPromise())
	if err != nil {
		pp.origin = ""
		return 0, nil, fmt.Errorf("页面内请求失败: %w", err)
	}

	status := res.Value.Get("status").Int()
	body, err := base64.StdEncoding.DecodeString(res.Value.Get("body").Str())
	if err != nil {
		return 0, nil, fmt.Errorf("解码响应失败: %w", err)
	}

	return status, body, nil
}

// Close 关闭浏览器
func (f *BrowserFetcher) Close() error {
	if f.browser == nil {
		return nil
	}

	f.pool.Close()
	err := f.browser.Close()
	if f.launcher != nil {
		f.launcher.Cleanup()
	}
	f.logger.Debug().Msg("浏览器已关闭")
	return err
}

// originOf 返回URL的源站首页
func originOf(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("无法确定源站: %s", target)
	}
	return u.Scheme + "://" + u.Host + "/", nil
}
