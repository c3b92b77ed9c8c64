package crawlers

import (
	"context"
	"errors"
	"time"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
	"github.com/rs/zerolog"
)

// RetryFetcher 为暂时性失败增加有限次重试
// 只重试网络错误和 429/5xx,解压错误和其他状态码直接返回
type RetryFetcher struct {
	next   Fetcher
	cfg    models.RetryConfig
	logger zerolog.Logger

	// 便于测试替换
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryFetcher 包装一个抓取器
func NewRetryFetcher(next Fetcher, cfg models.RetryConfig, logger zerolog.Logger) *RetryFetcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryFetcher{
		next:   next,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Fetch 实现 Fetcher
func (f *RetryFetcher) Fetch(ctx context.Context, url string, compressed bool) ([]byte, error) {
	delay := f.cfg.BaseDelay
	attempts := 0

	for {
		attempts++
		data, err := f.next.Fetch(ctx, url, compressed)
		if err == nil {
			return data, nil
		}

		var fetchErr *models.FetchError
		retryable := errors.As(err, &fetchErr) && fetchErr.Retryable()
		if fetchErr != nil {
			fetchErr.Attempts = attempts
		}
		if !retryable || attempts >= f.cfg.MaxAttempts || ctx.Err() != nil {
			return nil, err
		}

		if f.cfg.MaxDelay > 0 && delay > f.cfg.MaxDelay {
			delay = f.cfg.MaxDelay
		}
		f.logger.Debug().
			Err(err).
			Str("url", url).
			Int("attempt", attempts).
			Dur("delay", delay).
			Msg("获取失败,准备重试")

		if err := f.sleep(ctx, delay); err != nil {
			return nil, models.NewNetworkError(url, err)
		}
		delay *= 2
	}
}

// Close 关闭被包装的抓取器
func (f *RetryFetcher) Close() error {
	if c := closerOf(f.next); c != nil {
		return c.Close()
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
