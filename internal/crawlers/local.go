package crawlers

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
)

// LocalFetcher 按标识路由: http(s) 交给远程抓取器,其余按本地文件读取
// 目录输入产生的种子是本地路径
type LocalFetcher struct {
	remote      Fetcher
	maxBodySize int64
	closer      io.Closer
}

// NewLocalFetcher 创建路由抓取器
// closer 在 Close 时调用,可为空
func NewLocalFetcher(remote Fetcher, maxBodySize int64, closer io.Closer) *LocalFetcher {
	return &LocalFetcher{
		remote:      remote,
		maxBodySize: maxBodySize,
		closer:      closer,
	}
}

// Fetch 实现 Fetcher
func (f *LocalFetcher) Fetch(ctx context.Context, source string, compressed bool) ([]byte, error) {
	if models.IsRemote(source) {
		return f.remote.Fetch(ctx, source, compressed)
	}
	if err := ctx.Err(); err != nil {
		return nil, models.NewNetworkError(source, err)
	}

	path, err := localPath(source)
	if err != nil {
		return nil, models.NewNetworkError(source, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, models.NewNetworkError(source, err)
	}
	defer file.Close()

	data, err := readLimited(file, f.maxBodySize)
	if err != nil {
		return nil, models.NewNetworkError(source, err)
	}

	return Decompress(source, data, compressed, f.maxBodySize)
}

// Close 释放远程抓取器资源(例如浏览器)
func (f *LocalFetcher) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

func localPath(source string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(source), "file://") {
		return source, nil
	}
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("无效的文件URL: %w", err)
	}
	return u.Path, nil
}
