package sink

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// FallbackFileName 来源URL无法推导出文件名时使用
const FallbackFileName = "sitemap_urls.txt"

// FileSink 每个来源写一个文本文件
// 第一行为 "Source URL: <来源>",之后每行一个条目
type FileSink struct {
	dir    string
	logger zerolog.Logger

	// 不同来源可能映射到同一个文件名,按路径串行写入
	locks sync.Map
}

// NewFileSink 创建文本文件Sink
func NewFileSink(dir string, logger zerolog.Logger) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	return &FileSink{dir: dir, logger: logger}, nil
}

// FileName 取来源最后一个路径段中第一个 "." 之前的部分作为文件名
// https://example.com/sitemap1.xml.gz -> sitemap1.txt
func FileName(source string) string {
	name := source
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return FallbackFileName
	}
	return name + ".txt"
}

// Path 来源对应的输出文件路径
func (s *FileSink) Path(source string) string {
	return filepath.Join(s.dir, FileName(source))
}

// Persist 覆盖写入来源文件
func (s *FileSink) Persist(ctx context.Context, source string, items []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	path := s.Path(source)
	mu, _ := s.locks.LoadOrStore(path, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("创建文件失败: %w", err)
	}

	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "Source URL: %s\n", source)
	for _, item := range items {
		w.WriteString(item)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return 0, fmt.Errorf("写入文件失败: %w", err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("关闭文件失败: %w", err)
	}

	s.logger.Info().Str("file", path).Int("count", len(items)).
		Msgf("Saved %d URLs to %s", len(items), filepath.Base(path))
	return len(items), nil
}

// Close 无需释放资源
func (s *FileSink) Close() error {
	return nil
}
