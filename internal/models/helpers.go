package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ValidateURL 验证URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}

	return nil
}

// IsRemote 判断标识是否为 http(s) 地址,否则视为本地文件
func IsRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// IsCompressedURL 根据URL后缀判断内容是否经过gzip压缩
//
// 只看URL字符串本身,与抓取到的内容无关。查询串和片段不参与判断。
func IsCompressedURL(source string) bool {
	path := source
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// NewRunID 生成运行ID
func NewRunID() string {
	return uuid.New().String()
}
