package models

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrFetch 网络错误或非成功状态码
	ErrFetch = errors.New("获取站点地图失败")
	// ErrStatus 服务器返回非成功状态码
	ErrStatus = errors.New("HTTP状态码异常")
	// ErrDecompress gzip 数据损坏或被截断
	ErrDecompress = errors.New("解压站点地图失败")
	// ErrParse XML 格式错误或结构不符合站点地图协议
	ErrParse = errors.New("解析站点地图失败")
	// ErrNoSeeds 没有任何输入,运行无事可做
	ErrNoSeeds = errors.New("未提供任何待处理的站点地图")
	// ErrBodyTooLarge 响应体超过 fetch.max_body_size
	ErrBodyTooLarge = errors.New("响应体超过大小限制")
)

// FetchKind 获取失败的类别
type FetchKind string

const (
	FetchKindNetwork    FetchKind = "network"    // 连接、超时、代理等网络层错误
	FetchKindStatus     FetchKind = "status"     // 非2xx响应
	FetchKindDecompress FetchKind = "decompress" // gzip流损坏
)

// FetchError 抓取器返回的错误
type FetchError struct {
	URL        string
	Kind       FetchKind
	StatusCode int
	Attempts   int
	Cause      error
}

// Error 实现error接口
func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchKindStatus:
		return fmt.Sprintf("获取失败 [%s]: HTTP %d", e.URL, e.StatusCode)
	case FetchKindDecompress:
		return fmt.Sprintf("解压失败 [%s]: %v", e.URL, e.Cause)
	default:
		return fmt.Sprintf("获取失败 [%s]: %v", e.URL, e.Cause)
	}
}

// Unwrap 支持errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Is 让 errors.Is 能按类别匹配哨兵错误
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrFetch:
		return e.Kind == FetchKindNetwork || e.Kind == FetchKindStatus
	case ErrStatus:
		return e.Kind == FetchKindStatus
	case ErrDecompress:
		return e.Kind == FetchKindDecompress
	}
	return false
}

// Retryable 是否值得重试
// 只有网络错误、429 和 5xx 被视为暂时性故障
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case FetchKindNetwork:
		return !errors.Is(e.Cause, context.Canceled) && !errors.Is(e.Cause, ErrBodyTooLarge)
	case FetchKindStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	}
	return false
}

// NewStatusError 构造状态码错误
func NewStatusError(url string, statusCode int) *FetchError {
	return &FetchError{URL: url, Kind: FetchKindStatus, StatusCode: statusCode}
}

// NewNetworkError 构造网络错误
func NewNetworkError(url string, cause error) *FetchError {
	return &FetchError{URL: url, Kind: FetchKindNetwork, Cause: cause}
}

// NewDecompressError 构造解压错误
func NewDecompressError(url string, cause error) *FetchError {
	return &FetchError{URL: url, Kind: FetchKindDecompress, Cause: cause}
}

// ParseError 站点地图解析错误
type ParseError struct {
	URL   string
	Cause error
}

// Error 实现error接口
func (e *ParseError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("解析失败: %v", e.Cause)
	}
	return fmt.Sprintf("解析失败 [%s]: %v", e.URL, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is 匹配 ErrParse
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// SinkError 节点已成功抓取解析,但写入Sink失败
// 不影响遍历: 子站点地图和页面照常合并
type SinkError struct {
	Source string
	Cause  error
}

// Error 实现error接口
func (e *SinkError) Error() string {
	return fmt.Sprintf("持久化失败 [%s]: %v", e.Source, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *SinkError) Unwrap() error {
	return e.Cause
}

// FailureKind 把节点失败归类,用于日志和报告
func FailureKind(err error) string {
	var (
		fetchErr *FetchError
		sinkErr  *SinkError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &fetchErr):
		return string(fetchErr.Kind)
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.As(err, &sinkErr):
		return "sink"
	default:
		return "unknown"
	}
}

// ValidationError 头部验证错误
type ValidationError struct {
	Field      string // "name" 或 "value"
	HeaderName string
	Reason     string
	Suggestion string
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("头部验证失败 [%s]: %s", e.HeaderName, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (建议: %s)", e.Suggestion)
	}
	return msg
}

// ConfigError 配置文件错误
type ConfigError struct {
	FilePath string
	Cause    error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
