package models

import (
	"fmt"
	"net/http"
	"strings"
)

// DefaultUserAgent 身份池为空且没有其他来源时使用的User-Agent
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

// HeaderConfig 对应 headers.yaml 的结构
type HeaderConfig struct {
	// Headers 每个请求都会携带的固定头部
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`

	// UserAgents 客户端身份池,每个请求随机选取一个
	// 为空时由抓取器自行生成随机身份
	UserAgents []string `mapstructure:"user_agents" yaml:"user_agents"`
}

// CliHeaders 命令行 -H 传入的头部列表,格式 "Name: Value"
type CliHeaders []string

// Parse 解析为 http.Header
func (ch CliHeaders) Parse() (http.Header, error) {
	result := make(http.Header)
	for i, s := range ch {
		name, value, err := parseHeaderString(s)
		if err != nil {
			return nil, fmt.Errorf("参数 --header 第%d项格式错误: %w", i+1, err)
		}
		result.Set(name, value)
	}
	return result, nil
}

func parseHeaderString(s string) (name, value string, err error) {
	name, value, found := strings.Cut(s, ":")
	if !found {
		return "", "", fmt.Errorf("缺少冒号分隔符,应为 'Name: Value'")
	}

	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if name == "" {
		return "", "", fmt.Errorf("头部名称不能为空")
	}

	return name, value, nil
}

// RequestDecorator 请求装饰策略
//
// 每次请求调用一次 Decorate,实现方把本次请求的身份(User-Agent 等)
// 写入传入的 header。传入的 header 归单个请求所有,实现方不得保留引用。
type RequestDecorator interface {
	Decorate(header http.Header) error
}
