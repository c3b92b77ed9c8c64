package utils

import (
	"maps"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// SensitiveKeywords 名称中含有这些关键字的头部在日志中脱敏
var SensitiveKeywords = []string{"authorization", "cookie", "token", "key", "secret", "password", "credential"}

// HeaderRedactor 日志输出前隐藏凭据类头部的值
type HeaderRedactor struct {
	pattern *regexp.Regexp
}

// NewHeaderRedactor 使用 SensitiveKeywords 创建
func NewHeaderRedactor() *HeaderRedactor {
	quoted := make([]string, len(SensitiveKeywords))
	for i, k := range SensitiveKeywords {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return &HeaderRedactor{pattern: regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))}
}

// IsSensitiveHeader 不区分大小写的关键字匹配
func (hr *HeaderRedactor) IsSensitiveHeader(name string) bool {
	return hr.pattern.MatchString(name)
}

// RedactHeaderValue 非敏感头部原样返回
func (hr *HeaderRedactor) RedactHeaderValue(name, value string) string {
	if !hr.IsSensitiveHeader(name) {
		return value
	}
	return mask(value)
}

// mask Bearer只保留前缀,长值保留首尾4位,其余全部隐藏
func mask(value string) string {
	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}
	if n := len(value); n > 8 {
		return value[:4] + "***" + value[n-4:]
	}
	return "***"
}

// Redact 每个头部只取第一个值
func (hr *HeaderRedactor) Redact(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) > 0 {
			out[name] = hr.RedactHeaderValue(name, values[0])
		}
	}
	return out
}

// RedactToString "Name: value, ..." 按名称排序
func (hr *HeaderRedactor) RedactToString(headers http.Header) string {
	redacted := hr.Redact(headers)
	var b strings.Builder
	for i, name := range slices.Sorted(maps.Keys(redacted)) {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name + ": " + redacted[name])
	}
	return b.String()
}

// RedactURL 隐藏代理地址里的密码
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
