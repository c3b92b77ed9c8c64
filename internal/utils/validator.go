package utils

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
)

// MaxHeaderValueLength 头部值长度上限 (8KB)
const MaxHeaderValueLength = 8192

// ForbiddenHeaders 由HTTP客户端自己管理的头部,不允许配置
var ForbiddenHeaders = []string{
	"Host",
	"Content-Length",
	"Transfer-Encoding",
	"Connection",
}

var (
	headerNamePattern  = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	headerValuePattern = regexp.MustCompile(`^[\x20-\x7E\t]*$`)
)

// HeaderValidator 检查配置文件和命令行传入的请求头,以及身份池
type HeaderValidator struct {
	maxValueLength   int
	forbiddenHeaders map[string]bool
}

// NewHeaderValidator 创建验证器
func NewHeaderValidator() *HeaderValidator {
	hv := &HeaderValidator{
		maxValueLength:   MaxHeaderValueLength,
		forbiddenHeaders: make(map[string]bool, len(ForbiddenHeaders)),
	}
	for _, h := range ForbiddenHeaders {
		hv.forbiddenHeaders[strings.ToLower(h)] = true
	}
	return hv
}

func invalidName(name, reason, suggestion string) error {
	return &models.ValidationError{Field: "name", HeaderName: name, Reason: reason, Suggestion: suggestion}
}

func invalidValue(name, reason, suggestion string) error {
	return &models.ValidationError{Field: "value", HeaderName: name, Reason: reason, Suggestion: suggestion}
}

// ValidateName 名称只允许字母、数字和连字符
func (hv *HeaderValidator) ValidateName(name string) error {
	switch {
	case name == "":
		return invalidName("", "头部名称不能为空", "")
	case !headerNamePattern.MatchString(name):
		return invalidName(name, "头部名称包含非法字符 (仅允许字母、数字和连字符)", "例如 'User-Agent', 'X-Custom-Header'")
	}
	return nil
}

// ValidateValue 值必须是可打印ASCII,且不超过长度上限
func (hv *HeaderValidator) ValidateValue(name, value string) error {
	if n := len(value); n > hv.maxValueLength {
		return invalidValue(name,
			fmt.Sprintf("头部值过长: %d 字节 (最大 %d)", n, hv.maxValueLength),
			fmt.Sprintf("将值缩短至 %d 字节以内", hv.maxValueLength))
	}
	if !headerValuePattern.MatchString(value) {
		return invalidValue(name, "头部值包含非法字符 (仅允许可打印ASCII字符)", "移除控制字符和非ASCII字符")
	}
	return nil
}

// ValidateHeader 依次检查禁止列表、名称、值
func (hv *HeaderValidator) ValidateHeader(name, value string) error {
	if hv.IsForbidden(name) {
		return invalidName(name, "此头部由HTTP客户端自动管理,不允许自定义", fmt.Sprintf("移除 '%s' 头部配置", name))
	}
	if err := hv.ValidateName(name); err != nil {
		return err
	}
	return hv.ValidateValue(name, value)
}

// IsForbidden 不区分大小写
func (hv *HeaderValidator) IsForbidden(name string) bool {
	return hv.forbiddenHeaders[strings.ToLower(name)]
}

// Validate 按名称排序检查,返回第一个错误
func (hv *HeaderValidator) Validate(headers http.Header) error {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, value := range headers[name] {
			if err := hv.ValidateHeader(name, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateUserAgents 身份池中不允许空项
func (hv *HeaderValidator) ValidateUserAgents(agents []string) error {
	for i, ua := range agents {
		if strings.TrimSpace(ua) == "" {
			return invalidValue("User-Agent", fmt.Sprintf("身份池第%d项为空", i+1), "")
		}
		if err := hv.ValidateValue("User-Agent", ua); err != nil {
			return err
		}
	}
	return nil
}
