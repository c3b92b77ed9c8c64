package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
)

const (
	// DefaultConfigFile 请求头配置的默认位置
	DefaultConfigFile = "configs/headers.yaml"

	// MaxConfigFileSize 请求头配置文件大小上限 (1MB)
	MaxConfigFileSize = 1 << 20
)

//go:embed headers_template.yaml
var defaultHeaderTemplate string

// DefaultTemplate 内置的请求头配置模板
func DefaultTemplate() string {
	return defaultHeaderTemplate
}

// HeaderConfigLoader 读取请求头与身份池配置
type HeaderConfigLoader struct {
	configPath string
	logger     zerolog.Logger
}

// NewHeaderConfigLoader configPath 为空时使用 DefaultConfigFile
func NewHeaderConfigLoader(configPath string, logger zerolog.Logger) *HeaderConfigLoader {
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	return &HeaderConfigLoader{configPath: configPath, logger: logger}
}

// Path 配置文件路径
func (hcl *HeaderConfigLoader) Path() string {
	return hcl.configPath
}

// EnsureConfigExists 首次运行时把模板写到配置路径
func (hcl *HeaderConfigLoader) EnsureConfigExists() error {
	_, err := os.Stat(hcl.configPath)
	if !errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	dir := filepath.Dir(hcl.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("无法创建配置目录 [%s]: %w", dir, err)
	}
	if err := os.WriteFile(hcl.configPath, []byte(defaultHeaderTemplate), 0644); err != nil {
		return fmt.Errorf("无法生成配置文件 [%s]: %w", hcl.configPath, err)
	}

	hcl.logger.Info().Str("path", hcl.configPath).Msg("已生成默认请求头配置")
	return nil
}

// ValidateFileSize 超过 MaxConfigFileSize 的文件直接拒绝
func (hcl *HeaderConfigLoader) ValidateFileSize() error {
	info, err := os.Stat(hcl.configPath)
	if err != nil {
		return fmt.Errorf("无法读取配置文件信息 [%s]: %w", hcl.configPath, err)
	}
	if size := info.Size(); size > MaxConfigFileSize {
		return hcl.configError(fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)", size, MaxConfigFileSize))
	}
	return nil
}

// LoadConfig 读取配置,文件不存在时先生成模板
// 身份池会去掉空白项和重复项
func (hcl *HeaderConfigLoader) LoadConfig() (*models.HeaderConfig, error) {
	if err := hcl.EnsureConfigExists(); err != nil {
		return nil, err
	}
	if err := hcl.ValidateFileSize(); err != nil {
		return nil, err
	}

	cfg, err := hcl.decode()
	if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
		hcl.logger.Warn().Str("path", hcl.configPath).Msg("配置文件被锁定,只使用默认请求头")
		return &models.HeaderConfig{Headers: map[string]string{}}, nil
	}
	if err != nil {
		return nil, err
	}

	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	cfg.UserAgents = cleanAgents(cfg.UserAgents)
	return cfg, nil
}

func (hcl *HeaderConfigLoader) decode() (*models.HeaderConfig, error) {
	v := viper.New()
	v.SetConfigFile(hcl.configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// 锁定错误原样返回,由调用方降级
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, err
		}
		return nil, hcl.configError(err)
	}

	var cfg models.HeaderConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, hcl.configError(fmt.Errorf("配置绑定失败: %w", err))
	}
	return &cfg, nil
}

func (hcl *HeaderConfigLoader) configError(cause error) error {
	return &models.ConfigError{FilePath: hcl.configPath, Cause: cause}
}

// cleanAgents 去掉空白项和重复项,保持顺序
func cleanAgents(agents []string) []string {
	seen := make(map[string]bool, len(agents))
	result := make([]string, 0, len(agents))
	for _, ua := range agents {
		ua = strings.TrimSpace(ua)
		if ua == "" || seen[ua] {
			continue
		}
		seen[ua] = true
		result = append(result, ua)
	}
	return result
}
