package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/RecoveryAshes/SitemapExtract/internal/config"
	"github.com/RecoveryAshes/SitemapExtract/internal/core"
	"github.com/RecoveryAshes/SitemapExtract/internal/models"
)

// ValidateFlags 验证命令行标志
// 站点地图URL允许是本地路径,只有远程地址才检查格式
func ValidateFlags(targetURL string, workers, maxSitemaps int) error {
	if targetURL != "" && models.IsRemote(targetURL) {
		if err := models.ValidateURL(targetURL); err != nil {
			return fmt.Errorf("无效的站点地图URL: %w", err)
		}
	}

	if workers < 0 || workers > 256 {
		return fmt.Errorf("并发数必须在0-256之间,当前值: %d", workers)
	}

	if maxSitemaps < 0 {
		return fmt.Errorf("站点地图数量上限不能为负数,当前值: %d", maxSitemaps)
	}

	return nil
}

// runValidateConfig 检查配置文件的键、配置值和请求头
func runValidateConfig(cfg *core.Config, path string, cliHeaders []string) error {
	logger.Info().Msg("🔍 验证配置...")

	if path != "" {
		if err := core.CheckConfigKeys(path); err != nil {
			return fmt.Errorf("配置文件包含未知或错误的键: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	headerManager, err := core.NewHeaderManager(cfg.Headers.File, cliHeaders, logger)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}
	if err := headerManager.Prepare(); err != nil {
		return fmt.Errorf("请求头配置验证失败: %w", err)
	}

	// 显示合并后的头部(脱敏)
	safeHeaders := headerManager.GetSafeHeaders()
	names := make([]string, 0, len(safeHeaders))
	for name := range safeHeaders {
		names = append(names, name)
	}
	sort.Strings(names)

	logger.Info().Msg("✅ 配置验证通过!")
	logger.Info().Msgf("抓取方式: %s, 持久化: %v", cfg.Fetch.Mode(), cfg.Sink.Kinds)
	logger.Info().Msgf("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for _, name := range names {
		logger.Info().Msgf("  %s: %s", name, safeHeaders[name])
	}
	logger.Info().Msgf("身份池: %d 个User-Agent", len(headerManager.UserAgents()))
	return nil
}

// runInit 生成默认配置文件,并确保请求头配置存在
func runInit(w io.Writer, path, headersPath string, force bool) error {
	if err := core.WriteConfigTemplate(path, force); err != nil {
		return err
	}
	fmt.Fprintf(w, "✅ 已生成配置文件: %s\n", path)

	loader := config.NewHeaderConfigLoader(headersPath, logger)
	if err := loader.EnsureConfigExists(); err != nil {
		return err
	}
	fmt.Fprintf(w, "✅ 请求头配置: %s\n", loader.Path())
	return nil
}
