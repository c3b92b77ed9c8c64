package core

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
	"github.com/RecoveryAshes/SitemapExtract/internal/utils"
)

// SeedInput 三种种子来源,可以组合使用
type SeedInput struct {
	URL       string
	File      string
	Directory string
}

// IsEmpty 没有任何输入
func (in SeedInput) IsEmpty() bool {
	return in.URL == "" && in.File == "" && in.Directory == ""
}

// CollectSeeds 按 URL → 文件 → 目录 的顺序收集种子
//
// 完全没有输入时返回 models.ErrNoSeeds。
// 有输入但内容为空(例如空文件)时返回空列表,不算错误。
// 重复的种子在这里保留,由引擎去重。
func CollectSeeds(in SeedInput, logger zerolog.Logger) ([]string, error) {
	if in.IsEmpty() {
		return nil, models.ErrNoSeeds
	}

	seeds := make([]string, 0)

	if in.URL != "" {
		logger.Info().Msgf("Processing URL: %s", in.URL)
		seeds = append(seeds, in.URL)
	}

	if in.File != "" {
		logger.Info().Msgf("Reading URLs from %s", in.File)
		urls, err := utils.ReadURLsFromFile(in.File)
		if err != nil {
			return nil, fmt.Errorf("读取种子文件失败: %w", err)
		}
		logger.Info().Msgf("Found %d URLs in %s", len(urls), in.File)
		seeds = append(seeds, urls...)
	}

	if in.Directory != "" {
		logger.Info().Msgf("Scanning directory %s for XML files", in.Directory)
		files, err := utils.FindSitemapFiles(in.Directory)
		if err != nil {
			return nil, fmt.Errorf("扫描种子目录失败: %w", err)
		}
		logger.Info().Msgf("Found %d XML files in %s", len(files), in.Directory)
		seeds = append(seeds, files...)
	}

	return seeds, nil
}
