package core

import (
	"maps"
	"math/rand/v2"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/RecoveryAshes/SitemapExtract/internal/config"
	"github.com/RecoveryAshes/SitemapExtract/internal/models"
	"github.com/RecoveryAshes/SitemapExtract/internal/utils"
)

// HeaderManager 管理请求头和客户端身份池
// 实现 models.RequestDecorator
//
// 合并优先级: 默认 < 配置文件 < 命令行。
// 命令行没有指定 User-Agent 时,每次请求从身份池随机选取一个。
type HeaderManager struct {
	// defaults 系统默认头部 (硬编码)
	defaults http.Header

	// config 从配置文件加载的头部
	config http.Header

	// cli 从命令行参数解析的头部
	cli http.Header

	// agents 身份池
	agents []string

	validator    *utils.HeaderValidator
	redactor     *utils.HeaderRedactor
	configLoader *config.HeaderConfigLoader
	logger       zerolog.Logger

	// merged 准备完成后的合并结果,只读
	merged http.Header
	pick   func(n int) int

	once    sync.Once
	prepErr error
}

// NewHeaderManager configFile 为空时使用默认路径,cliHeaders 格式为 "Name: value"
// 配置文件要到第一次 Prepare 或 Decorate 时才读取
func NewHeaderManager(configFile string, cliHeaders []string, logger zerolog.Logger) (*HeaderManager, error) {
	hm := &HeaderManager{
		defaults:     getDefaultHeaders(),
		config:       make(http.Header),
		cli:          make(http.Header),
		validator:    utils.NewHeaderValidator(),
		redactor:     utils.NewHeaderRedactor(),
		configLoader: config.NewHeaderConfigLoader(configFile, logger),
		logger:       logger,
		pick:         rand.IntN,
	}

	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		hm.cli = parsed
	}

	return hm, nil
}

// getDefaultHeaders 返回系统默认头部
// Accept 和 User-Agent 由各抓取器自行设置
func getDefaultHeaders() http.Header {
	return http.Header{
		"Accept-Language": []string{"en-US,en;q=0.9"},
	}
}

// LoadConfig 加载配置文件中的头部和身份池
func (hm *HeaderManager) LoadConfig() error {
	headerConfig, err := hm.configLoader.LoadConfig()
	if err != nil {
		hm.logger.Error().Err(err).Msg("加载HTTP头部配置失败")
		return err
	}

	hm.config = make(http.Header)
	for name, value := range headerConfig.Headers {
		hm.config.Set(name, value)
	}
	hm.agents = headerConfig.UserAgents

	if len(headerConfig.Headers) > 0 {
		hm.logger.Debug().Interface("headers", hm.redactor.Redact(hm.config)).
			Msgf("成功加载%d个HTTP头部配置", len(headerConfig.Headers))
	}
	hm.logger.Debug().Int("user_agents", len(hm.agents)).Msg("身份池已加载")

	return nil
}

// layers 按合并优先级从低到高排列
func (hm *HeaderManager) layers() []headerLayer {
	return []headerLayer{
		{"默认", hm.defaults},
		{"配置文件", hm.config},
		{"命令行", hm.cli},
	}
}

type headerLayer struct {
	source  string
	headers http.Header
}

// Validate 逐层检查头部,最后检查身份池
func (hm *HeaderManager) Validate() error {
	for _, l := range hm.layers() {
		if err := hm.validator.Validate(l.headers); err != nil {
			hm.logger.Error().Err(err).Str("source", l.source).Msg("HTTP头部验证失败")
			return err
		}
	}
	if err := hm.validator.ValidateUserAgents(hm.agents); err != nil {
		hm.logger.Error().Err(err).Msg("身份池验证失败")
		return err
	}

	hm.logger.Debug().Msg("所有HTTP头部验证通过")
	return nil
}

// Prepare 加载并验证配置,只执行一次
func (hm *HeaderManager) Prepare() error {
	hm.once.Do(func() {
		if err := hm.LoadConfig(); err != nil {
			hm.prepErr = err
			return
		}
		if err := hm.Validate(); err != nil {
			hm.prepErr = err
			return
		}
		hm.merged = hm.GetMergedHeaders()
	})
	return hm.prepErr
}

// GetMergedHeaders 高优先级的层整体覆盖同名头部
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for _, l := range hm.layers() {
		maps.Copy(result, l.headers)
	}
	return result
}

// GetSafeHeaders 返回脱敏后的头部 (用于日志)
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}

// UserAgents 身份池
func (hm *HeaderManager) UserAgents() []string {
	return append([]string(nil), hm.agents...)
}

// Decorate 实现 models.RequestDecorator
// 把合并后的头部写入本次请求,并选择本次请求的身份
func (hm *HeaderManager) Decorate(header http.Header) error {
	if err := hm.Prepare(); err != nil {
		return err
	}

	for name, values := range hm.merged {
		header[name] = append([]string(nil), values...)
	}

	if hm.cli.Get("User-Agent") == "" && len(hm.agents) > 0 {
		header.Set("User-Agent", hm.agents[hm.pick(len(hm.agents))])
	}

	return nil
}
