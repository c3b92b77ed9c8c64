package core

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigFile init 命令生成的配置文件名
const DefaultConfigFile = "config.yaml"

//go:embed config_template.yaml
var configTemplate []byte

// ConfigTemplate 带注释的默认配置
func ConfigTemplate() []byte {
	return append([]byte(nil), configTemplate...)
}

// WriteConfigTemplate 写出默认配置,文件已存在且未指定 force 时报错
func WriteConfigTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("配置文件已存在: %s (使用 -f 覆盖)", path)
		}
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("创建目录失败: %w", err)
		}
	}

	if err := os.WriteFile(path, configTemplate, 0600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}
