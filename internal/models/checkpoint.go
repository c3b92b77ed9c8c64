package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint 断点,保存被取消运行的边界状态以便 --resume 继续
type Checkpoint struct {
	RunID string   `json:"run_id"`
	Seeds []string `json:"seeds"`

	// Sitemaps 已发现的全部站点地图URL(发现顺序)
	Sitemaps []string `json:"sitemaps"`
	// Pending 尚未处理的站点地图(队列顺序)
	Pending []string `json:"pending"`
	// Failed 失败的站点地图,恢复时重新排队
	Failed []string `json:"failed"`
	// Pages 已发现的页面URL
	Pages []string `json:"pages"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToJSON 序列化为JSON
func (c *Checkpoint) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// FromJSON 从JSON反序列化
func (c *Checkpoint) FromJSON(data []byte) error {
	return json.Unmarshal(data, c)
}

// SaveToFile 保存到文件
func (c *Checkpoint) SaveToFile(path string) error {
	data, err := c.ToJSON()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建检查点目录失败: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// LoadCheckpointFromFile 从文件加载
func LoadCheckpointFromFile(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cp Checkpoint
	if err := cp.FromJSON(data); err != nil {
		return nil, fmt.Errorf("检查点文件格式错误 [%s]: %w", path, err)
	}

	return &cp, nil
}
