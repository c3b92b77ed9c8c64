package sink

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix Redis键前缀
const DefaultRedisPrefix = "sitemap:"

// RedisSink 每个来源一个列表键 <prefix><source>
type RedisSink struct {
	client *redis.Client
	prefix string
}

// NewRedisSink 连接 Redis
func NewRedisSink(addr, prefix string) *RedisSink {
	return NewRedisSinkWithClient(redis.NewClient(&redis.Options{Addr: addr}), prefix)
}

// NewRedisSinkWithClient 使用已有客户端
func NewRedisSinkWithClient(client *redis.Client, prefix string) *RedisSink {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisSink{client: client, prefix: prefix}
}

// Key 来源对应的列表键
func (s *RedisSink) Key(source string) string {
	return s.prefix + source
}

// Persist 在事务流水线中用 DEL + RPUSH 替换列表
func (s *RedisSink) Persist(ctx context.Context, source string, items []string) (int, error) {
	key := s.Key(source)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(items) > 0 {
			values := make([]any, len(items))
			for i, item := range items {
				values[i] = item
			}
			pipe.RPush(ctx, key, values...)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("写入Redis失败: %w", err)
	}
	return len(items), nil
}

// Close 关闭客户端
func (s *RedisSink) Close() error {
	return s.client.Close()
}
