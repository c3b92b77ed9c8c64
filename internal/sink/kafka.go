package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
)

const (
	// DefaultKafkaTopic 默认主题
	DefaultKafkaTopic = "sitemap.pages"

	// kafkaBatchBytes 单条消息上限,与 broker 默认的 message.max.bytes 一致
	kafkaBatchBytes = 1 << 20

	// 每段最多的URL数和URL总字节数,保证序列化后远低于 kafkaBatchBytes
	kafkaChunkURLs  = 5000
	kafkaChunkBytes = 512 << 10
)

// MessageWriter 抽象 kafka.Writer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink 每个来源发布一组 PageBatch 消息,以来源为键
// 一个站点地图最多50000个URL,超过单条消息上限时按段拆分
type KafkaSink struct {
	writer MessageWriter
	now    func() time.Time
}

// NewKafkaSink 创建 Kafka 生产者
// 按键哈希分区,同一来源的各段落在同一分区,保持顺序
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	return NewKafkaSinkWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchBytes:             kafkaBatchBytes,
		AllowAutoTopicCreation: false,
	})
}

// NewKafkaSinkWithWriter 使用自定义writer (测试)
func NewKafkaSinkWithWriter(writer MessageWriter) *KafkaSink {
	return &KafkaSink{writer: writer, now: time.Now}
}

// Persist 把来源的全部页面分段后一次性发布
// 空列表也发布一条消息,让消费者覆盖旧内容
func (s *KafkaSink) Persist(ctx context.Context, source string, items []string) (int, error) {
	now := s.now().UTC()
	chunks := chunkPages(items, kafkaChunkURLs, kafkaChunkBytes)

	msgs := make([]kafka.Message, 0, len(chunks))
	for i, chunk := range chunks {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		// 查询串里的 & 不转义成 \u0026
		enc.SetEscapeHTML(false)
		err := enc.Encode(models.PageBatch{
			Source:       source,
			URLs:         chunk,
			Part:         i + 1,
			Parts:        len(chunks),
			DiscoveredAt: now,
		})
		if err != nil {
			return 0, fmt.Errorf("序列化消息失败: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(source),
			Value: bytes.TrimSuffix(buf.Bytes(), []byte("\n")),
			Time:  now,
		})
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("发布Kafka消息失败: %w", err)
	}
	return len(items), nil
}

// chunkPages 按URL数和字节数切分,至少返回一段
func chunkPages(items []string, maxURLs, maxBytes int) [][]string {
	if len(items) == 0 {
		return [][]string{{}}
	}

	var (
		chunks [][]string
		start  int
		size   int
	)
	for i, u := range items {
		// 引号、逗号和转义留出余量
		n := len(u) + 8
		if i > start && (i-start >= maxURLs || size+n > maxBytes) {
			chunks = append(chunks, items[start:i])
			start, size = i, 0
		}
		size += n
	}
	return append(chunks, items[start:])
}

// Close 关闭writer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
