package sink

import (
	"context"
	"errors"
)

// MultiSink 把每次写入分发给多个Sink
// 所有Sink都会被调用,返回第一个错误;计数取第一个Sink的结果
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink 创建分发Sink
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Len Sink数量
func (m *MultiSink) Len() int {
	return len(m.sinks)
}

// Persist 依次写入所有Sink
func (m *MultiSink) Persist(ctx context.Context, source string, items []string) (int, error) {
	count := 0
	var firstErr error
	for i, s := range m.sinks {
		n, err := s.Persist(ctx, source, items)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if i == 0 {
			count = n
		}
	}
	return count, firstErr
}

// PersistEdges 转发给支持边写入的Sink
func (m *MultiSink) PersistEdges(ctx context.Context, parent string, children []string) error {
	var firstErr error
	for _, s := range m.sinks {
		es, ok := s.(EdgeSink)
		if !ok {
			continue
		}
		if err := es.PersistEdges(ctx, parent, children); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close 关闭所有Sink
func (m *MultiSink) Close() error {
	errs := make([]error, 0)
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
