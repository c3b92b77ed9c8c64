package sink

import (
	"context"
	"errors"
	"testing"
)

type recordingSink struct {
	persisted map[string][]string
	edges     map[string][]string
	err       error
	closed    bool
}

func newRecordingSink(err error) *recordingSink {
	return &recordingSink{persisted: map[string][]string{}, edges: map[string][]string{}, err: err}
}

func (r *recordingSink) Persist(ctx context.Context, source string, items []string) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.persisted[source] = items
	return len(items), nil
}

func (r *recordingSink) Close() error {
	r.closed = true
	return r.err
}

type recordingEdgeSink struct {
	*recordingSink
}

func (r recordingEdgeSink) PersistEdges(ctx context.Context, parent string, children []string) error {
	r.edges[parent] = children
	return r.err
}

func TestMultiSink(t *testing.T) {
	ctx := context.Background()
	items := []string{"https://example.com/a", "https://example.com/b"}

	t.Run("全部成功", func(t *testing.T) {
		a, b := newRecordingSink(nil), newRecordingSink(nil)
		m := NewMultiSink(a, b)
		n, err := m.Persist(ctx, "s", items)
		if err != nil || n != 2 {
			t.Fatalf("Persist() = %d, %v", n, err)
		}
		if len(a.persisted["s"]) != 2 || len(b.persisted["s"]) != 2 {
			t.Error("每个Sink都应被写入")
		}
	})

	t.Run("出错时仍写入其余Sink", func(t *testing.T) {
		boom := errors.New("boom")
		a, b := newRecordingSink(boom), newRecordingSink(nil)
		m := NewMultiSink(a, b)
		_, err := m.Persist(ctx, "s", items)
		if !errors.Is(err, boom) {
			t.Errorf("应返回第一个错误, got %v", err)
		}
		if len(b.persisted["s"]) != 2 {
			t.Error("后续Sink应继续写入")
		}
	})

	t.Run("边只转发给EdgeSink", func(t *testing.T) {
		plain := newRecordingSink(nil)
		graph := recordingEdgeSink{newRecordingSink(nil)}
		m := NewMultiSink(plain, graph)
		if err := m.PersistEdges(ctx, "p", []string{"c1", "c2"}); err != nil {
			t.Fatal(err)
		}
		if len(graph.edges["p"]) != 2 {
			t.Errorf("EdgeSink 未收到边: %v", graph.edges)
		}
		if len(plain.edges) != 0 {
			t.Error("普通Sink不应收到边")
		}
	})

	t.Run("关闭全部", func(t *testing.T) {
		boom := errors.New("close failed")
		a, b := newRecordingSink(boom), newRecordingSink(nil)
		err := NewMultiSink(a, b).Close()
		if !errors.Is(err, boom) {
			t.Errorf("Close() = %v", err)
		}
		if !a.closed || !b.closed {
			t.Error("所有Sink都应被关闭")
		}
	})
}

func TestIsValidKind(t *testing.T) {
	for _, k := range Kinds {
		if !IsValidKind(k) {
			t.Errorf("%s 应为合法类型", k)
		}
	}
	if IsValidKind("mongo") {
		t.Error("mongo 不应为合法类型")
	}
}
