package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"github.com/RecoveryAshes/SitemapExtract/internal/crawlers"
	"github.com/RecoveryAshes/SitemapExtract/internal/mocks"
	"github.com/RecoveryAshes/SitemapExtract/internal/models"
)

func indexXML(children ...string) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, c := range children {
		fmt.Fprintf(&b, "<sitemap><loc>%s</loc></sitemap>", c)
	}
	b.WriteString(`</sitemapindex>`)
	return []byte(b.String())
}

func urlsetXML(pages ...string) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, p := range pages {
		fmt.Fprintf(&b, "<url><loc>%s</loc></url>", p)
	}
	b.WriteString(`</urlset>`)
	return []byte(b.String())
}

// fakeFetcher 按URL返回预设内容,记录每个URL的调用次数
type fakeFetcher struct {
	mu     sync.Mutex
	docs   map[string][]byte
	errs   map[string]error
	calls  map[string]int
	before func(ctx context.Context, url string) error
}

func newFakeFetcher(docs map[string][]byte) *fakeFetcher {
	return &fakeFetcher{docs: docs, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, compressed bool) ([]byte, error) {
	f.mu.Lock()
	f.calls[url]++
	before := f.before
	f.mu.Unlock()

	if before != nil {
		if err := before(ctx, url); err != nil {
			return nil, err
		}
	}
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if body, ok := f.docs[url]; ok {
		return body, nil
	}
	return nil, models.NewStatusError(url, 404)
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// memorySink 内存Sink,覆盖语义
type memorySink struct {
	mu        sync.Mutex
	persisted map[string][]string
	writes    map[string]int
	err       map[string]error
	edges     map[string][]string
}

func newMemorySink() *memorySink {
	return &memorySink{
		persisted: map[string][]string{},
		writes:    map[string]int{},
		err:       map[string]error{},
		edges:     map[string][]string{},
	}
}

func (s *memorySink) Persist(ctx context.Context, source string, items []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err[source]; err != nil {
		return 0, err
	}
	s.persisted[source] = append([]string(nil), items...)
	s.writes[source]++
	return len(items), nil
}

func (s *memorySink) Close() error { return nil }

func (s *memorySink) get(source string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.persisted[source]
	return items, ok
}

type edgeSink struct {
	*memorySink
}

func (s edgeSink) PersistEdges(ctx context.Context, parent string, children []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[parent] = append(s.edges[parent], children...)
	return nil
}

// recordingObserver 记录事件
type recordingObserver struct {
	started    int
	dispatched []string
	succeeded  []string
	failed     []string
	finished   int
	last       models.Progress
}

func (o *recordingObserver) RunStarted(runID string, seeds int) { o.started++ }
func (o *recordingObserver) NodeDispatched(node models.SitemapNode) {
	o.dispatched = append(o.dispatched, node.URL)
}
func (o *recordingObserver) NodeSucceeded(node models.SitemapNode, _ models.SourceSummary, p models.Progress) {
	o.succeeded = append(o.succeeded, node.URL)
	o.last = p
}
func (o *recordingObserver) NodeFailed(node models.SitemapNode, _ error, p models.Progress) {
	o.failed = append(o.failed, node.URL)
	o.last = p
}
func (o *recordingObserver) RunFinished(models.RunResult) { o.finished++ }

const (
	siteIndex = "https://example.com/sitemap_index.xml"
	siteMap1  = "https://example.com/sitemap1.xml"
	siteMap2  = "https://example.com/sitemap2.xml.gz"
	pageA     = "https://example.com/a"
	pageB     = "https://example.com/b"
	pageC     = "https://example.com/c"
)

func exampleSite() map[string][]byte {
	return map[string][]byte{
		siteIndex: indexXML(siteMap1, siteMap2),
		siteMap1:  urlsetXML(pageA, pageB),
		siteMap2:  urlsetXML(pageB, pageC),
	}
}

func TestEngine_EndToEnd(t *testing.T) {
	fetcher := newFakeFetcher(exampleSite())
	out := newMemorySink()
	obs := &recordingObserver{}

	engine := NewEngine(fetcher, out, WithWorkers(2), WithObserver(obs))
	result, err := engine.Run(context.Background(), []string{siteIndex})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.SitemapCount != 3 || result.PageCount != 3 {
		t.Errorf("结果 = %d sitemaps / %d pages, want 3 / 3", result.SitemapCount, result.PageCount)
	}
	if result.Processed != 3 || result.FailedCount() != 0 || result.Cancelled {
		t.Errorf("运行状态异常: %+v", result)
	}

	t.Run("每个来源独立持久化不做交叉去重", func(t *testing.T) {
		tests := []struct {
			source string
			want   []string
		}{
			{siteIndex, nil},
			{siteMap1, []string{pageA, pageB}},
			{siteMap2, []string{pageB, pageC}},
		}
		for _, tt := range tests {
			got, ok := out.get(tt.source)
			if !ok {
				t.Errorf("%s 未被持久化", tt.source)
				continue
			}
			if len(got) != len(tt.want) || (len(tt.want) > 0 && !reflect.DeepEqual(got, tt.want)) {
				t.Errorf("%s 持久化内容 = %v, want %v", tt.source, got, tt.want)
			}
		}
	})

	t.Run("汇总列表包含全部站点地图", func(t *testing.T) {
		got, _ := out.get(DefaultAggregateName)
		want := []string{siteIndex, siteMap1, siteMap2}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("汇总列表 = %v, want %v", got, want)
		}
		if result.AggregatePersisted != 3 {
			t.Errorf("AggregatePersisted = %d, want 3", result.AggregatePersisted)
		}
	})

	t.Run("观察者事件", func(t *testing.T) {
		if obs.started != 1 || obs.finished != 1 {
			t.Errorf("started=%d finished=%d", obs.started, obs.finished)
		}
		if len(obs.dispatched) != 3 || len(obs.succeeded) != 3 {
			t.Errorf("dispatched=%v succeeded=%v", obs.dispatched, obs.succeeded)
		}
		if obs.last.Processed != 3 || obs.last.Pages != 3 {
			t.Errorf("最后进度 = %+v", obs.last)
		}
	})

	t.Run("来源统计", func(t *testing.T) {
		var index models.SourceSummary
		for _, s := range result.Sources {
			if s.Source == siteIndex {
				index = s
			}
		}
		if index.Children != 2 || index.NewChildren != 2 || index.Pages != 0 {
			t.Errorf("索引统计 = %+v", index)
		}
	})
}

func TestEngine_NoReprocessing(t *testing.T) {
	docs := map[string][]byte{
		// 索引重复列出子站点地图,子站点地图又引用回索引
		siteIndex: indexXML(siteMap1, siteMap1, siteMap2),
		siteMap1:  indexXML(siteIndex, siteMap2),
		siteMap2:  urlsetXML(pageA, pageA),
	}
	fetcher := newFakeFetcher(docs)

	result, err := NewEngine(fetcher, newMemorySink(), WithWorkers(3)).
		Run(context.Background(), []string{siteIndex, siteIndex})
	if err != nil {
		t.Fatal(err)
	}

	for _, u := range []string{siteIndex, siteMap1, siteMap2} {
		if n := fetcher.callCount(u); n != 1 {
			t.Errorf("%s 被抓取 %d 次, want 1", u, n)
		}
	}
	if result.SitemapCount != 3 || result.PageCount != 1 {
		t.Errorf("结果 = %d / %d, want 3 / 1", result.SitemapCount, result.PageCount)
	}
}

func TestEngine_PartialFailure(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fakeFetcher, s *memorySink)
		wantKind string
	}{
		{
			name: "HTTP状态码失败",
			setup: func(f *fakeFetcher, s *memorySink) {
				f.errs[siteMap1] = models.NewStatusError(siteMap1, 500)
			},
			wantKind: "status",
		},
		{
			name: "网络失败",
			setup: func(f *fakeFetcher, s *memorySink) {
				f.errs[siteMap1] = models.NewNetworkError(siteMap1, errors.New("connection reset"))
			},
			wantKind: "network",
		},
		{
			name: "解压失败",
			setup: func(f *fakeFetcher, s *memorySink) {
				f.errs[siteMap1] = models.NewDecompressError(siteMap1, errors.New("unexpected EOF"))
			},
			wantKind: "decompress",
		},
		{
			name: "XML格式错误",
			setup: func(f *fakeFetcher, s *memorySink) {
				f.docs[siteMap1] = []byte("<urlset><url><loc>broken")
			},
			wantKind: "parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newFakeFetcher(exampleSite())
			out := newMemorySink()
			tt.setup(fetcher, out)
			obs := &recordingObserver{}

			result, err := NewEngine(fetcher, out, WithWorkers(2), WithObserver(obs)).
				Run(context.Background(), []string{siteIndex})
			if err != nil {
				t.Fatalf("单个节点失败不应使运行失败: %v", err)
			}

			if result.FailedCount() != 1 {
				t.Fatalf("失败数 = %d, want 1", result.FailedCount())
			}
			f := result.Failures[0]
			if f.URL != siteMap1 || f.Kind != tt.wantKind {
				t.Errorf("失败记录 = %+v, want url=%s kind=%s", f, siteMap1, tt.wantKind)
			}

			// 兄弟节点不受影响
			if got, _ := out.get(siteMap2); !reflect.DeepEqual(got, []string{pageB, pageC}) {
				t.Errorf("sitemap2 持久化内容 = %v", got)
			}
			if result.SitemapCount != 3 || result.PageCount != 2 {
				t.Errorf("结果 = %d / %d, want 3 / 2", result.SitemapCount, result.PageCount)
			}
			if len(obs.failed) != 1 {
				t.Errorf("NodeFailed 事件数 = %d", len(obs.failed))
			}
		})
	}
}

func TestEngine_SinkFailureKeepsTraversal(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{name: "索引写入失败", source: siteIndex},
		{name: "叶子写入失败", source: siteMap1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newFakeFetcher(exampleSite())
			out := newMemorySink()
			out.err[tt.source] = errors.New("kafka: message too large")
			obs := &recordingObserver{}

			result, err := NewEngine(fetcher, out, WithWorkers(2), WithObserver(obs)).
				Run(context.Background(), []string{siteIndex})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if result.SitemapCount != 3 || result.PageCount != 3 {
				t.Errorf("结果 = %d / %d, want 3 / 3", result.SitemapCount, result.PageCount)
			}
			if result.FailedCount() != 0 {
				t.Errorf("写入失败不应记为节点失败: %+v", result.Failures)
			}
			for _, u := range []string{siteIndex, siteMap1, siteMap2} {
				if fetcher.callCount(u) != 1 {
					t.Errorf("%s 抓取次数 = %d, want 1", u, fetcher.callCount(u))
				}
			}

			if len(result.SinkFailures) != 1 {
				t.Fatalf("SinkFailures = %+v, want 1", result.SinkFailures)
			}
			if f := result.SinkFailures[0]; f.URL != tt.source || f.Kind != "sink" {
				t.Errorf("写入失败记录 = %+v", f)
			}
			if len(obs.succeeded) != 3 || len(obs.failed) != 0 {
				t.Errorf("事件 成功=%d 失败=%d, want 3 / 0", len(obs.succeeded), len(obs.failed))
			}
		})
	}
}

func TestEngine_ParseErrorCarriesURL(t *testing.T) {
	fetcher := newFakeFetcher(map[string][]byte{siteMap1: []byte("not xml at all <")})
	result, _ := NewEngine(fetcher, newMemorySink()).Run(context.Background(), []string{siteMap1})

	if result.FailedCount() != 1 {
		t.Fatalf("失败数 = %d", result.FailedCount())
	}
	if !strings.Contains(result.Failures[0].Error, siteMap1) {
		t.Errorf("解析错误应包含URL: %s", result.Failures[0].Error)
	}
}

func TestEngine_EmptySeeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	// 没有设置任何期望: 任何抓取或持久化调用都会使测试失败
	fetcher := mocks.NewMockFetcher(ctrl)
	out := mocks.NewMockSink(ctrl)

	for _, seeds := range [][]string{nil, {}, {""}} {
		result, err := NewEngine(fetcher, out).Run(context.Background(), seeds)
		if err != nil {
			t.Fatalf("空输入不应返回错误: %v", err)
		}
		if !result.IsEmpty() || result.Processed != 0 {
			t.Errorf("空输入结果 = %+v", result)
		}
	}
}

func TestEngine_CompressionRouting(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	fetcher := mocks.NewMockFetcher(ctrl)
	out := mocks.NewMockSink(ctrl)

	gz := "https://example.com/products.xml.gz"
	plain := "https://example.com/posts.xml"
	notGz := "https://example.com/archive.gz.xml"

	fetcher.EXPECT().Fetch(gomock.Any(), gz, true).Return(urlsetXML(pageA), nil)
	fetcher.EXPECT().Fetch(gomock.Any(), plain, false).Return(urlsetXML(pageB), nil)
	fetcher.EXPECT().Fetch(gomock.Any(), notGz, false).Return(urlsetXML(pageC), nil)
	out.EXPECT().Persist(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, items []string) (int, error) {
			return len(items), nil
		}).Times(4)

	result, err := NewEngine(fetcher, out, WithWorkers(1)).
		Run(context.Background(), []string{gz, plain, notGz})
	if err != nil {
		t.Fatal(err)
	}
	if result.PageCount != 3 {
		t.Errorf("PageCount = %d, want 3", result.PageCount)
	}
}

func TestEngine_ConcurrencyBound(t *testing.T) {
	children := make([]string, 0, 20)
	docs := map[string][]byte{}
	for i := 0; i < 20; i++ {
		u := fmt.Sprintf("https://example.com/s%d.xml", i)
		children = append(children, u)
		docs[u] = urlsetXML(fmt.Sprintf("https://example.com/p%d", i))
	}
	docs[siteIndex] = indexXML(children...)

	var current, peak int32
	fetcher := newFakeFetcher(docs)
	fetcher.before = func(ctx context.Context, url string) error {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return nil
	}

	result, err := NewEngine(fetcher, newMemorySink(), WithWorkers(3)).Run(context.Background(), []string{siteIndex})
	if err != nil {
		t.Fatal(err)
	}
	if peak > 3 {
		t.Errorf("并发峰值 = %d, 超过上限 3", peak)
	}
	if result.SitemapCount != 21 || result.PageCount != 20 {
		t.Errorf("结果 = %d / %d", result.SitemapCount, result.PageCount)
	}
}

func TestEngine_MaxSitemaps(t *testing.T) {
	docs := map[string][]byte{
		siteIndex: indexXML(siteMap1, siteMap2, "https://example.com/s3.xml", "https://example.com/s4.xml"),
		siteMap1:  urlsetXML(pageA),
		siteMap2:  urlsetXML(pageB),
	}
	fetcher := newFakeFetcher(docs)

	result, err := NewEngine(fetcher, newMemorySink(), WithMaxSitemaps(3)).Run(context.Background(), []string{siteIndex})
	if err != nil {
		t.Fatal(err)
	}
	if result.SitemapCount != 3 {
		t.Errorf("SitemapCount = %d, want 3", result.SitemapCount)
	}
	if fetcher.callCount("https://example.com/s3.xml") != 0 {
		t.Error("超过上限的站点地图不应被抓取")
	}
}

func TestEngine_Cancellation(t *testing.T) {
	children := []string{siteMap1, "https://example.com/s2.xml", "https://example.com/s3.xml", "https://example.com/s4.xml"}
	docs := map[string][]byte{siteIndex: indexXML(children...)}
	for _, c := range children {
		docs[c] = urlsetXML(c + "/page")
	}

	t.Run("完成的节点保留,未派发的进入Pending", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		fetcher := newFakeFetcher(docs)
		fetcher.before = func(_ context.Context, url string) error {
			if url == siteMap1 {
				cancel()
			}
			return nil
		}
		out := newMemorySink()
		engine := NewEngine(fetcher, out, WithWorkers(1))

		result, err := engine.Run(ctx, []string{siteIndex})
		if err != nil {
			t.Fatal(err)
		}
		if !result.Cancelled {
			t.Fatal("结果应标记为已取消")
		}
		if want := children[1:]; !reflect.DeepEqual(result.Pending, want) {
			t.Errorf("Pending = %v, want %v", result.Pending, want)
		}
		if result.SitemapCount != 5 || result.PageCount != 1 {
			t.Errorf("部分结果 = %d / %d, want 5 / 1", result.SitemapCount, result.PageCount)
		}
		if _, ok := out.get(DefaultAggregateName); !ok {
			t.Error("取消后仍应写出汇总列表")
		}

		cp := engine.Checkpoint()
		if cp == nil || !reflect.DeepEqual(cp.Pending, children[1:]) || len(cp.Pages) != 1 {
			t.Errorf("断点 = %+v", cp)
		}
	})

	t.Run("被中断的任务重新排队", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		fetcher := newFakeFetcher(docs)
		fetcher.before = func(ctx context.Context, url string) error {
			if url == siteMap1 {
				cancel()
				return models.NewNetworkError(url, ctx.Err())
			}
			return nil
		}

		result, err := NewEngine(fetcher, newMemorySink(), WithWorkers(1)).Run(ctx, []string{siteIndex})
		if err != nil {
			t.Fatal(err)
		}
		if result.FailedCount() != 0 {
			t.Errorf("取消导致的中断不应记为失败: %+v", result.Failures)
		}
		want := append(append([]string(nil), children[1:]...), siteMap1)
		if !reflect.DeepEqual(result.Pending, want) {
			t.Errorf("Pending = %v, want %v", result.Pending, want)
		}
	})
}

func TestEngine_Resume(t *testing.T) {
	cp := &models.Checkpoint{
		RunID:    "run-resume",
		Sitemaps: []string{siteIndex, siteMap1, siteMap2},
		Pending:  []string{siteMap2},
		Pages:    []string{pageA, pageB},
	}
	fetcher := newFakeFetcher(exampleSite())
	out := newMemorySink()

	result, err := NewEngine(fetcher, out, WithCheckpoint(cp)).Run(context.Background(), []string{siteIndex})
	if err != nil {
		t.Fatal(err)
	}

	if result.RunID != "run-resume" {
		t.Errorf("RunID = %s, 应沿用断点的RunID", result.RunID)
	}
	if fetcher.totalCalls() != 1 || fetcher.callCount(siteMap2) != 1 {
		t.Errorf("恢复后只应抓取待处理的站点地图, calls = %v", fetcher.calls)
	}
	if result.SitemapCount != 3 || result.PageCount != 3 {
		t.Errorf("结果 = %d / %d, want 3 / 3", result.SitemapCount, result.PageCount)
	}
}

func TestEngine_AggregateFailure(t *testing.T) {
	out := newMemorySink()
	out.err[DefaultAggregateName] = errors.New("read-only")

	result, err := NewEngine(newFakeFetcher(exampleSite()), out).Run(context.Background(), []string{siteIndex})
	if err == nil {
		t.Fatal("汇总列表写入失败应返回错误")
	}
	if result.SitemapCount != 3 {
		t.Errorf("出错时仍应返回结果: %+v", result)
	}
}

func TestEngine_EdgeSink(t *testing.T) {
	out := edgeSink{newMemorySink()}
	docs := exampleSite()
	docs[siteMap1] = indexXML(siteMap2, "https://example.com/deep.xml")

	_, err := NewEngine(newFakeFetcher(docs), out, WithWorkers(1)).Run(context.Background(), []string{siteIndex})
	if err != nil {
		t.Fatal(err)
	}

	got := append([]string(nil), out.edges[siteIndex]...)
	sort.Strings(got)
	if want := []string{siteMap1, siteMap2}; !reflect.DeepEqual(got, want) {
		t.Errorf("索引的边 = %v, want %v", got, want)
	}
	// 已由索引发现的 sitemap2 也照样记录边
	if want := []string{siteMap2, "https://example.com/deep.xml"}; !reflect.DeepEqual(out.edges[siteMap1], want) {
		t.Errorf("sitemap1 的边 = %v, want %v", out.edges[siteMap1], want)
	}
}

// slowEdgeSink 边写入阻塞到 release 关闭
type slowEdgeSink struct {
	*memorySink
	release  chan struct{}
	timedOut atomic.Bool
}

func (s *slowEdgeSink) PersistEdges(ctx context.Context, parent string, children []string) error {
	select {
	case <-s.release:
		return nil
	case <-time.After(5 * time.Second):
		s.timedOut.Store(true)
		return errors.New("edge write timed out")
	}
}

// releaseObserver 看到指定节点成功后关闭 release
type releaseObserver struct {
	recordingObserver
	url     string
	release chan struct{}
	once    sync.Once
}

func (o *releaseObserver) NodeSucceeded(node models.SitemapNode, s models.SourceSummary, p models.Progress) {
	o.recordingObserver.NodeSucceeded(node, s, p)
	if node.URL == o.url {
		o.once.Do(func() { close(o.release) })
	}
}

func TestEngine_EdgeWriteDoesNotBlockMerge(t *testing.T) {
	release := make(chan struct{})
	out := &slowEdgeSink{memorySink: newMemorySink(), release: release}
	obs := &releaseObserver{url: siteMap2, release: release}

	docs := map[string][]byte{
		siteIndex: indexXML(siteMap1),
		siteMap1:  urlsetXML(pageA),
		siteMap2:  urlsetXML(pageB),
	}
	result, err := NewEngine(newFakeFetcher(docs), out, WithWorkers(2), WithObserver(obs)).
		Run(context.Background(), []string{siteIndex, siteMap2})
	if err != nil {
		t.Fatal(err)
	}
	if out.timedOut.Load() {
		t.Fatal("边写入期间协调协程没有继续合并其他节点")
	}
	if result.SitemapCount != 3 || result.PageCount != 2 {
		t.Errorf("结果 = %d / %d, want 3 / 2", result.SitemapCount, result.PageCount)
	}
}

func TestEngine_Options(t *testing.T) {
	custom := func(data []byte) (crawlers.SitemapDocument, error) {
		return crawlers.SitemapDocument{Pages: []string{"custom"}}, nil
	}
	out := newMemorySink()

	engine := NewEngine(newFakeFetcher(map[string][]byte{siteMap1: []byte("ignored")}), out,
		WithWorkers(0),
		WithParser(custom),
		WithAggregateName("all_sitemaps"),
	)
	if engine.Workers() != DefaultWorkers {
		t.Errorf("Workers() = %d, want %d", engine.Workers(), DefaultWorkers)
	}

	result, err := engine.Run(context.Background(), []string{siteMap1})
	if err != nil {
		t.Fatal(err)
	}
	if result.PageCount != 1 {
		t.Errorf("自定义解析器未生效: %+v", result)
	}
	if _, ok := out.get("all_sitemaps"); !ok {
		t.Error("自定义汇总名未生效")
	}
}
