package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
)

func TestCollector_Events(t *testing.T) {
	c := NewCollector()
	node := models.NewSitemapNode("https://example.com/sitemap.xml", "", 0)

	c.RunStarted("run-1", 2)
	c.NodeDispatched(node)
	c.NodeSucceeded(node, models.SourceSummary{Persisted: 5}, models.Progress{Processed: 1, Sitemaps: 3, Pages: 5, Queued: 2})
	c.NodeDispatched(node)
	c.NodeFailed(node, models.NewStatusError(node.URL, 404), models.Progress{Processed: 2, Failed: 1, Sitemaps: 3, Pages: 5, Queued: 1})

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"运行次数", testutil.ToFloat64(c.runs), 1},
		{"派发数", testutil.ToFloat64(c.dispatched), 2},
		{"成功数", testutil.ToFloat64(c.succeeded), 1},
		{"状态码失败数", testutil.ToFloat64(c.failed.WithLabelValues("status")), 1},
		{"写入条目数", testutil.ToFloat64(c.persisted), 5},
		{"站点地图数", testutil.ToFloat64(c.sitemaps), 3},
		{"页面数", testutil.ToFloat64(c.pages), 5},
		{"排队数", testutil.ToFloat64(c.queued), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	start := time.Now()
	c.RunFinished(models.RunResult{SitemapCount: 3, PageCount: 7, StartedAt: start, FinishedAt: start.Add(time.Second)})
	if got := testutil.ToFloat64(c.pages); got != 7 {
		t.Errorf("结束后页面数 = %v, want 7", got)
	}
	if got := testutil.ToFloat64(c.queued); got != 0 {
		t.Errorf("结束后排队数 = %v, want 0", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.RunStarted("run-1", 1)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{"sitemapextract_runs_total 1", "sitemapextract_sitemaps_discovered 1"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("指标输出缺少 %q", want)
		}
	}
}
