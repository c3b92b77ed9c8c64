package models

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"有效的HTTP URL", "http://example.com/sitemap.xml", false},
		{"有效的HTTPS URL", "https://example.com/sitemap_index.xml", false},
		{"无效的协议", "ftp://example.com/sitemap.xml", true},
		{"无效的URL", "not a url", true},
		{"空URL", "", true},
		{"无协议", "example.com/sitemap.xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsCompressedURL(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   bool
	}{
		{"gzip站点地图", "https://example.com/sitemap1.xml.gz", true},
		{"普通站点地图", "https://example.com/sitemap1.xml", false},
		{"大写后缀", "https://example.com/SITEMAP.XML.GZ", true},
		{"带查询串", "https://example.com/sitemap.xml.gz?v=2", true},
		{"查询串中的gz不算", "https://example.com/sitemap.xml?f=a.gz", false},
		{"本地压缩文件", "/data/sitemaps/posts.xml.gz", true},
		{"本地普通文件", "/data/sitemaps/posts.xml", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCompressedURL(tt.source); got != tt.want {
				t.Errorf("IsCompressedURL(%q) = %v, want %v", tt.source, got, tt.want)
			}
		})
	}
}

func TestNewSitemapNode(t *testing.T) {
	node := NewSitemapNode("https://example.com/a.xml.gz", "https://example.com/index.xml", 1)

	if !node.IsCompressed {
		t.Error("期望节点被识别为压缩")
	}
	if node.State != NodePending {
		t.Errorf("State = %v, want %v", node.State, NodePending)
	}
	if node.State.IsTerminal() {
		t.Error("pending 不应是终态")
	}
	if !NodeFailed.IsTerminal() || !NodeDone.IsTerminal() {
		t.Error("done/failed 应是终态")
	}
}

func TestFetchError_Is(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		fetch      bool
		status     bool
		decompress bool
	}{
		{"网络错误", NewNetworkError("u", errors.New("connection refused")), true, false, false},
		{"状态码错误", NewStatusError("u", 404), true, true, false},
		{"解压错误", NewDecompressError("u", errors.New("unexpected EOF")), false, false, true},
		{"包装后的状态码错误", fmt.Errorf("任务失败: %w", NewStatusError("u", 503)), true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, ErrFetch); got != tt.fetch {
				t.Errorf("errors.Is(ErrFetch) = %v, want %v", got, tt.fetch)
			}
			if got := errors.Is(tt.err, ErrStatus); got != tt.status {
				t.Errorf("errors.Is(ErrStatus) = %v, want %v", got, tt.status)
			}
			if got := errors.Is(tt.err, ErrDecompress); got != tt.decompress {
				t.Errorf("errors.Is(ErrDecompress) = %v, want %v", got, tt.decompress)
			}
			if errors.Is(tt.err, ErrParse) {
				t.Error("抓取错误不应匹配 ErrParse")
			}
		})
	}
}

func TestFetchError_Retryable(t *testing.T) {
	tests := []struct {
		name string
		err  *FetchError
		want bool
	}{
		{"网络错误可重试", NewNetworkError("u", errors.New("timeout")), true},
		{"取消不重试", NewNetworkError("u", context.Canceled), false},
		{"429可重试", NewStatusError("u", 429), true},
		{"503可重试", NewStatusError("u", 503), true},
		{"404不重试", NewStatusError("u", 404), false},
		{"403不重试", NewStatusError("u", 403), false},
		{"解压错误不重试", NewDecompressError("u", errors.New("bad gzip")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Retryable(); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"无错误", nil, ""},
		{"网络", NewNetworkError("u", errors.New("x")), "network"},
		{"状态码", NewStatusError("u", 500), "status"},
		{"解压", NewDecompressError("u", errors.New("x")), "decompress"},
		{"解析", &ParseError{URL: "u", Cause: errors.New("x")}, "parse"},
		{"取消", NewNetworkError("u", context.Canceled), "cancelled"},
		{"写入", &SinkError{Source: "u", Cause: errors.New("disk full")}, "sink"},
		{"写入被取消", &SinkError{Source: "u", Cause: context.Canceled}, "cancelled"},
		{"未知", errors.New("boom"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FailureKind(tt.err); got != tt.want {
				t.Errorf("FailureKind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheckpoint_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "checkpoint.json")

	checkpoint := &Checkpoint{
		RunID:     "run-123",
		Seeds:     []string{"https://example.com/sitemap_index.xml"},
		Sitemaps:  []string{"https://example.com/sitemap_index.xml", "https://example.com/sitemap1.xml"},
		Pending:   []string{"https://example.com/sitemap1.xml"},
		Pages:     []string{"https://example.com/a"},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := checkpoint.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadCheckpointFromFile(path)
	if err != nil {
		t.Fatalf("LoadCheckpointFromFile() error = %v", err)
	}

	if loaded.RunID != checkpoint.RunID {
		t.Errorf("RunID不匹配: got %v, want %v", loaded.RunID, checkpoint.RunID)
	}
	if len(loaded.Sitemaps) != 2 || loaded.Pending[0] != "https://example.com/sitemap1.xml" {
		t.Errorf("边界状态不匹配: %+v", loaded)
	}
}

func TestNewRunReport(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	result := RunResult{
		RunID:        "run-1",
		SitemapCount: 3,
		PageCount:    3,
		Processed:    2,
		Failures:     []NodeFailure{{URL: "https://example.com/bad.xml", Kind: "status"}},
		StartedAt:    start,
		FinishedAt:   start.Add(1500 * time.Millisecond),
	}

	report := NewRunReport(result, []string{"https://example.com/sitemap_index.xml"})

	if report.Duration != 1.5 {
		t.Errorf("Duration = %v, want 1.5", report.Duration)
	}
	if report.FailedCount != 1 {
		t.Errorf("FailedCount = %d, want 1", report.FailedCount)
	}
	if report.Sources == nil {
		t.Error("Sources 应为空切片而不是nil")
	}
}
