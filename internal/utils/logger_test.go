package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestLogger(t *testing.T, level string) (zerolog.Logger, string, *bytes.Buffer) {
	t.Helper()
	tempDir := t.TempDir()
	console := &bytes.Buffer{}

	config := DefaultLogConfig()
	config.Level = level
	config.LogDir = tempDir
	config.Compress = false
	config.NoColor = true
	config.Console = console

	logger, closer, err := NewLogger(config)
	if err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}
	t.Cleanup(func() { closer.Close() })

	return logger, tempDir, console
}

func TestNewLogger(t *testing.T) {
	logger, dir, console := newTestLogger(t, "info")

	logger.Info().Msg("Fetching https://example.com/sitemap.xml")
	logger.Debug().Msg("调试日志测试 - 级别是info时不输出")
	logger.Error().Str("url", "https://example.com/bad.xml").Msg("获取失败")

	mainLog, err := os.ReadFile(filepath.Join(dir, MainLogFile))
	if err != nil {
		t.Fatalf("读取主日志失败: %v", err)
	}
	if !bytes.Contains(mainLog, []byte("Fetching https://example.com/sitemap.xml")) {
		t.Error("主日志缺少info记录")
	}
	if bytes.Contains(mainLog, []byte("调试日志测试")) {
		t.Error("info级别不应写入debug记录")
	}

	errorLog, err := os.ReadFile(filepath.Join(dir, ErrorLogFile))
	if err != nil {
		t.Fatalf("读取错误日志失败: %v", err)
	}
	if bytes.Contains(errorLog, []byte("Fetching")) {
		t.Error("错误日志不应包含info记录")
	}
	if !bytes.Contains(errorLog, []byte("获取失败")) {
		t.Error("错误日志缺少error记录")
	}

	if !strings.Contains(console.String(), "Fetching https://example.com/sitemap.xml") {
		t.Errorf("控制台缺少进度行: %q", console.String())
	}
}

func TestNewLogger_Quiet(t *testing.T) {
	console := &bytes.Buffer{}
	config := DefaultLogConfig()
	config.LogDir = t.TempDir()
	config.Console = console
	config.Quiet = true

	logger, closer, err := NewLogger(config)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	logger.Info().Msg("静默模式")
	if console.Len() != 0 {
		t.Errorf("静默模式不应输出到控制台: %q", console.String())
	}
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	logger, _, _ := newTestLogger(t, "loud")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("GetLevel() = %v, want info", logger.GetLevel())
	}
}

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()

	if config.Level != "info" {
		t.Errorf("默认日志级别错误: 期望 'info', 得到 '%s'", config.Level)
	}
	if config.LogDir != "logs" {
		t.Errorf("默认日志目录错误: 期望 'logs', 得到 '%s'", config.LogDir)
	}
	if config.MaxSize != 10 || config.MaxBackups != 3 || config.MaxAge != 28 {
		t.Errorf("默认轮转参数错误: %+v", config)
	}
	if !config.Compress {
		t.Error("默认应该启用压缩")
	}
}

func TestFilteredWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &FilteredWriter{Writer: &buf, MinLevel: zerolog.ErrorLevel}

	w.WriteLevel(zerolog.WarnLevel, []byte("warn\n"))
	w.WriteLevel(zerolog.ErrorLevel, []byte("error\n"))
	w.Write([]byte("nolevel\n"))

	if buf.String() != "error\n" {
		t.Errorf("过滤结果 = %q", buf.String())
	}
}
