package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
	"github.com/nao1215/markdown"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// 报告文件名
const (
	JSONReportFile     = "run_report.json"
	MarkdownReportFile = "run_report.md"
)

// Reporter 运行报告生成器
type Reporter struct {
	outputDir string
	markdown  bool
	logger    zerolog.Logger
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string, withMarkdown bool, logger zerolog.Logger) *Reporter {
	return &Reporter{
		outputDir: outputDir,
		markdown:  withMarkdown,
		logger:    logger,
	}
}

// GenerateReport 写入 run_report.json,启用时同时写入 run_report.md
func (r *Reporter) GenerateReport(report *models.RunReport) error {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}

	data, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	jsonPath := filepath.Join(r.outputDir, JSONReportFile)
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}
	r.logger.Debug().Str("path", jsonPath).Msg("保存报告")

	if r.markdown {
		mdPath := filepath.Join(r.outputDir, MarkdownReportFile)
		file, err := os.Create(mdPath)
		if err != nil {
			return fmt.Errorf("创建Markdown报告失败: %w", err)
		}
		defer file.Close()

		if err := WriteMarkdownReport(file, report); err != nil {
			return fmt.Errorf("写入Markdown报告失败: %w", err)
		}
		r.logger.Debug().Str("path", mdPath).Msg("保存报告")
	}

	r.logger.Info().Str("dir", r.outputDir).Msg("报告已生成")
	return nil
}

// WriteMarkdownReport 以Markdown格式输出运行报告
func WriteMarkdownReport(w io.Writer, report *models.RunReport) error {
	md := markdown.NewMarkdown(w)

	md.H1("Sitemap Extraction Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + report.RunID + "`"},
			{"Started", report.StartTime.Format(ConsoleTimeFormat)},
			{"Duration", strconv.FormatFloat(report.Duration, 'f', 2, 64) + "s"},
			{"Fetch Mode", report.FetchMode},
			{"Workers", strconv.Itoa(report.Workers)},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Sitemaps", strconv.Itoa(report.SitemapCount)},
			{"Pages", strconv.Itoa(report.PageCount)},
			{"Processed", strconv.Itoa(report.Processed)},
			{"Failed", strconv.Itoa(report.FailedCount)},
			{"Pending", strconv.Itoa(report.PendingCount)},
		},
	})
	md.PlainText("")

	if len(report.Seeds) > 0 {
		md.H2("Seeds")
		md.PlainText("")
		md.BulletList(report.Seeds...)
		md.PlainText("")
	}

	if len(report.Sources) > 0 {
		md.H2("Sources")
		md.PlainText("")
		rows := make([][]string, 0, len(report.Sources))
		for _, s := range report.Sources {
			rows = append(rows, []string{
				s.Source,
				strconv.Itoa(s.Depth),
				strconv.Itoa(s.Children),
				strconv.Itoa(s.Pages),
				strconv.Itoa(s.Persisted),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Source", "Depth", "Sitemaps", "Pages", "Persisted"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	failureTable(md, "Failures", report.Failures)
	failureTable(md, "Sink Failures", report.SinkFailures)

	return md.Build()
}

func failureTable(md *markdown.Markdown, title string, failures []models.NodeFailure) {
	if len(failures) == 0 {
		return
	}
	md.H2(title)
	md.PlainText("")
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{f.URL, f.Kind, f.Error})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Kind", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func statusText(report *models.RunReport) string {
	switch {
	case report.Cancelled:
		return "⚠️ Cancelled (partial results)"
	case report.FailedCount > 0, len(report.SinkFailures) > 0:
		return "⚠️ Completed with failures"
	default:
		return "✅ Complete"
	}
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("sitemaps"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// ProgressObserver 用进度条展示遍历进度
// 站点地图总数在遍历中不断增长,进度条上限随之调整
type ProgressObserver struct {
	bar *progressbar.ProgressBar
}

// NewProgressObserver 创建进度条观察者
func NewProgressObserver(w io.Writer) *ProgressObserver {
	return &ProgressObserver{bar: NewProgressBar(-1, "处理站点地图", w)}
}

// RunStarted 设置初始上限为种子数
func (p *ProgressObserver) RunStarted(runID string, seeds int) {
	if seeds > 0 {
		p.bar.ChangeMax(seeds)
	}
}

// NodeDispatched 无操作
func (p *ProgressObserver) NodeDispatched(node models.SitemapNode) {}

// NodeSucceeded 更新进度
func (p *ProgressObserver) NodeSucceeded(node models.SitemapNode, summary models.SourceSummary, progress models.Progress) {
	p.update(progress)
}

// NodeFailed 更新进度
func (p *ProgressObserver) NodeFailed(node models.SitemapNode, err error, progress models.Progress) {
	p.update(progress)
}

// RunFinished 结束进度条
func (p *ProgressObserver) RunFinished(result models.RunResult) {
	_ = p.bar.Finish()
}

func (p *ProgressObserver) update(progress models.Progress) {
	p.bar.ChangeMax(progress.Sitemaps)
	_ = p.bar.Set(progress.Processed)
}
