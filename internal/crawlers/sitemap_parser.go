package crawlers

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
	"golang.org/x/net/html/charset"
)

// SitemapNamespace sitemaps.org 协议命名空间
const SitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// 根元素
const (
	KindSitemapIndex = "sitemapindex"
	KindURLSet       = "urlset"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SitemapDocument 一份站点地图的解析结果
type SitemapDocument struct {
	// Kind 根元素名: sitemapindex 或 urlset
	Kind string
	// Sitemaps <sitemap><loc> 子站点地图引用,文档顺序,不去重
	Sitemaps []string
	// Pages <url><loc> 页面URL,文档顺序,不去重
	Pages []string
}

// ParseFunc 解析函数签名,引擎通过它调用解析器
type ParseFunc func(data []byte) (SitemapDocument, error)

// ParseSitemap 解析站点地图XML
//
// 只识别站点地图命名空间下 sitemap 和 url 元素中的 loc 子元素。
// 文档为空、XML格式错误或根元素不是 urlset/sitemapindex 时返回 *models.ParseError,
// 没有任何条目的合法文档返回空结果且不报错。
// 解析器没有内部状态,同一份输入总是得到相同的结果。
func ParseSitemap(data []byte) (SitemapDocument, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = bytes.TrimLeft(data, " \t\r\n")

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	var (
		doc    SitemapDocument
		stack  []xml.Name
		inLoc  bool
		owner  string
		locBuf strings.Builder
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return SitemapDocument{}, &models.ParseError{Cause: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 {
				if err := checkRoot(t.Name); err != nil {
					return SitemapDocument{}, err
				}
				doc.Kind = t.Name.Local
			}
			stack = append(stack, t.Name)

			if isSitemapElement(t.Name, "loc") && len(stack) >= 2 {
				parent := stack[len(stack)-2]
				if isSitemapElement(parent, "sitemap") || isSitemapElement(parent, "url") {
					inLoc = true
					owner = parent.Local
					locBuf.Reset()
				}
			}

		case xml.CharData:
			if inLoc {
				locBuf.Write(t)
			}

		case xml.EndElement:
			if inLoc && isSitemapElement(t.Name, "loc") {
				if loc := strings.TrimSpace(locBuf.String()); loc != "" {
					if owner == "sitemap" {
						doc.Sitemaps = append(doc.Sitemaps, loc)
					} else {
						doc.Pages = append(doc.Pages, loc)
					}
				}
				inLoc = false
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if doc.Kind == "" {
		return SitemapDocument{}, &models.ParseError{Cause: errors.New("文档中没有根元素")}
	}

	return doc, nil
}

func checkRoot(name xml.Name) error {
	if isSitemapElement(name, KindURLSet) || isSitemapElement(name, KindSitemapIndex) {
		return nil
	}

	if name.Space == "" {
		return &models.ParseError{Cause: fmt.Errorf("根元素 <%s> 缺少站点地图命名空间", name.Local)}
	}
	return &models.ParseError{Cause: fmt.Errorf("根元素 <%s> (%s) 不是站点地图", name.Local, name.Space)}
}

func isSitemapElement(name xml.Name, local string) bool {
	return name.Space == SitemapNamespace && name.Local == local
}
