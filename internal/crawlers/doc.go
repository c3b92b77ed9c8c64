// Package crawlers 提供站点地图遍历用到的底层组件
//
// # 概述
//
// crawlers包包含遍历边界(Frontier)、站点地图解析器和几种抓取器。
// 这些组件本身不做调度,由 core.Engine 组合起来完成整棵站点地图树的遍历。
//
// # 核心组件
//
// ## Frontier
//
// 待处理队列(FIFO)加上站点地图、页面两个去重集合。每个URL最多入队一次,
// 页面集合只增不减。Frontier 不是并发安全的,只能由引擎的协调协程访问。
//
//	f := NewFrontier()
//	f.Seed([]string{"https://example.com/sitemap_index.xml"})
//	node, ok := f.Next()
//
// ## ParseSitemap
//
// 流式解析 sitemapindex 和 urlset 文档,按文档顺序返回子站点地图和页面URL,
// 不做文档内去重。非UTF-8编码由 golang.org/x/net/html/charset 转换。
//
// ## Fetcher
//
// 抓取接口 Fetch(ctx, url, compressed)。实现:
//   - PlainFetcher: net/http,手动处理 gzip/deflate/br 内容编码
//   - ScraperFetcher: colly,浏览器请求特征和随机身份
//   - BrowserFetcher: go-rod 无头浏览器,页面内 fetch() 取回原始字节
//   - LocalFetcher: 本地文件和 file:// 路由
//   - RetryFetcher: 网络错误和 429/5xx 的指数退避重试
//
// BuildFetcher 按配置把它们组装成一条链:
//
//	fetcher, err := BuildFetcher(cfg.Fetch, headerManager, logger)
//	if err != nil { /* 处理错误 */ }
//	defer fetcher.Close()
//
// ## ResourceMonitor (资源监控器)
//
// 通过 gopsutil 读取CPU核数和可用内存,计算 crawl.workers=0 时的自动并发数
// 以及浏览器标签页上限。可用内存低于200MB时标签页限制为1个。
//
// # 压缩
//
// 是否解压只看URL后缀(.gz)。传输层已经解压过的内容(以 '<' 开头)同样接受;
// 其余非gzip内容、损坏或截断的gzip流都返回 DecompressFailure。
package crawlers
