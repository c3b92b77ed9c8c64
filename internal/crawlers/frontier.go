package crawlers

import (
	"github.com/RecoveryAshes/SitemapExtract/internal/models"
)

// Frontier 站点地图边界: FIFO待处理队列 + 站点地图去重集合 + 页面去重集合
//
// 不是并发安全的。整个运行期间只能由引擎的协调协程访问,
// 工作协程把结果发回协调协程,由它统一修改这里的状态。
type Frontier struct {
	// 待处理队列,head 之前的元素已出队
	queue []string
	head  int

	// 站点地图去重集合,记录每个URL的节点状态
	nodes map[string]*models.SitemapNode
	// 发现顺序,用于汇总输出
	order []string

	// 页面去重集合,只增不减
	pages     map[string]struct{}
	pageOrder []string
}

// NewFrontier 创建空边界
func NewFrontier() *Frontier {
	return &Frontier{
		nodes: make(map[string]*models.SitemapNode),
		pages: make(map[string]struct{}),
	}
}

// Seed 加入种子URL,重复的种子只保留第一次出现
func (f *Frontier) Seed(urls []string) int {
	added := 0
	for _, u := range urls {
		if f.offer(u, "", 0) {
			added++
		}
	}
	return added
}

// Offer 检查并插入: URL未出现过时加入去重集合并入队,返回true
// 去重集合的插入和入队是同一步操作,一个URL在整个运行期间最多入队一次
func (f *Frontier) Offer(url, parent string) bool {
	depth := 0
	if p, ok := f.nodes[parent]; ok {
		depth = p.Depth + 1
	}
	return f.offer(url, parent, depth)
}

func (f *Frontier) offer(url, parent string, depth int) bool {
	if url == "" {
		return false
	}
	if _, seen := f.nodes[url]; seen {
		return false
	}

	node := models.NewSitemapNode(url, parent, depth)
	f.nodes[url] = &node
	f.order = append(f.order, url)
	f.queue = append(f.queue, url)
	return true
}

// Next 按FIFO取出下一个待处理节点并标记为 in-flight
func (f *Frontier) Next() (models.SitemapNode, bool) {
	if f.head >= len(f.queue) {
		return models.SitemapNode{}, false
	}

	url := f.queue[f.head]
	f.queue[f.head] = ""
	f.head++

	// 队列前半部分全部出队后收缩底层数组
	if f.head > 1024 && f.head*2 >= len(f.queue) {
		f.queue = append([]string(nil), f.queue[f.head:]...)
		f.head = 0
	}

	node := f.nodes[url]
	node.State = models.NodeInFlight
	return *node, true
}

// Requeue 把被中断的 in-flight 节点放回队尾
// 只对 in-flight 节点生效,不会破坏最多入队一次的约束
func (f *Frontier) Requeue(url string) bool {
	node, ok := f.nodes[url]
	if !ok || node.State != models.NodeInFlight {
		return false
	}
	node.State = models.NodePending
	f.queue = append(f.queue, url)
	return true
}

// MarkDone 标记节点完成
func (f *Frontier) MarkDone(url string) {
	f.setState(url, models.NodeDone)
}

// MarkFailed 标记节点失败
func (f *Frontier) MarkFailed(url string) {
	f.setState(url, models.NodeFailed)
}

func (f *Frontier) setState(url string, state models.NodeState) {
	if node, ok := f.nodes[url]; ok {
		node.State = state
	}
}

// State 查询节点状态
func (f *Frontier) State(url string) (models.NodeState, bool) {
	node, ok := f.nodes[url]
	if !ok {
		return "", false
	}
	return node.State, true
}

// Node 查询节点
func (f *Frontier) Node(url string) (models.SitemapNode, bool) {
	node, ok := f.nodes[url]
	if !ok {
		return models.SitemapNode{}, false
	}
	return *node, true
}

// AddPages 合并页面URL,返回其中新发现的数量
func (f *Frontier) AddPages(urls []string) int {
	added := 0
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, seen := f.pages[u]; seen {
			continue
		}
		f.pages[u] = struct{}{}
		f.pageOrder = append(f.pageOrder, u)
		added++
	}
	return added
}

// Len 当前排队数量
func (f *Frontier) Len() int {
	return len(f.queue) - f.head
}

// SitemapCount 已发现的不同站点地图数量
func (f *Frontier) SitemapCount() int {
	return len(f.nodes)
}

// PageCount 已发现的不同页面数量
func (f *Frontier) PageCount() int {
	return len(f.pages)
}

// Sitemaps 全部站点地图URL,按发现顺序
func (f *Frontier) Sitemaps() []string {
	return append([]string(nil), f.order...)
}

// Pages 全部页面URL,按发现顺序
func (f *Frontier) Pages() []string {
	return append([]string(nil), f.pageOrder...)
}

// Pending 尚未出队的站点地图
func (f *Frontier) Pending() []string {
	return append([]string(nil), f.queue[f.head:]...)
}

// Failed 失败的站点地图,按发现顺序
func (f *Frontier) Failed() []string {
	var failed []string
	for _, u := range f.order {
		if f.nodes[u].State == models.NodeFailed {
			failed = append(failed, u)
		}
	}
	return failed
}

// Restore 从检查点恢复
//
// 检查点中已完成的站点地图进入去重集合但不再入队;
// 待处理和失败的站点地图按此顺序重新入队。
func (f *Frontier) Restore(cp *models.Checkpoint) {
	requeue := make(map[string]bool, len(cp.Pending)+len(cp.Failed))
	for _, u := range cp.Pending {
		requeue[u] = true
	}
	for _, u := range cp.Failed {
		requeue[u] = true
	}

	for _, u := range cp.Sitemaps {
		if requeue[u] {
			continue
		}
		if _, seen := f.nodes[u]; seen {
			continue
		}
		node := models.NewSitemapNode(u, "", 0)
		node.State = models.NodeDone
		f.nodes[u] = &node
		f.order = append(f.order, u)
	}

	for _, u := range cp.Pending {
		f.offer(u, "", 0)
	}
	for _, u := range cp.Failed {
		f.offer(u, "", 0)
	}

	f.AddPages(cp.Pages)
}
