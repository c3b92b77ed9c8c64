package models

// NodeState 站点地图节点的处理状态
type NodeState string

const (
	NodePending  NodeState = "pending"   // 已发现,排队中
	NodeInFlight NodeState = "in_flight" // 已派发给工作协程
	NodeDone     NodeState = "done"      // 获取并解析成功
	NodeFailed   NodeState = "failed"    // 获取或解析失败
)

// IsTerminal 是否为终态
func (s NodeState) IsTerminal() bool {
	return s == NodeDone || s == NodeFailed
}

// SitemapNode 站点地图树中的一个节点,以URL为身份
type SitemapNode struct {
	URL          string
	IsCompressed bool
	State        NodeState

	// Parent 发现该节点的父站点地图,种子为空
	Parent string
	// Depth 种子为0
	Depth int
}

// NewSitemapNode 创建处于 pending 状态的节点
func NewSitemapNode(url, parent string, depth int) SitemapNode {
	return SitemapNode{
		URL:          url,
		IsCompressed: IsCompressedURL(url),
		State:        NodePending,
		Parent:       parent,
		Depth:        depth,
	}
}
