package sink

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// SessionRunner 抽象 neo4j.SessionWithContext
type SessionRunner interface {
	ExecuteWrite(ctx context.Context, work neo4j.ManagedTransactionWork, configurers ...func(*neo4j.TransactionConfig)) (any, error)
	Close(ctx context.Context) error
}

// DriverSessioner 抽象 neo4j.DriverWithContext
type DriverSessioner interface {
	NewSession(ctx context.Context, config neo4j.SessionConfig) SessionRunner
	Close(ctx context.Context) error
}

type neo4jDriver struct {
	driver neo4j.DriverWithContext
}

func (d *neo4jDriver) NewSession(ctx context.Context, config neo4j.SessionConfig) SessionRunner {
	return d.driver.NewSession(ctx, config)
}

func (d *neo4jDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

const (
	pageCountQuery = "MERGE (s:Sitemap {url: $url}) " +
		"SET s.page_count = $page_count"

	edgesQuery = "MERGE (p:Sitemap {url: $parent}) " +
		"WITH p UNWIND $children AS child " +
		"MERGE (c:Sitemap {url: child}) " +
		"MERGE (p)-[:CONTAINS]->(c)"
)

// Neo4jSink 把站点地图树写入图数据库
// 节点 (:Sitemap {url, page_count}),边 (:Sitemap)-[:CONTAINS]->(:Sitemap)
type Neo4jSink struct {
	driver DriverSessioner
	// 汇总列表不是站点地图节点,跳过
	aggregate string
}

// NewNeo4jSink 连接 Neo4j
func NewNeo4jSink(uri, user, password, aggregate string) (*Neo4jSink, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("创建Neo4j驱动失败: %w", err)
	}
	return NewNeo4jSinkWithDriver(&neo4jDriver{driver: driver}, aggregate), nil
}

// NewNeo4jSinkWithDriver 使用自定义驱动 (测试)
func NewNeo4jSinkWithDriver(driver DriverSessioner, aggregate string) *Neo4jSink {
	return &Neo4jSink{driver: driver, aggregate: aggregate}
}

// PageCountParams 写入页面数的查询参数
func PageCountParams(source string, count int) map[string]any {
	return map[string]any{"url": source, "page_count": count}
}

// EdgeParams 写入父子边的查询参数
func EdgeParams(parent string, children []string) map[string]any {
	list := make([]any, len(children))
	for i, c := range children {
		list[i] = c
	}
	return map[string]any{"parent": parent, "children": list}
}

// Persist 记录站点地图的页面数
func (s *Neo4jSink) Persist(ctx context.Context, source string, items []string) (int, error) {
	if source == s.aggregate {
		return len(items), nil
	}
	if err := s.write(ctx, pageCountQuery, PageCountParams(source, len(items))); err != nil {
		return 0, err
	}
	return len(items), nil
}

// PersistEdges 记录父站点地图到新发现子站点地图的边
func (s *Neo4jSink) PersistEdges(ctx context.Context, parent string, children []string) error {
	if len(children) == 0 {
		return nil
	}
	return s.write(ctx, edgesQuery, EdgeParams(parent, children))
}

func (s *Neo4jSink) write(ctx context.Context, query string, params map[string]any) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("写入Neo4j失败: %w", err)
	}
	return nil
}

// Close 关闭驱动
func (s *Neo4jSink) Close() error {
	return s.driver.Close(context.Background())
}
