// Package sink 持久化每个站点地图提取出的条目
//
// 每个来源的持久化是覆盖语义: 同一来源再次写入时替换之前的内容。
// 不同来源之间不做交叉去重。
package sink

import "context"

// Sink 按来源持久化条目,返回写入的条目数
// 实现必须支持并发调用
type Sink interface {
	Persist(ctx context.Context, source string, items []string) (int, error)
	Close() error
}

// EdgeSink 可选能力: 记录站点地图树的父子边
// children 为文档中的全部子站点地图(按文档顺序,可能已在别处出现),实现必须幂等
// 在工作协程中调用,实现必须支持并发
type EdgeSink interface {
	PersistEdges(ctx context.Context, parent string, children []string) error
}

// 支持的Sink类型
const (
	KindFile     = "file"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
	KindRedis    = "redis"
	KindKafka    = "kafka"
	KindNeo4j    = "neo4j"
)

// Kinds 全部支持的Sink类型
var Kinds = []string{KindFile, KindSQLite, KindPostgres, KindRedis, KindKafka, KindNeo4j}

// IsValidKind 判断Sink类型是否受支持
func IsValidKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}
