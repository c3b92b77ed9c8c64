package crawlers

import (
	"runtime"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	// DefaultPageMemoryUsage 单个浏览器标签页的平均内存消耗
	DefaultPageMemoryUsage = 100 * 1024 * 1024
	// DefaultSafetyReserve 为系统保留的内存
	DefaultSafetyReserve = 512 * 1024 * 1024
	// MaxAutoWorkers 自动计算并发数时的上限
	MaxAutoWorkers = 32
)

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory uint64 // 安全保留内存(字节)
	PageMemoryUsage     uint64 // 单个标签页平均内存消耗(字节)
	MaxPagesLimit       int    // 绝对最大标签页数
}

// ResourceStatus 系统资源快照
type ResourceStatus struct {
	LogicalCPUs     int
	TotalMemory     uint64
	AvailableMemory uint64
	MemoryPressure  string
}

// ResourceMonitor 根据CPU和内存决定并发度
// 职责: 计算自动并发数和浏览器标签页上限
type ResourceMonitor struct {
	config ResourceMonitorConfig
	logger zerolog.Logger

	// 便于测试替换
	cpuCounts     func(logical bool) (int, error)
	virtualMemory func() (*mem.VirtualMemoryStat, error)
}

// NewResourceMonitor 创建资源监控器实例
func NewResourceMonitor(config ResourceMonitorConfig, logger zerolog.Logger) *ResourceMonitor {
	if config.PageMemoryUsage == 0 {
		config.PageMemoryUsage = DefaultPageMemoryUsage
	}
	if config.SafetyReserveMemory == 0 {
		config.SafetyReserveMemory = DefaultSafetyReserve
	}
	if config.MaxPagesLimit <= 0 {
		config.MaxPagesLimit = 8
	}

	return &ResourceMonitor{
		config:        config,
		logger:        logger,
		cpuCounts:     cpu.Counts,
		virtualMemory: mem.VirtualMemory,
	}
}

// Status 读取当前系统资源
func (rm *ResourceMonitor) Status() ResourceStatus {
	status := ResourceStatus{LogicalCPUs: runtime.NumCPU()}

	if n, err := rm.cpuCounts(true); err == nil && n > 0 {
		status.LogicalCPUs = n
	} else if err != nil {
		rm.logger.Warn().Err(err).Msg("获取CPU核数失败,使用runtime.NumCPU")
	}

	vm, err := rm.virtualMemory()
	if err != nil {
		rm.logger.Warn().Err(err).Msg("获取系统内存失败,使用默认值")
		status.TotalMemory = 4 * 1024 * 1024 * 1024
		status.AvailableMemory = 2 * 1024 * 1024 * 1024
	} else {
		status.TotalMemory = vm.Total
		status.AvailableMemory = vm.Available
	}

	availableMB := status.AvailableMemory / (1024 * 1024)
	switch {
	case availableMB < 200:
		status.MemoryPressure = "emergency"
	case availableMB < 500:
		status.MemoryPressure = "warning"
	default:
		status.MemoryPressure = "normal"
	}

	return status
}

// RecommendedWorkers 计算工作协程数
// requested > 0 时原样返回; 否则按CPU核数的两倍估算(抓取以IO为主),
// 内存紧张时降为核数的一半
func (rm *ResourceMonitor) RecommendedWorkers(requested int) int {
	if requested > 0 {
		return requested
	}

	status := rm.Status()
	workers := status.LogicalCPUs * 2
	if status.MemoryPressure != "normal" {
		workers = status.LogicalCPUs / 2
	}

	workers = clamp(workers, 1, MaxAutoWorkers)
	rm.logger.Debug().
		Int("cpus", status.LogicalCPUs).
		Str("memory_pressure", status.MemoryPressure).
		Int("workers", workers).
		Msg("自动计算并发数")
	return workers
}

// MaxPages 计算浏览器标签页上限
// 取 requested、可用内存可承载的页数、CPU核数和绝对上限中的最小值,至少为1
func (rm *ResourceMonitor) MaxPages(requested int) int {
	status := rm.Status()

	byMemory := 1
	if status.AvailableMemory > rm.config.SafetyReserveMemory {
		byMemory = int((status.AvailableMemory - rm.config.SafetyReserveMemory) / rm.config.PageMemoryUsage)
	}

	result := byMemory
	if status.LogicalCPUs < result {
		result = status.LogicalCPUs
	}
	if rm.config.MaxPagesLimit < result {
		result = rm.config.MaxPagesLimit
	}
	if requested > 0 && requested < result {
		result = requested
	}

	if status.MemoryPressure == "emergency" {
		rm.logger.Warn().Msgf("可用内存不足(当前%dMB),浏览器标签页限制为1个", status.AvailableMemory/(1024*1024))
		result = 1
	}

	return clamp(result, 1, rm.config.MaxPagesLimit)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
