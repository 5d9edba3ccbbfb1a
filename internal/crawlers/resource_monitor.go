package crawlers

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
)

// 内存压力等级
const (
	PressureNormal   = "normal"
	PressureWarning  = "warning"
	PressureCritical = "critical"
)

// MemoryStatus 内存状态
type MemoryStatus struct {
	TotalMemory     uint64 // 系统总内存(字节)
	AvailableMemory uint64 // 系统可用内存(字节)
	HeapAlloc       uint64 // 本进程堆内存(字节)
	QueueDepth      int    // 采样时的队列深度
	Pressure        string
}

// ResourceMonitor 内存监控
// Frontier队列无上限, 大站点上内存随链接图增长; 可用内存低于阈值时告警
type ResourceMonitor struct {
	warnBytes   uint64
	warnEvery   time.Duration
	lastWarning time.Time
	logger      zerolog.Logger

	// 便于测试替换
	virtualMemory func() (*mem.VirtualMemoryStat, error)
}

// NewResourceMonitor 创建监控器, warnMB<=0时使用512MB
func NewResourceMonitor(warnMB int, logger zerolog.Logger) *ResourceMonitor {
	if warnMB <= 0 {
		warnMB = 512
	}
	return &ResourceMonitor{
		warnBytes:     uint64(warnMB) << 20,
		warnEvery:     30 * time.Second,
		logger:        logger,
		virtualMemory: mem.VirtualMemory,
	}
}

// Check 采样一次内存, 必要时告警(同一等级30秒内只告警一次)
// 只在监控goroutine中调用
func (rm *ResourceMonitor) Check(queueDepth int) MemoryStatus {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := MemoryStatus{
		HeapAlloc:  memStats.HeapAlloc,
		QueueDepth: queueDepth,
		Pressure:   PressureNormal,
	}

	vm, err := rm.virtualMemory()
	if err != nil {
		rm.logger.Debug().Err(err).Msg("获取系统内存失败")
		return status
	}
	status.TotalMemory = vm.Total
	status.AvailableMemory = vm.Available

	switch {
	case vm.Available < rm.warnBytes/2:
		status.Pressure = PressureCritical
	case vm.Available < rm.warnBytes:
		status.Pressure = PressureWarning
	}

	if status.Pressure != PressureNormal && time.Since(rm.lastWarning) >= rm.warnEvery {
		rm.lastWarning = time.Now()
		event := rm.logger.Warn()
		if status.Pressure == PressureCritical {
			event = rm.logger.Error()
		}
		event.
			Uint64("available_mb", status.AvailableMemory>>20).
			Uint64("heap_mb", status.HeapAlloc>>20).
			Int("queue_depth", queueDepth).
			Str("pressure", status.Pressure).
			Msg("可用内存不足, 待爬队列无上限, 考虑设置页面预算")
	}
	return status
}
