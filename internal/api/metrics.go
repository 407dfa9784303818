package api

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ServerMetrics содержит метрики процесса сервиса опций
type ServerMetrics struct {
	StartTime time.Time
}

// ProcessStats сводка по процессу для GET /api/v1/stats
type ProcessStats struct {
	Uptime     string `json:"uptime"`
	MemoryMB   string `json:"memory_mb"`
	CPUPercent string `json:"cpu_percent"`
	ServerTime int64  `json:"server_time"`
	PID        int    `json:"pid"`
}

// NewServerMetrics создает новый экземпляр метрик
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{
		StartTime: time.Now(),
	}
}

// Process собирает ProcessStats; ошибки gopsutil дают нулевые значения
func (sm *ServerMetrics) Process() ProcessStats {
	memoryMB, _ := sm.GetMemoryUsage()
	cpuPercent, _ := sm.GetCPUUsage()
	return ProcessStats{
		Uptime:     sm.GetUptime(),
		MemoryMB:   fmt.Sprintf("%.2f", memoryMB),
		CPUPercent: fmt.Sprintf("%.2f", cpuPercent),
		ServerTime: time.Now().Unix(),
		PID:        os.Getpid(),
	}
}

// GetUptime возвращает время работы сервиса
func (sm *ServerMetrics) GetUptime() string {
	return formatUptime(time.Since(sm.StartTime))
}

func formatUptime(uptime time.Duration) string {
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// GetMemoryUsage возвращает RSS процесса в MB, при ошибке gopsutil берёт runtime.MemStats
func (sm *ServerMetrics) GetMemoryUsage() (float64, error) {
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil {
			return float64(info.RSS) / 1024 / 1024, nil
		}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.Alloc) / 1024 / 1024, nil
}

// GetCPUUsage возвращает использование CPU процессом в процентах
func (sm *ServerMetrics) GetCPUUsage() (float64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		// системная метрика как запасной вариант
		cpuPercents, err := cpu.Percent(100*time.Millisecond, false)
		if err != nil || len(cpuPercents) == 0 {
			return 0, err
		}
		return cpuPercents[0], nil
	}

	return cpuPercent, nil
}

// GetDetailedMemoryStats возвращает статистику кучи Go
func (sm *ServerMetrics) GetDetailedMemoryStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"alloc_mb":      float64(m.Alloc) / 1024 / 1024,
		"sys_mb":        float64(m.Sys) / 1024 / 1024,
		"heap_alloc_mb": float64(m.HeapAlloc) / 1024 / 1024,
		"num_gc":        m.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}
}
