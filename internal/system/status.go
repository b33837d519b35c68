// Package system assembles the diagnostics snapshot behind the studio's
// system status view: host facts, memory pressure, engine reachability,
// and history usage.
package system

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"tts-studio/internal/core"
	"tts-studio/internal/studioutil"
)

const healthCheckTimeout = 5 * time.Second

// HostInfo describes the machine the studio runs on.
type HostInfo struct {
	Hostname string `json:"hostname"`
	OS       string `json:"os"`
	Platform string `json:"platform"`
	Arch     string `json:"arch"`
	CPUCores int    `json:"cpu_cores"`
}

// MemoryInfo describes current memory usage.
type MemoryInfo struct {
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	UsedPercent float64 `json:"used_percent"`
	Total       string  `json:"total"`
	Used        string  `json:"used"`
}

// HistoryInfo describes history usage in both raw and human form.
type HistoryInfo struct {
	Files      int    `json:"files"`
	TotalBytes int64  `json:"total_bytes"`
	TotalSize  string `json:"total_size"`
}

// Status is the full diagnostics snapshot.
type Status struct {
	Host          HostInfo    `json:"host"`
	Memory        MemoryInfo  `json:"memory"`
	Device        string      `json:"device"`
	EngineHealthy bool        `json:"engine_healthy"`
	EngineError   string      `json:"engine_error,omitempty"`
	History       HistoryInfo `json:"history"`
}

// Reporter builds Status snapshots.
type Reporter struct {
	engine  core.SpeechEngine
	history core.HistoryStore
	device  string
}

// NewReporter creates a reporter over the given engine and history store.
func NewReporter(engine core.SpeechEngine, history core.HistoryStore, device string) *Reporter {
	return &Reporter{
		engine:  engine,
		history: history,
		device:  device,
	}
}

// Snapshot gathers the current diagnostics. Host and memory probes that
// fail leave their sections zeroed rather than failing the whole snapshot.
func (r *Reporter) Snapshot(ctx context.Context) Status {
	status := Status{
		Host:          r.hostInfo(ctx),
		Memory:        r.memoryInfo(ctx),
		Device:        r.device,
		EngineHealthy: true,
		EngineError:   "",
		History:       HistoryInfo{Files: 0, TotalBytes: 0, TotalSize: ""},
	}

	healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	err := r.engine.Health(healthCtx)
	if err != nil {
		status.EngineHealthy = false
		status.EngineError = err.Error()
	}

	stats, err := r.history.Stats(ctx)
	if err == nil {
		status.History = HistoryInfo{
			Files:      stats.Files,
			TotalBytes: stats.TotalBytes,
			TotalSize:  studioutil.FormatBytes(stats.TotalBytes),
		}
	}

	return status
}

func (r *Reporter) hostInfo(ctx context.Context) HostInfo {
	info := HostInfo{
		Hostname: "",
		OS:       runtime.GOOS,
		Platform: "",
		Arch:     runtime.GOARCH,
		CPUCores: runtime.NumCPU(),
	}

	hostStats, err := host.InfoWithContext(ctx)
	if err == nil {
		info.Hostname = hostStats.Hostname
		info.Platform = hostStats.Platform
	}

	return info
}

func (r *Reporter) memoryInfo(ctx context.Context) MemoryInfo {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryInfo{TotalBytes: 0, UsedBytes: 0, UsedPercent: 0, Total: "", Used: ""}
	}

	return MemoryInfo{
		TotalBytes:  vm.Total,
		UsedBytes:   vm.Used,
		UsedPercent: vm.UsedPercent,
		Total:       studioutil.FormatBytes(int64(vm.Total)),
		Used:        studioutil.FormatBytes(int64(vm.Used)),
	}
}
