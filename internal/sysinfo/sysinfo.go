// Package sysinfo reports host resources used by health checks and the
// upload free-space guard.
package sysinfo

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/lesionscan/lesionscan/internal/errors"
)

const bytesPerMB = 1024 * 1024

// DiskStats describes the volume holding a path.
type DiskStats struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total_bytes"`
	Free        uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// MemoryStats describes host and process memory.
type MemoryStats struct {
	Total       uint64  `json:"total_bytes"`
	Available   uint64  `json:"available_bytes"`
	UsedPercent float64 `json:"used_percent"`
	ProcessRSS  uint64  `json:"process_rss_bytes"`
}

// HostStats identifies the machine.
type HostStats struct {
	Hostname string `json:"hostname"`
	Platform string `json:"platform"`
	Uptime   uint64 `json:"uptime_seconds"`
	NumCPU   int    `json:"num_cpu"`
}

// Resources is a point-in-time snapshot of host resources.
type Resources struct {
	Host   HostStats   `json:"host"`
	Memory MemoryStats `json:"memory"`
	Disk   DiskStats   `json:"disk"`
}

// DiskUsage returns usage of the volume containing path.
func DiskUsage(path string) (DiskStats, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return DiskStats{}, errors.New(err).
			Component("sysinfo").
			Category(errors.CategoryDiskUsage).
			Context("path", path).
			Build()
	}
	return DiskStats{
		Path:        path,
		Total:       usage.Total,
		Free:        usage.Free,
		UsedPercent: usage.UsedPercent,
	}, nil
}

// FreeBytes returns the free space on the volume containing path.
func FreeBytes(path string) (uint64, error) {
	stats, err := DiskUsage(path)
	if err != nil {
		return 0, err
	}
	return stats.Free, nil
}

// CheckFreeSpace fails with a disk-usage error when fewer than minFreeMB
// megabytes are free at path. It returns the free byte count.
func CheckFreeSpace(path string, minFreeMB uint64, free func(string) (uint64, error)) (uint64, error) {
	if free == nil {
		free = FreeBytes
	}
	available, err := free(path)
	if err != nil {
		return 0, err
	}
	if minFreeMB > 0 && available < minFreeMB*bytesPerMB {
		return available, errors.Newf("insufficient disk space: %d MB free, %d MB required", available/bytesPerMB, minFreeMB).
			Component("sysinfo").
			Category(errors.CategoryDiskUsage).
			Context("path", path).
			Build()
	}
	return available, nil
}

// Memory returns host memory and the resident size of this process.
func Memory() (MemoryStats, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return MemoryStats{}, errors.New(err).
			Component("sysinfo").
			Category(errors.CategorySystem).
			Build()
	}
	stats := MemoryStats{
		Total:       vm.Total,
		Available:   vm.Available,
		UsedPercent: vm.UsedPercent,
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil { //nolint:gosec // pid fits in int32
		if info, err := proc.MemoryInfo(); err == nil && info != nil {
			stats.ProcessRSS = info.RSS
		}
	}
	return stats, nil
}

// Host returns basic host identification. Fields gopsutil cannot read are
// left empty.
func Host() HostStats {
	stats := HostStats{NumCPU: runtime.NumCPU()}
	if info, err := host.Info(); err == nil {
		stats.Hostname = info.Hostname
		stats.Platform = info.Platform
		stats.Uptime = info.Uptime
	}
	return stats
}

// Snapshot gathers host, memory and disk statistics. A failed probe leaves
// its section zeroed and is reported in the joined error.
func Snapshot(diskPath string) (Resources, error) {
	res := Resources{Host: Host()}
	memStats, memErr := Memory()
	res.Memory = memStats
	diskStats, diskErr := DiskUsage(diskPath)
	res.Disk = diskStats
	return res, errors.Join(memErr, diskErr)
}
