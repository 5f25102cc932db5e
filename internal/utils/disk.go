package utils

import (
	"fmt"
	"syscall"
)

const (
	// MinimumFreeSpace is the free space below which health reports degraded
	MinimumFreeSpace = 1 * 1024 * 1024 * 1024 // 1GB

	// MaximumDiskUsagePercent is the usage above which health reports degraded
	MaximumDiskUsagePercent = 90
)

// DiskSpaceInfo contains information about disk space
type DiskSpaceInfo struct {
	TotalBytes     uint64
	FreeBytes      uint64
	AvailableBytes uint64
	UsedBytes      uint64
	UsedPercent    float64
}

// GetDiskSpace returns disk space information for a given path
func GetDiskSpace(path string) (*DiskSpaceInfo, error) {
	var stat syscall.Statfs_t
	err := syscall.Statfs(path, &stat)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk space: %w", err)
	}

	totalBytes := stat.Blocks * uint64(stat.Bsize)
	freeBytes := stat.Bfree * uint64(stat.Bsize)
	availableBytes := stat.Bavail * uint64(stat.Bsize) // Available to non-root users
	usedBytes := totalBytes - freeBytes

	var usedPercent float64
	if totalBytes > 0 {
		usedPercent = float64(usedBytes) / float64(totalBytes) * 100
	}

	return &DiskSpaceInfo{
		TotalBytes:     totalBytes,
		FreeBytes:      freeBytes,
		AvailableBytes: availableBytes,
		UsedBytes:      usedBytes,
		UsedPercent:    usedPercent,
	}, nil
}

// HasHeadroom reports whether the disk can still take a maximum-size upload
// while staying inside the free space and usage limits.
func (d *DiskSpaceInfo) HasHeadroom(maxUpload int64) bool {
	if d.AvailableBytes < MinimumFreeSpace {
		return false
	}
	if uint64(maxUpload) > d.AvailableBytes {
		return false
	}
	return d.UsedPercent <= MaximumDiskUsagePercent
}
