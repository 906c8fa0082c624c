package sysinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lesionscan/lesionscan/internal/errors"
)

func TestDiskUsageOfTempDir(t *testing.T) {
	stats, err := DiskUsage(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, stats.Total)
	assert.LessOrEqual(t, stats.Free, stats.Total)
}

func TestDiskUsageMissingPath(t *testing.T) {
	_, err := DiskUsage("/definitely/not/a/real/path")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDiskUsage))
}

func TestCheckFreeSpace(t *testing.T) {
	fixed := func(n uint64) func(string) (uint64, error) {
		return func(string) (uint64, error) { return n, nil }
	}

	tests := []struct {
		name      string
		free      uint64
		minFreeMB uint64
		wantErr   bool
	}{
		{"plenty", 500 * bytesPerMB, 100, false},
		{"exactly at limit", 100 * bytesPerMB, 100, false},
		{"below limit", 99 * bytesPerMB, 100, true},
		{"check disabled", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckFreeSpace("/uploads", tt.minFreeMB, fixed(tt.free))
			assert.Equal(t, tt.free, got)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCategory(err, errors.CategoryDiskUsage))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSnapshot(t *testing.T) {
	res, err := Snapshot(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, res.Host.NumCPU)
	assert.Positive(t, res.Memory.Total)
	assert.Positive(t, res.Disk.Total)
}
