// file: internal/sysinfo/memory_linux.go
// version: 2.0.0
// guid: 9c0d1e2f-3a4b-5c6d-7e8f-9a0b1c2d3e4f

//go:build linux

package sysinfo

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

func getAvailableMemoryPlatform() uint64 {
	file, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer file.Close()
	return parseMeminfo(file, "MemAvailable:")
}

// parseMeminfo returns the value of field in bytes, or 0 when missing.
func parseMeminfo(r io.Reader, field string) uint64 {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != field {
			continue
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb * 1024
	}
	return 0
}
