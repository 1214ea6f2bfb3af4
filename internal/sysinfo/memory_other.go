// file: internal/sysinfo/memory_other.go
// version: 1.0.0
// guid: 4e8a1c63-d2f9-4b07-95e3-7a0c6b1f2d84

//go:build !linux

package sysinfo

// Hosts without /proc fall back to the CPU-based limit.
func getAvailableMemoryPlatform() uint64 { return 0 }
