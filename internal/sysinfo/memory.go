// file: internal/sysinfo/memory.go
// version: 2.0.0
// guid: 7a8b9c0d-1e2f-3a4b-5c6d-7e8f9a0b1c2d

// Package sysinfo sizes resource limits from the host.
package sysinfo

// SlotBytes is the memory budget of one concurrent decoder subprocess.
const SlotBytes = 256 << 20

// MaxDefaultSlots caps the default decoder concurrency.
const MaxDefaultSlots = 4

// availableMemoryProvider allows tests to override platform memory queries.
var availableMemoryProvider = getAvailableMemoryPlatform

// AvailableMemory returns the memory the host can hand out without swapping,
// or 0 when it cannot be determined.
func AvailableMemory() uint64 {
	return availableMemoryProvider()
}

// ExtractionSlots returns the default number of concurrent decoder
// subprocesses: one per CPU up to MaxDefaultSlots, and never more than the
// available memory holds at SlotBytes each. It is at least 1.
func ExtractionSlots(cpus int) int {
	slots := min(cpus, MaxDefaultSlots)
	if avail := availableMemoryProvider(); avail > 0 {
		slots = min(slots, int(avail/SlotBytes))
	}
	return max(slots, 1)
}
