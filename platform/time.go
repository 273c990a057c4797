package platform

import (
	"runtime"
	"time"
)

// AbsoluteTime returns the wall-clock time as fractional seconds since the
// Unix epoch (spec.md §6.1). It is not a monotonic reading.
func AbsoluteTime() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Sleep blocks for ms milliseconds. For ms <= 2 it spin-yields until
// AbsoluteTime reaches the target instead of trusting OS scheduling
// granularity; for larger durations it sleeps up to ms-2 and spin-yields the
// remaining tail, matching spec.md §6.1 and the teacher's spin-then-notify
// pattern in threads/foundation/epoch.go (WaitForChange's 1µs spin window
// before falling back to channel wait).
func Sleep(ms float64) {
	if ms <= 0 {
		return
	}
	start := AbsoluteTime()
	target := start + ms/1000.0
	if ms <= 2 {
		spinUntil(target)
		return
	}
	time.Sleep(time.Duration(ms-2) * time.Millisecond)
	spinUntil(target)
}

func spinUntil(target float64) {
	for AbsoluteTime() < target {
		runtime.Gosched()
	}
}
