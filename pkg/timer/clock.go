package timer

import "time"

// Remaining derives the countdown value for st at the given instant.
// The result is total − elapsed, clamped to zero and truncated to whole
// seconds. Because it reads only absolute timestamps, any number of
// missed or delayed ticks still converges on the correct value at the
// next invocation.
func Remaining(st State, total time.Duration, now time.Time) time.Duration {
	var rem time.Duration
	switch st.Status {
	case StatusRunning:
		rem = total - now.Sub(st.Anchor)
	case StatusPaused:
		rem = total - st.PauseOffset
	default:
		return total.Truncate(time.Second)
	}
	if rem < 0 {
		return 0
	}
	return rem.Truncate(time.Second)
}
