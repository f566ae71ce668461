//go:build !unix

package bench

import "time"

// processCPUTime is unavailable on this platform; CPU columns read zero.
func processCPUTime() time.Duration { return 0 }
