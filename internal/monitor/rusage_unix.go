//go:build linux || darwin || freebsd

package monitor

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// maxRSS returns the peak resident set size in bytes.
func maxRSS() (uint64, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, err
	}
	if runtime.GOOS == "darwin" {
		return uint64(ru.Maxrss), nil // bytes
	}
	return uint64(ru.Maxrss) * 1024, nil // kilobytes
}
