//go:build !(linux || darwin || freebsd)

package monitor

import "errors"

func maxRSS() (uint64, error) {
	return 0, errors.New("getrusage not supported on this platform")
}
