package node

import "time"

// SystemClock reads host time as unix seconds.
type SystemClock struct{}

func (SystemClock) Now() uint64 {
	now := time.Now().Unix()
	if now <= 0 {
		return 0
	}
	return uint64(now)
}
