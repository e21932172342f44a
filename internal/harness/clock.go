package harness

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// monotonic は CLOCK_MONOTONIC の値を返す
func monotonic() unix.Timespec {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return unix.NsecToTimespec(time.Now().UnixNano())
	}
	return ts
}

// sleepContext は d の間、または ctx が終了するまで待機する
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
