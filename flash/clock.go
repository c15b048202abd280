package flash

import "time"

// Protocol timings. The target gives no handshake, so these waits are the
// only synchronization and must not be shortened.
const (
	PinSettleWait      = 500 * time.Millisecond
	BootloaderInitWait = 500 * time.Millisecond
	DeviceResetWait    = 2 * time.Second
)

// Sleeper blocks the caller for a duration.
type Sleeper interface {
	Sleep(d time.Duration)
}

// RealSleeper sleeps on the wall clock.
type RealSleeper struct{}

func (RealSleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}
