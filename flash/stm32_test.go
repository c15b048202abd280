package flash

import (
	"bytes"
	"math"
	"testing"
	"time"
)

func TestBootloaderFrame(t *testing.T) {
	want := []byte{
		0x32, 0x47, 0x20, 0x0C, 0x00, 0x06, 0xDF, 0x02, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x01, 0x0C, 0x26, 0x44,
	}

	f := BootloaderFrame()
	if !bytes.Equal(f, want) {
		t.Fatalf("frame = % x, want % x", f, want)
	}

	// callers get their own copy
	f[0] = 0xff
	if got := BootloaderFrame(); !bytes.Equal(got, want) {
		t.Errorf("frame changed after caller write: % x", got)
	}
}

func TestFrameFlushWait(t *testing.T) {
	for _, baud := range []int{9600, 19200, 57600, 115200, 230400, 921600} {
		want := 17.0 * 10.0 / float64(baud)
		got := FrameFlushWait(baud).Seconds()
		if math.Abs(got-want) > 1e-8 {
			t.Errorf("FrameFlushWait(%d) = %v s, want %v s", baud, got, want)
		}
	}

	for _, baud := range []int{0, -1} {
		if d := FrameFlushWait(baud); d != 0 {
			t.Errorf("FrameFlushWait(%d) = %s, want 0", baud, d)
		}
	}

	if d := FrameFlushWait(Baud); d < 1475*time.Microsecond || d > 1476*time.Microsecond {
		t.Errorf("FrameFlushWait(%d) = %s", Baud, d)
	}
}

func TestProtocolTimings(t *testing.T) {
	if PinSettleWait != 500*time.Millisecond || BootloaderInitWait != 500*time.Millisecond {
		t.Errorf("direct waits = %s/%s, want 500ms/500ms", PinSettleWait, BootloaderInitWait)
	}
	if DeviceResetWait != 2*time.Second {
		t.Errorf("reset wait = %s, want 2s", DeviceResetWait)
	}
}
