package flash

import (
	"context"
	"time"

	"github.com/looplab/fsm"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// bitsPerByte counts the start and stop bits framing each byte on the wire.
const bitsPerByte = 10

// forceBootloaderFrame makes an RS-485 target reset into its bootloader.
var forceBootloaderFrame = [17]byte{
	0x32, 0x47, 0x20, 0x0c, 0x00, 0x06, 0xdf, 0x02, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x0c, 0x26, 0x44,
}

// BootloaderFrame returns a copy of the RS-485 force-bootloader frame.
func BootloaderFrame() []byte {
	f := forceBootloaderFrame
	return f[:]
}

// FrameFlushWait is how long the bootloader frame takes to leave the wire at
// the given baud rate. A non-positive baud rate yields 0.
func FrameFlushWait(baud int) time.Duration {
	if baud <= 0 {
		return 0
	}
	bits := float64(len(forceBootloaderFrame) * bitsPerByte)
	return time.Duration(bits / float64(baud) * float64(time.Second))
}

// session states
const (
	StateIdle                    = "idle"
	StateHoldResetWithBootSelect = "hold_reset_with_boot_select"
	StateReleasedIntoBootloader  = "released_into_bootloader"
	StateDirectionAsserted       = "direction_asserted"
	StateFrameSent               = "frame_sent"
	StateFrameFlushWait          = "frame_flush_wait"
	StateDirectionDeasserted     = "direction_deasserted"
	StateDeviceResetWait         = "device_reset_wait"
	StateFlashing                = "flashing"
	StateBootSelectCleared       = "boot_select_cleared"
)

// session events
const (
	eventHoldReset         = "hold_reset"
	eventReleaseReset      = "release_reset"
	eventAssertDirection   = "assert_direction"
	eventSendFrame         = "send_frame"
	eventFlushFrame        = "flush_frame"
	eventDeassertDirection = "deassert_direction"
	eventAwaitReset        = "await_reset"
	eventFlash             = "flash"
	eventClearBootSelect   = "clear_boot_select"
	eventReleaseIdle       = "release_idle"
)

// newSessionFSM builds the linear state machine shared by both transports.
// There are no edges back to idle on failure.
func newSessionFSM() *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventHoldReset, Src: []string{StateIdle}, Dst: StateHoldResetWithBootSelect},
			{Name: eventReleaseReset, Src: []string{StateHoldResetWithBootSelect}, Dst: StateReleasedIntoBootloader},

			{Name: eventAssertDirection, Src: []string{StateIdle}, Dst: StateDirectionAsserted},
			{Name: eventSendFrame, Src: []string{StateDirectionAsserted}, Dst: StateFrameSent},
			{Name: eventFlushFrame, Src: []string{StateFrameSent}, Dst: StateFrameFlushWait},
			{Name: eventDeassertDirection, Src: []string{StateFrameFlushWait}, Dst: StateDirectionDeasserted},
			{Name: eventAwaitReset, Src: []string{StateDirectionDeasserted}, Dst: StateDeviceResetWait},

			{Name: eventFlash, Src: []string{StateReleasedIntoBootloader, StateDeviceResetWait}, Dst: StateFlashing},

			{Name: eventClearBootSelect, Src: []string{StateFlashing}, Dst: StateBootSelectCleared},
			{Name: eventReleaseIdle, Src: []string{StateBootSelectCleared}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logrus.Debugf("session: %s -> %s", e.Src, e.Dst)
			},
		},
	)
}

// step advances the session state machine.
func (mc *Microcontroller) step(ctx context.Context, event string) error {
	if err := mc.session.Event(ctx, event); err != nil {
		return errors.Wrapf(err, "session event %s in state %s", event, mc.session.Current())
	}
	return nil
}

// enterSTBL will execute the GPIO sequence to enter the STM bootloader over
// the direct link
func (mc *Microcontroller) enterSTBL(ctx context.Context, ls lineSet) error {
	// BOOT0 high and BOOT1 low while reset is released will go into the
	// bootloader mode on STM32 chips
	if err := Assert(mc.lines, ls.boot0); err != nil {
		return err
	}
	if err := Deassert(mc.lines, ls.boot1); err != nil {
		return err
	}
	if err := Deassert(mc.lines, ls.reset); err != nil {
		return err
	}
	if err := mc.step(ctx, eventHoldReset); err != nil {
		return err
	}
	mc.sleeper.Sleep(PinSettleWait)

	if err := Assert(mc.lines, ls.reset); err != nil {
		return err
	}
	if err := mc.step(ctx, eventReleaseReset); err != nil {
		return err
	}
	mc.sleeper.Sleep(BootloaderInitWait)

	return nil
}

// exitSTBL will clear the boot-select lines and leave the chip running its
// application
func (mc *Microcontroller) exitSTBL(ctx context.Context, ls lineSet) error {
	if err := Deassert(mc.lines, ls.boot0); err != nil {
		return err
	}
	if err := Deassert(mc.lines, ls.boot1); err != nil {
		return err
	}
	if err := mc.step(ctx, eventClearBootSelect); err != nil {
		return err
	}

	if err := Assert(mc.lines, ls.reset); err != nil {
		return err
	}
	return mc.step(ctx, eventReleaseIdle)
}

// enterRS485BL will send the force-bootloader frame over the shared bus
func (mc *Microcontroller) enterRS485BL(ctx context.Context, ls lineSet) error {
	port, err := mc.ports.Open(mc.config.TTY, Baud)
	if err != nil {
		if !errors.Is(err, ErrPortOpen) {
			err = markf(ErrPortOpen, err, "could not open serial %s", mc.config.TTY)
		}
		return err
	}
	defer func() {
		if cerr := port.Close(); cerr != nil {
			logrus.Debugf("serial %s close: %v", mc.config.TTY, cerr)
		}
	}()

	logrus.Info("setting the target into bootloader mode")

	if err := Assert(mc.lines, ls.direction); err != nil {
		return err
	}
	if err := mc.step(ctx, eventAssertDirection); err != nil {
		return err
	}

	if err := writeAll(port, BootloaderFrame()); err != nil {
		// release the bus before giving up
		if derr := Deassert(mc.lines, ls.direction); derr != nil {
			logrus.Warnf("could not release %s: %v", ls.direction, derr)
		}
		return errors.Wrap(err, "could not write bootloader frame")
	}
	if err := mc.step(ctx, eventSendFrame); err != nil {
		return err
	}

	if err := mc.step(ctx, eventFlushFrame); err != nil {
		return err
	}
	mc.sleeper.Sleep(FrameFlushWait(Baud))

	if err := Deassert(mc.lines, ls.direction); err != nil {
		return err
	}
	if err := mc.step(ctx, eventDeassertDirection); err != nil {
		return err
	}

	if err := mc.step(ctx, eventAwaitReset); err != nil {
		return err
	}
	mc.sleeper.Sleep(DeviceResetWait)

	return nil
}
