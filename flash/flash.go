package flash

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"
)

// Microcontroller represents an embedded microcontroller that is put into its
// bootloader and programmed by the external flasher
type Microcontroller struct {
	config *Config

	lines   LineDriver
	ports   PortOpener
	sleeper Sleeper
	runner  Runner

	session *fsm.FSM
}

// Option configures the collaborators of a Microcontroller.
type Option func(*Microcontroller)

// WithLineDriver replaces the sysfs GPIO driver.
func WithLineDriver(d LineDriver) Option {
	return func(mc *Microcontroller) {
		mc.lines = d
	}
}

// WithPortOpener replaces the serial port opener.
func WithPortOpener(p PortOpener) Option {
	return func(mc *Microcontroller) {
		mc.ports = p
	}
}

// WithSleeper replaces the wall-clock sleeper.
func WithSleeper(s Sleeper) Option {
	return func(mc *Microcontroller) {
		mc.sleeper = s
	}
}

// WithRunner replaces the subprocess runner.
func WithRunner(r Runner) Option {
	return func(mc *Microcontroller) {
		mc.runner = r
	}
}

// NewMicrocontroller will create a new reference to a particular chip. The
// config is validated here so that a bad job fails before any I/O.
func NewMicrocontroller(c *Config, opts ...Option) (*Microcontroller, error) {
	if c == nil {
		c = NewConfig()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	mc := &Microcontroller{
		config:  c,
		lines:   SysfsDriver{},
		ports:   SerialOpener{},
		sleeper: RealSleeper{},
		runner:  ExecRunner{},
	}
	for _, o := range opts {
		o(mc)
	}

	return mc, nil
}

// State returns the current session state.
func (mc *Microcontroller) State() string {
	if mc.session == nil {
		return StateIdle
	}
	return mc.session.Current()
}

// Flash puts the target into its bootloader, runs the flasher and, on the
// direct link, returns the target to normal run mode whatever the flasher
// reported. Flasher failures are only returned when the config asks for a
// strict exit.
func (mc *Microcontroller) Flash(ctx context.Context) (*ProcessResult, error) {
	ls, err := mc.config.lines()
	if err != nil {
		return nil, err
	}

	mc.session = newSessionFSM()
	logrus.Infof("flashing %s over %s via %s", mc.config.HexFile, mc.config.Transport, mc.config.TTY)

	switch mc.config.Transport {
	case TransportRS485:
		err = mc.enterRS485BL(ctx, ls)
	default:
		err = mc.enterSTBL(ctx, ls)
	}
	if err != nil {
		return nil, err
	}
	if err := mc.step(ctx, eventFlash); err != nil {
		return nil, err
	}

	res, flashErr := mc.runFlasher()

	if mc.config.Transport == TransportDirect {
		if err := mc.exitSTBL(ctx, ls); err != nil {
			return res, err
		}
	}

	if flashErr != nil && mc.config.StrictExit {
		return res, flashErr
	}
	return res, nil
}
