package flash

import (
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/piotrjaromin/gpio"
	"github.com/sirupsen/logrus"
)

// Line is a single logical GPIO control point. It is addressed either by a
// sysfs-style path or by a kernel GPIO number.
type Line struct {
	Name string
	Addr string

	path   string
	pin    uint
	pinned bool
}

// ParseLine builds a Line from its configured form. A bare unsigned integer is
// taken as a kernel GPIO number, anything else as a path. Paths whose last
// element is not "value" get "/value" appended.
func ParseLine(name, addr string) (Line, error) {
	if addr == "" {
		return Line{}, markf(ErrConfig, nil, "gpio line %s is not configured", name)
	}

	l := Line{Name: name, Addr: addr}
	if n, err := strconv.ParseUint(addr, 10, 32); err == nil {
		l.pin = uint(n)
		l.pinned = true
		return l, nil
	}

	l.path = filepath.Clean(addr)
	if filepath.Base(l.path) != "value" {
		l.path = filepath.Join(l.path, "value")
	}
	return l, nil
}

// Path returns the file written for path-addressed lines.
func (l Line) Path() string {
	return l.path
}

// Pin reports the kernel GPIO number for number-addressed lines.
func (l Line) Pin() (uint, bool) {
	return l.pin, l.pinned
}

func (l Line) String() string {
	return l.Name + "(" + l.Addr + ")"
}

// LineDriver writes a logic level to a line. Every call acquires the line and
// releases it before returning.
type LineDriver interface {
	Set(l Line, high bool) error
}

// Assert drives the line high.
func Assert(d LineDriver, l Line) error {
	return d.Set(l, true)
}

// Deassert drives the line low.
func Deassert(d LineDriver, l Line) error {
	return d.Set(l, false)
}

// SysfsDriver writes lines through the Linux sysfs GPIO interface.
type SysfsDriver struct{}

func (SysfsDriver) Set(l Line, high bool) error {
	if l.pinned {
		return setPin(l, high)
	}
	return setValueFile(l, high)
}

func levelByte(high bool) byte {
	if high {
		return '1'
	}
	return '0'
}

func setValueFile(l Line, high bool) error {
	f, err := os.OpenFile(l.path, os.O_WRONLY, 0)
	if err != nil {
		return markf(ErrGpioIO, err, "could not open %s", l)
	}
	defer f.Close()

	if _, err := f.Write([]byte{levelByte(high)}); err != nil {
		return markf(ErrGpioIO, err, "could not write %s", l)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return markf(ErrGpioIO, err, "could not rewind %s", l)
	}

	logrus.Debugf("gpio %s <- %c", l, levelByte(high))
	return nil
}

// pinOutput is the part of gpio.Pin used to drive a numbered line.
type pinOutput interface {
	High() error
	Low() error
	Close()
}

var newPinOutput = func(pin uint, high bool) (pinOutput, error) {
	return gpio.NewOutput(pin, high)
}

// setPin leaves the pin exported so its level holds between writes; only the
// value handle is released.
func setPin(l Line, high bool) error {
	p, err := newPinOutput(l.pin, high)
	if err != nil {
		return markf(ErrGpioIO, err, "could not export %s", l)
	}
	defer p.Close()

	if high {
		err = p.High()
	} else {
		err = p.Low()
	}
	if err != nil {
		return markf(ErrGpioIO, err, "could not write %s", l)
	}

	logrus.Debugf("gpio %s <- %c", l, levelByte(high))
	return nil
}
