package flash

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// trace collects every side effect of a session in order.
type trace struct {
	events []string
}

func (t *trace) add(format string, args ...interface{}) {
	t.events = append(t.events, fmt.Sprintf(format, args...))
}

type recordingDriver struct {
	t    *trace
	fail map[string]error
}

func (d *recordingDriver) Set(l Line, high bool) error {
	if err, ok := d.fail[l.Name]; ok {
		return markf(ErrGpioIO, err, "could not write %s", l)
	}
	d.t.add("%s=%c", l.Name, levelByte(high))
	return nil
}

type recordingSleeper struct {
	t *trace
}

func (s recordingSleeper) Sleep(d time.Duration) {
	s.t.add("sleep %s", d)
}

type fakePort struct {
	t        *trace
	writeErr error
	closed   bool
}

func (p *fakePort) Write(bs []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.t.add("write %x", bs)
	return len(bs), nil
}

func (p *fakePort) Close() error {
	p.closed = true
	p.t.add("close")
	return nil
}

type fakeOpener struct {
	t       *trace
	port    *fakePort
	openErr error
	name    string
	baud    int
}

func (o *fakeOpener) Open(name string, baud int) (io.WriteCloser, error) {
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.name, o.baud = name, baud
	o.t.add("open %s", name)
	return o.port, nil
}

type fakeRunner struct {
	t    *trace
	res  *ProcessResult
	err  error
	name string
	args []string
}

func (r *fakeRunner) Run(name string, args []string) (*ProcessResult, error) {
	r.name, r.args = name, args
	r.t.add("run")
	return r.res, r.err
}

// rig wires a Microcontroller to fakes sharing one trace.
type rig struct {
	trace  *trace
	driver *recordingDriver
	opener *fakeOpener
	runner *fakeRunner
}

func newRig() *rig {
	tr := &trace{}
	return &rig{
		trace:  tr,
		driver: &recordingDriver{t: tr, fail: map[string]error{}},
		opener: &fakeOpener{t: tr, port: &fakePort{t: tr}},
		runner: &fakeRunner{t: tr, res: &ProcessResult{Success: true}},
	}
}

func (r *rig) microcontroller(t *testing.T, c *Config) *Microcontroller {
	t.Helper()
	mc, err := NewMicrocontroller(c,
		WithLineDriver(r.driver),
		WithPortOpener(r.opener),
		WithSleeper(recordingSleeper{t: r.trace}),
		WithRunner(r.runner),
	)
	if err != nil {
		t.Fatalf("NewMicrocontroller: %v", err)
	}
	return mc
}

func writeHexFile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "firmware.hex")
	if err := os.WriteFile(p, []byte(":00000001FF\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func directConfig(t *testing.T) *Config {
	c := NewConfig()
	c.TTY = "/dev/ttyS1"
	c.HexFile = writeHexFile(t)
	c.Transport = TransportDirect
	c.Boot0GPIO = "/sys/class/gpio/gpio39"
	c.Boot1GPIO = "/sys/class/gpio/gpio41"
	c.ResetGPIO = "/sys/class/gpio/gpio19"
	return c
}

func rs485Config(t *testing.T) *Config {
	c := NewConfig()
	c.TTY = "/dev/ttyS2"
	c.HexFile = writeHexFile(t)
	c.Transport = TransportRS485
	c.DirectionGPIO = "/sys/class/gpio/gpio7/value"
	return c
}
