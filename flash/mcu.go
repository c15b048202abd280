package flash

import (
	"os"
	"strings"
)

// Baud is the line rate used for the whole session, both for the RS-485
// bootloader frame and for the external flasher.
const Baud = 115200

var DefaultFlasher = "stm32flash"
var DefaultStartPage = 5
var DefaultEndPage = 7

// Transport is the physical link to the target.
type Transport int

const (
	// TransportDirect is point-to-point RS-232 with reset and boot-select
	// lines wired to the host.
	TransportDirect Transport = iota
	// TransportRS485 is a shared half-duplex bus with a direction-control line.
	TransportRS485
)

var transportNames = map[string]Transport{
	"direct": TransportDirect,
	"rs232":  TransportDirect,
	"rs485":  TransportRS485,
}

func (t Transport) String() string {
	switch t {
	case TransportDirect:
		return "direct"
	case TransportRS485:
		return "rs485"
	}
	return "unknown"
}

// ParseTransport maps a transport name to its Transport.
func ParseTransport(s string) (Transport, error) {
	t, ok := transportNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, markf(ErrConfig, nil, "unknown transport %q (want one of %s)",
			s, strings.Join(sortedKeys(transportNames), ", "))
	}
	return t, nil
}

// SelectTransport picks RS-485 when it is requested explicitly or when a
// direction-control line is supplied, and the direct link otherwise.
func SelectTransport(rs485 bool, directionGPIO string) Transport {
	if rs485 || directionGPIO != "" {
		return TransportRS485
	}
	return TransportDirect
}

// Config defines a single flash job. It is built once and not changed while
// the job runs.
type Config struct {
	TTY     string
	HexFile string

	Transport Transport

	// DirectionGPIO is the RS-485 transceiver direction line.
	DirectionGPIO string

	// ResetGPIO, Boot0GPIO and Boot1GPIO are the direct-link control lines.
	ResetGPIO string
	Boot0GPIO string
	Boot1GPIO string

	FlasherPath string
	StartPage   int
	EndPage     int

	// StrictExit reports flasher launch or exit failures as errors from
	// Flash instead of only logging them.
	StrictExit bool
}

// NewConfig returns a Config with the default flasher and RS-485 page range.
func NewConfig() *Config {
	return &Config{
		FlasherPath: DefaultFlasher,
		StartPage:   DefaultStartPage,
		EndPage:     DefaultEndPage,
	}
}

// lineSet holds the parsed lines a transport needs. Lines the transport does
// not use stay zero.
type lineSet struct {
	direction Line
	reset     Line
	boot0     Line
	boot1     Line
}

// Validate checks the job and resolves its GPIO lines. It performs no GPIO or
// serial I/O.
func (c *Config) Validate() error {
	_, err := c.lines()
	return err
}

func (c *Config) lines() (ls lineSet, err error) {
	if c.TTY == "" {
		return ls, markf(ErrConfig, nil, "serial port is required")
	}
	if c.HexFile == "" {
		return ls, markf(ErrConfig, nil, "hex file is required")
	}
	if _, err := os.Stat(c.HexFile); err != nil {
		return ls, markf(ErrConfig, err, "hex file %s", c.HexFile)
	}

	switch c.Transport {
	case TransportRS485:
		if c.StartPage < 0 || c.EndPage < c.StartPage {
			return ls, markf(ErrConfig, nil, "invalid page range %d-%d", c.StartPage, c.EndPage)
		}
		ls.direction, err = ParseLine("direction", c.DirectionGPIO)
		return ls, err

	case TransportDirect:
		if ls.boot0, err = ParseLine("boot0", c.Boot0GPIO); err != nil {
			return
		}
		if ls.boot1, err = ParseLine("boot1", c.Boot1GPIO); err != nil {
			return
		}
		ls.reset, err = ParseLine("reset", c.ResetGPIO)
		return ls, err
	}

	return ls, markf(ErrConfig, nil, "unsupported transport %s", c.Transport)
}

// Flasher returns the flasher program that will be run.
func (c *Config) Flasher() string {
	if c.FlasherPath != "" {
		return c.FlasherPath
	}
	return DefaultFlasher
}
