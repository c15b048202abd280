package flash

import (
	"io"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// PortOpener opens a serial port for writing.
type PortOpener interface {
	Open(name string, baud int) (io.WriteCloser, error)
}

// SerialOpener opens real serial devices at 8N1.
type SerialOpener struct{}

func (SerialOpener) Open(name string, baud int) (io.WriteCloser, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, markf(ErrPortOpen, err, "could not open serial %s", name)
	}

	logrus.Debugf("serial %s open @ %d", name, baud)
	return port, nil
}

// writeAll writes bs to the port, failing on a short write.
func writeAll(w io.Writer, bs []byte) error {
	n, err := w.Write(bs)
	if err != nil {
		return err
	}
	if n != len(bs) {
		return io.ErrShortWrite
	}
	logrus.Debugf("serial tx: %x", bs)
	return nil
}
