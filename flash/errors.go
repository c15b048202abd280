package flash

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds returned by this package. Match them with errors.Is.
var (
	ErrConfig           = errors.New("invalid flash configuration")
	ErrPortOpen         = errors.New("could not open serial port")
	ErrGpioIO           = errors.New("gpio line write failed")
	ErrProcessLaunch    = errors.New("could not launch flasher")
	ErrProcessExecution = errors.New("flasher exited with failure")
)

// kindError attaches one of the error kinds above to an underlying cause
// without hiding either from errors.Is / errors.As.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.cause)
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

func (e *kindError) Unwrap() error {
	return e.cause
}

// markf wraps cause with a message and tags it with kind. A nil cause yields
// an error carrying only the message.
func markf(kind, cause error, format string, args ...interface{}) error {
	if cause == nil {
		return &kindError{kind: kind, cause: errors.Errorf(format, args...)}
	}
	return &kindError{kind: kind, cause: errors.Wrapf(cause, format, args...)}
}
