package led

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidLed     = errors.New("invalid led id")
	ErrInvalidColor   = errors.New("invalid color")
	ErrLengthMismatch = errors.New("ids and colors differ in length")
	ErrWrongLength    = errors.New("frame has wrong number of colors")
	ErrShortWrite     = errors.New("short write to controller")
	ErrTimeout        = errors.New("timed out waiting for controller response")
	ErrPairing        = errors.New("controllers do not form the expected pair")
	ErrSizeMismatch   = errors.New("image size does not match pixel mask")
	ErrInvalidLevel   = errors.New("calibration level out of range")
	ErrNoSensor       = errors.New("no controller carries the light sensor")
	ErrNotVerified    = errors.New("controller link is not verified")
)

// OpError records which operation failed, on which controller and for which
// LED. Controller and Led are -1 when they do not apply.
type OpError struct {
	Op         string
	Controller Controller
	Identity   string
	Led        ID
	Err        error
}

// NewOpError returns an OpError with no controller or LED attached.
func NewOpError(op string, err error) *OpError {
	return &OpError{Op: op, Controller: -1, Led: -1, Err: err}
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Controller >= 0 {
		fmt.Fprintf(&b, " controller=%d", e.Controller)
	}
	if e.Identity != "" {
		fmt.Fprintf(&b, " (%s)", e.Identity)
	}
	if e.Led >= 0 {
		fmt.Fprintf(&b, " led=%d", e.Led)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *OpError) Unwrap() error { return e.Err }

// IsValidation reports whether err is one of the errors raised before any
// wire activity takes place.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidLed, ErrInvalidColor, ErrLengthMismatch, ErrWrongLength,
		ErrSizeMismatch, ErrInvalidLevel,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
