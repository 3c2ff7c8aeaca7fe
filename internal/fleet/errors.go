package fleet

import "errors"

var (
	// ErrNotFound reports a lookup miss for a drone or alert.
	ErrNotFound = errors.New("not found")
	// ErrInvalidStatus reports an unrecognized or disallowed drone status.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidAlert reports a malformed alert payload.
	ErrInvalidAlert = errors.New("invalid alert")
	// ErrInvalidArgument reports out-of-range numeric input or a bad seed.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrorKind returns the taxonomy name of err for presentation, or "Internal"
// when err does not wrap one of the store errors.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInvalidStatus):
		return "InvalidStatus"
	case errors.Is(err, ErrInvalidAlert):
		return "InvalidAlert"
	case errors.Is(err, ErrInvalidArgument):
		return "InvalidArgument"
	}
	return "Internal"
}
