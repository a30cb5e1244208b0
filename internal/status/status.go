// Package status defines the uniform result signaling used across
// the emulation core.
package status

// Code enumerates the engine's result kinds. OK is the zero value so a
// freshly zeroed status.Code reads as success.
type Code int

const (
	OK Code = iota
	Generic
	NullPointer
	InvalidArgument
	UndefinedInstruction
	AddressOutOfBound
	NotInitialized
	AlreadyInitialized
	AlreadyFreed
	NoMemory
	FileNotFound
	ChecksumFailure
	Unsupported
	RequestExit
)

var names = [...]string{
	"ok",
	"generic error",
	"null pointer",
	"invalid argument",
	"undefined instruction",
	"address out of bound",
	"not initialized",
	"already initialized",
	"already freed",
	"no memory",
	"file not found",
	"checksum failure",
	"unsupported",
	"request exit",
}

func (c Code) String() string {
	if c < 0 || int(c) >= len(names) {
		return "unknown status"
	}
	return names[c]
}

// Fatal reports whether c halts the emulation loop: everything
// except the load-time-recoverable kinds and the idempotent no-ops
// is fatal.
func (c Code) Fatal() bool {
	switch c {
	case OK, ChecksumFailure, FileNotFound, NoMemory, Unsupported,
		AlreadyInitialized, AlreadyFreed, RequestExit:
		return false
	default:
		return true
	}
}

// Error wraps a Code as a standard Go error, letting callers use
// errors.Is/errors.As against status.Code while the core returns plain
// errors at its boundaries.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Msg
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New builds an *Error for code with an optional formatted message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap is a convenience constructor used where a Code needs no extra
// context, e.g. `return status.Wrap(status.AddressOutOfBound)`.
func Wrap(code Code) *Error {
	return &Error{Code: code}
}
