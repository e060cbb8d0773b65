package maplet

import "fmt"

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message. All engine failures are reported through it; a
// failed operation leaves the engine unchanged.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("MapletError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// CodeOf extracts the return code from an error, or RetCInternalError if
// the error did not originate here.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return RetCInternalError
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

// RetCode classifies engine failures. Configuration errors are raised only
// at construction, capacity and collision errors by mutating operations,
// operator errors by the merge operator, and internal errors indicate a
// bug.
type RetCode uint64

const (
	RetCSuccess           RetCode = iota // 0: Operation executed successfully.
	RetCInvalidConfig                    // 1: Invalid construction parameter.
	RetCInvalidCapacity                  // 2: Invalid capacity for a resize.
	RetCCapacityExceeded                 // 3: Load bound hit with auto-resize disabled.
	RetCCollisionLimit                   // 4: Resize could not place all entries.
	RetCAlreadyPresent                   // 5: Duplicate-slot insert with merging disabled.
	RetCMergeFailed                      // 6: The merge operator returned an error.
	RetCInternalError                    // 7: Invariant violation; indicates a bug.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInvalidConfig:
		return "InvalidConfig"
	case RetCInvalidCapacity:
		return "InvalidCapacity"
	case RetCCapacityExceeded:
		return "CapacityExceeded"
	case RetCCollisionLimit:
		return "CollisionLimitExceeded"
	case RetCAlreadyPresent:
		return "AlreadyPresent"
	case RetCMergeFailed:
		return "MergeFailed"
	case RetCInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}
