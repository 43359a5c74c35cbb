package errorsx

import (
	"errors"
	"fmt"
)

// ReasonedError carries a machine-readable reason code alongside its cause.
// The code is folded into the message so plain log lines stay greppable by
// reason.
type ReasonedError struct {
	reason ReasonCode
	cause  error
}

func (e *ReasonedError) Error() string {
	if e.cause == nil {
		return string(e.reason)
	}
	return fmt.Sprintf("%s: %s", e.reason, e.cause)
}

func (e *ReasonedError) Unwrap() error { return e.cause }

// Wrap tags err with a reason code. The first reason attached sticks:
// wrapping an already-reasoned error returns it unchanged, so outer layers
// never mask the code recorded at the failure site.
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	var re *ReasonedError
	if errors.As(err, &re) {
		return err
	}
	return &ReasonedError{reason: reason, cause: err}
}

// Reason reports the reason code attached anywhere in err's chain, or
// ReasonUnknown when none is.
func Reason(err error) ReasonCode {
	var re *ReasonedError
	if errors.As(err, &re) {
		return re.reason
	}
	return ReasonUnknown
}

// HasReason reports whether err carries the given reason code.
func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}
