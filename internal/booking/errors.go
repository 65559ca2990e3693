package booking

import "errors"

// TerminalError marks a reconciliation failure that no retry can fix, such
// as a hotel id that does not exist. The queue still retries it like any
// other failure (a missing hotel is often a sync lag that resolves), but
// operators can tell the two classes apart in logs.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string { return e.Err.Error() }

func (e *TerminalError) Unwrap() error { return e.Err }

// Terminal wraps err as a TerminalError.
func Terminal(err error) error {
	return &TerminalError{Err: err}
}

// IsTerminal reports whether err is (or wraps) a TerminalError.
func IsTerminal(err error) bool {
	var te *TerminalError
	return errors.As(err, &te)
}
