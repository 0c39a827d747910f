package execution

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPrice     = errors.New("price must be > 0")
	ErrNoPosition       = errors.New("no open position")
	ErrCloseUnsupported = errors.New("backend keeps no local positions")
)

// DispatchError means a requested trade did not happen. Callers must handle it.
type DispatchError struct {
	Symbol string
	Stage  string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s failed at %s: %v", e.Symbol, e.Stage, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
