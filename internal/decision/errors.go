package decision

import (
	"errors"
	"fmt"

	"quorumtrader/internal/logger"
)

// SourceError is a transport level failure: timeout, refused connection,
// non-2xx status or a panic inside the source.
type SourceError struct {
	SourceID string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s failed: %v", e.SourceID, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// DecodeError means the source answered but the payload is not a valid decision.
type DecodeError struct {
	SourceID string
	Raw      string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("source %s returned undecodable payload: %v", e.SourceID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err carries a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// classify wraps bare errors into a SourceError so callers only see the two kinds.
func classify(sourceID string, err error) error {
	if err == nil {
		return nil
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	var se *SourceError
	if errors.As(err, &se) {
		return err
	}
	return &SourceError{SourceID: sourceID, Err: err}
}

func logFailure(sourceID string, elapsed fmt.Stringer, err error) {
	if IsDecodeError(err) {
		logger.Taggedf(logger.TagDecodeFailure, "source %s payload rejected elapsed=%s err=%v", sourceID, elapsed, err)
		return
	}
	logger.Taggedf(logger.TagSourceFailure, "source %s call failed elapsed=%s err=%v", sourceID, elapsed, err)
}
