package engine

import (
	"context"
	"errors"
	"net"
)

// Failure codes surfaced on terminally failed jobs and retry events.
const (
	CodeDataSource    = "data_source_error"
	CodeStorage       = "storage_error"
	CodeRenderFailed  = "render_failed"
	CodeBadFormat     = "unsupported_format"
	CodeBadParameters = "invalid_parameters"
	CodeTimeout       = "timeout"
	CodeWorkerLost    = "worker_lost"
	CodeExecution     = "execution_error"
)

// execError carries the classification the retry manager acts on.
type execError struct {
	code      string
	retryable bool
	err       error
}

func (e *execError) Error() string {
	return e.err.Error()
}

func (e *execError) Unwrap() error {
	return e.err
}

// Retryable wraps err as a transient failure eligible for backoff.
func Retryable(code string, err error) error {
	return &execError{code: code, retryable: true, err: err}
}

// Terminal wraps err as a deterministic failure not worth retrying.
func Terminal(code string, err error) error {
	return &execError{code: code, retryable: false, err: err}
}

// classify maps an execution error to a failure code and retryability.
// Unwrapped errors default to retryable: a failure of unknown cause is
// treated as transient until the retry budget runs out.
func classify(err error) (code string, retryable bool) {
	var ee *execError
	if errors.As(err, &ee) {
		return ee.code, ee.retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CodeTimeout, true
	}
	return CodeExecution, true
}
