package daemon

import (
	"errors"
	"fmt"

	"github.com/CiderSlime/dagster/internal/asset"
)

// ErrorCode categorizes evaluation errors.
type ErrorCode string

const (
	// ErrCodeInvalidOptions indicates a missing graph or store.
	ErrCodeInvalidOptions ErrorCode = "INVALID_OPTIONS"

	// ErrCodeInvalidCursor indicates a cursor token that does not decode.
	ErrCodeInvalidCursor ErrorCode = "INVALID_CURSOR"

	// ErrCodeUnknownTarget indicates a target key outside the graph.
	ErrCodeUnknownTarget ErrorCode = "UNKNOWN_TARGET"

	// ErrCodeStore indicates a failed history read.
	ErrCodeStore ErrorCode = "STORE"

	// ErrCodeSubset indicates a partition subset that could not be serialized.
	ErrCodeSubset ErrorCode = "SUBSET"
)

// EvaluationError is returned by Evaluate. No partial result accompanies it.
type EvaluationError struct {
	Code    ErrorCode
	Asset   asset.Key
	Message string
	Err     error
}

func (e *EvaluationError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Asset != "" {
		msg = fmt.Sprintf("%s (asset=%s)", msg, e.Asset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// IsEvaluationError reports whether err is an *EvaluationError with code.
// An empty code matches any evaluation error.
func IsEvaluationError(err error, code ErrorCode) bool {
	var ee *EvaluationError
	return errors.As(err, &ee) && (code == "" || ee.Code == code)
}
