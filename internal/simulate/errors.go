package simulate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/CiderSlime/dagster/internal/asset"
)

// ErrInvalidRequest marks requests that cannot start a run at all: unknown
// assets, or partition keys that do not fit the selection. These are
// returned regardless of RaiseOnError.
var ErrInvalidRequest = errors.New("invalid run request")

// StepFailure is one asset whose stand-in raised.
type StepFailure struct {
	Key     asset.Key
	Message string
}

// ExecutionError is returned by Materialize when RaiseOnError is set and at
// least one step failed.
type ExecutionError struct {
	RunID    string
	Failures []StepFailure
}

func (e *ExecutionError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %s", f.Key, f.Message)
	}
	return fmt.Sprintf("run %s failed: %s", e.RunID, strings.Join(parts, "; "))
}

// IsExecutionError reports whether err is an *ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}
