package asset

import (
	"errors"
	"fmt"
	"strings"
)

// Graph construction error codes.
const (
	ErrInvalidKey    = "E_INVALID_KEY"
	ErrDuplicateKey  = "E_DUPLICATE_KEY"
	ErrDanglingDep   = "E_DANGLING_DEP"
	ErrCycleDetected = "E_CYCLE"
)

// GraphError reports why a spec list does not form a valid asset graph.
type GraphError struct {
	Code    string
	Key     Key
	Message string
	// Path is set for cycles: [a, b, a].
	Path []Key
}

func (e *GraphError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Key, e.Message, strings.Join(Strings(e.Path), " -> "))
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Key, e.Message)
}

// IsGraphError reports whether err is a *GraphError with the given code.
// An empty code matches any graph error.
func IsGraphError(err error, code string) bool {
	var ge *GraphError
	return errors.As(err, &ge) && (code == "" || ge.Code == code)
}

// SubsetError reports a serialized partition subset that does not match
// the definition it is decoded against.
type SubsetError struct {
	Reason string
}

func (e *SubsetError) Error() string {
	return "partition subset: " + e.Reason
}

func subsetErrorf(format string, args ...any) error {
	return &SubsetError{Reason: fmt.Sprintf(format, args...)}
}
