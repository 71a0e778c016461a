// Package vclock provides the time source for ticks and simulated runs.
//
// A Virtual clock reads its ambient clock until a scope freezes it. Inside
// a scope every Now() returns the same instant; leaving the scope restores
// the ambient reading. Scopes do not nest. Each backing instance owns its
// own Virtual, so parallel scenarios never share a clock.
package vclock

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrScopeActive is returned when a scope is entered while another is open.
var ErrScopeActive = errors.New("vclock: a frozen scope is already active")

// Clock is anything that can tell the time.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in UTC.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed always returns the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }

// Virtual is a clock that can be frozen for the duration of a scope.
//
// Thread-safety: safe for concurrent reads; scope entry and exit are
// serialized by an internal mutex.
type Virtual struct {
	mu      sync.Mutex
	ambient Clock
	frozen  time.Time
	active  bool
	gen     uint64
}

// NewVirtual wraps ambient; a nil ambient uses System.
func NewVirtual(ambient Clock) *Virtual {
	if ambient == nil {
		ambient = System{}
	}
	return &Virtual{ambient: ambient}
}

// Now returns the frozen instant inside a scope, the ambient time otherwise.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.active {
		return v.frozen
	}
	return v.ambient.Now()
}

// Frozen reports whether a scope is active.
func (v *Virtual) Frozen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active
}

// Freeze enters a scope fixed at t. The returned release ends the scope;
// calling it more than once is a no-op. Prefer Do, which cannot leak a scope.
func (v *Virtual) Freeze(t time.Time) (release func(), err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.active {
		return nil, fmt.Errorf("freeze at %s: %w", t.Format(time.RFC3339), ErrScopeActive)
	}
	v.active = true
	v.frozen = t
	v.gen++
	gen := v.gen

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.active && v.gen == gen {
			v.active = false
			v.frozen = time.Time{}
		}
	}, nil
}

// Do runs fn with the clock frozen at t. The scope is released on every
// exit path, including a panic in fn.
func (v *Virtual) Do(t time.Time, fn func(Clock) error) error {
	release, err := v.Freeze(t)
	if err != nil {
		return err
	}
	defer release()
	return fn(v)
}
