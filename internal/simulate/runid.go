package simulate

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// RunIDGenerator produces run identifiers.
type RunIDGenerator interface {
	Generate() string
}

// SequentialRunIDs derives UUIDv5 identifiers from a namespace and a
// counter, so the same scenario always produces the same run IDs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialRunIDs struct {
	mu  sync.Mutex
	ns  uuid.UUID
	seq int
}

// NewSequentialRunIDs creates a generator scoped to namespace (typically
// the scenario id).
func NewSequentialRunIDs(namespace string) *SequentialRunIDs {
	return &SequentialRunIDs{ns: uuid.NewSHA1(uuid.NameSpaceOID, []byte("amp-sim/"+namespace))}
}

func (g *SequentialRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return uuid.NewSHA1(g.ns, []byte(strconv.Itoa(g.seq))).String()
}

// UUIDv7RunIDs generates time-sortable UUIDv7 identifiers. Useful when a
// file-backed instance is inspected after the fact.
type UUIDv7RunIDs struct{}

func (UUIDv7RunIDs) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedRunIDs returns predetermined identifiers in order and panics once
// they run out.
type FixedRunIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

func NewFixedRunIDs(ids ...string) *FixedRunIDs {
	return &FixedRunIDs{ids: ids}
}

func (g *FixedRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("FixedRunIDs: all run ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
