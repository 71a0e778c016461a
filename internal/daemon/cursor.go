package daemon

import (
	"encoding/json"
	"slices"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/canon"
)

// Cursor is the opaque state carried from one tick to the next. Callers
// only pass the cursor returned by one Evaluate into the next.
type Cursor struct {
	token string
}

// EmptyCursor is the cursor of the first tick.
func EmptyCursor() Cursor { return Cursor{} }

// CursorFromString rehydrates a cursor previously rendered with String.
func CursorFromString(s string) Cursor { return Cursor{token: s} }

// IsEmpty reports whether this is the first-tick cursor.
func (c Cursor) IsEmpty() bool { return c.token == "" }

// String renders the cursor in its serialized form.
func (c Cursor) String() string { return c.token }

type cursorState struct {
	EvaluationID    int64               `json:"evaluation_id"`
	LatestStorageID int64               `json:"latest_storage_id"`
	Handled         map[string][]string `json:"handled"`
}

func decodeCursor(c Cursor) (cursorState, error) {
	st := cursorState{Handled: map[string][]string{}}
	if c.IsEmpty() {
		return st, nil
	}
	if err := json.Unmarshal([]byte(c.token), &st); err != nil {
		return cursorState{}, err
	}
	if st.Handled == nil {
		st.Handled = map[string][]string{}
	}
	return st, nil
}

func (st cursorState) encode() (Cursor, error) {
	handled := make(map[string]any, len(st.Handled))
	for k, parts := range st.Handled {
		handled[k] = parts
	}
	data, err := canon.Marshal(map[string]any{
		"evaluation_id":     st.EvaluationID,
		"latest_storage_id": st.LatestStorageID,
		"handled":           handled,
	})
	if err != nil {
		return Cursor{}, err
	}
	return Cursor{token: string(data)}, nil
}

func (st cursorState) isHandled(key asset.Key, partition string) bool {
	return slices.Contains(st.Handled[string(key)], partition)
}

// markHandled records requested partitions, keeping each list sorted.
func (st cursorState) markHandled(key asset.Key, partitions []string) {
	if len(partitions) == 0 {
		return
	}
	merged := append(slices.Clone(st.Handled[string(key)]), partitions...)
	slices.Sort(merged)
	st.Handled[string(key)] = slices.Compact(merged)
}
