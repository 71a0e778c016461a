package asset

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/CiderSlime/dagster/internal/canon"
)

const subsetVersion = 1

// PartitionSubset is a set of partition keys of one definition.
type PartitionSubset struct {
	def  PartitionsDefinition
	keys []string
}

// NewSubset builds a subset, rejecting keys outside def.
func NewSubset(def PartitionsDefinition, keys ...string) (PartitionSubset, error) {
	if def == nil {
		return PartitionSubset{}, subsetErrorf("no partitions definition")
	}
	for _, k := range keys {
		if _, ok := def.Index(k); !ok {
			return PartitionSubset{}, subsetErrorf("key %q is not part of %s", k, def)
		}
	}
	return PartitionSubset{def: def, keys: SortPartitionKeys(def, keys)}, nil
}

// Keys returns the subset's keys in definition order.
func (s PartitionSubset) Keys() []string { return slices.Clone(s.keys) }

func (s PartitionSubset) Len() int { return len(s.keys) }

func (s PartitionSubset) Contains(key string) bool { return slices.Contains(s.keys, key) }

// SerializedSubset is the opaque stored form of a PartitionSubset. It can
// only be read back through DeserializeSubset with the matching definition.
type SerializedSubset struct {
	blob string
}

// SerializedSubsetFromString wraps a previously serialized blob.
func SerializedSubsetFromString(blob string) SerializedSubset {
	return SerializedSubset{blob: blob}
}

func (s SerializedSubset) String() string { return s.blob }

type subsetWire struct {
	Version int      `json:"version"`
	Kind    string   `json:"kind"`
	Cadence string   `json:"cadence,omitempty"`
	Start   string   `json:"start,omitempty"`
	Ranges  [][2]int `json:"ranges,omitempty"`
	Keys    []string `json:"keys,omitempty"`
}

// Serialize encodes the subset. Time-window subsets are stored as
// half-open index ranges from the definition's start.
func (s PartitionSubset) Serialize() (SerializedSubset, error) {
	var obj map[string]any
	switch def := s.def.(type) {
	case TimeWindowPartitions:
		var ranges []any
		for _, r := range indexRanges(def, s.keys) {
			ranges = append(ranges, []any{r[0], r[1]})
		}
		if ranges == nil {
			ranges = []any{}
		}
		obj = map[string]any{
			"version": subsetVersion,
			"kind":    string(KindTimeWindow),
			"cadence": string(def.cadence),
			"start":   def.start.Format(def.cadence.Format()),
			"ranges":  ranges,
		}
	case StaticPartitions:
		obj = map[string]any{
			"version": subsetVersion,
			"kind":    string(KindStatic),
			"keys":    s.Keys(),
		}
	default:
		return SerializedSubset{}, subsetErrorf("cannot serialize subset of %T", s.def)
	}
	data, err := canon.Marshal(obj)
	if err != nil {
		return SerializedSubset{}, fmt.Errorf("serialize partition subset: %w", err)
	}
	return SerializedSubset{blob: string(data)}, nil
}

func indexRanges(def TimeWindowPartitions, keys []string) [][2]int {
	var ranges [][2]int
	for _, k := range keys {
		i, _ := def.Index(k)
		if n := len(ranges); n > 0 && ranges[n-1][1] == i {
			ranges[n-1][1] = i + 1
			continue
		}
		ranges = append(ranges, [2]int{i, i + 1})
	}
	return ranges
}

// DeserializeSubset decodes s against def.
func DeserializeSubset(s SerializedSubset, def PartitionsDefinition) (PartitionSubset, error) {
	if def == nil {
		return PartitionSubset{}, subsetErrorf("no partitions definition to decode against")
	}
	var wire subsetWire
	if err := json.Unmarshal([]byte(s.blob), &wire); err != nil {
		return PartitionSubset{}, subsetErrorf("malformed blob: %v", err)
	}
	if wire.Version != subsetVersion {
		return PartitionSubset{}, subsetErrorf("unsupported version %d", wire.Version)
	}
	if PartitionsKind(wire.Kind) != def.Kind() {
		return PartitionSubset{}, subsetErrorf("subset kind %q does not match %s", wire.Kind, def)
	}

	switch d := def.(type) {
	case TimeWindowPartitions:
		if Cadence(wire.Cadence) != d.cadence || wire.Start != d.start.Format(d.cadence.Format()) {
			return PartitionSubset{}, subsetErrorf("%s subset starting %s does not match %s",
				wire.Cadence, wire.Start, d)
		}
		var keys []string
		for _, r := range wire.Ranges {
			if r[0] < 0 || r[1] < r[0] {
				return PartitionSubset{}, subsetErrorf("invalid range [%d, %d)", r[0], r[1])
			}
			for i := r[0]; i < r[1]; i++ {
				keys = append(keys, d.KeyAt(i))
			}
		}
		return PartitionSubset{def: def, keys: keys}, nil
	default:
		return NewSubset(def, wire.Keys...)
	}
}
