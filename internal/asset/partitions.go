package asset

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// PartitionsKind is the family of a partitions definition.
type PartitionsKind string

const (
	KindTimeWindow PartitionsKind = "time_window"
	KindStatic     PartitionsKind = "static"
)

// PartitionsDefinition describes the partition keys of an asset.
//
// Keys is evaluated against a point in time: time-window definitions only
// expose windows that have closed by now. Index positions keys in the
// definition's full ordering regardless of now.
type PartitionsDefinition interface {
	Kind() PartitionsKind
	Keys(now time.Time) []string
	Has(key string, now time.Time) bool
	Index(key string) (int, bool)

	// Compatible reports whether partition keys map one to one between
	// the two definitions.
	Compatible(other PartitionsDefinition) bool
	String() string
}

// Cadence is the window length of a time-window definition.
type Cadence string

const (
	Daily  Cadence = "daily"
	Hourly Cadence = "hourly"
)

func (c Cadence) step() time.Duration {
	switch c {
	case Hourly:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// Format is the partition key layout for the cadence.
func (c Cadence) Format() string {
	switch c {
	case Hourly:
		return "2006-01-02-15:04"
	default:
		return "2006-01-02"
	}
}

// TimeWindowPartitions has one partition per closed window since start, UTC.
type TimeWindowPartitions struct {
	cadence Cadence
	start   time.Time
}

// NewTimeWindowPartitions validates that start is aligned to the cadence.
func NewTimeWindowPartitions(cadence Cadence, start time.Time) (TimeWindowPartitions, error) {
	if cadence != Daily && cadence != Hourly {
		return TimeWindowPartitions{}, fmt.Errorf("unknown cadence %q", cadence)
	}
	start = start.UTC()
	if !start.Truncate(cadence.step()).Equal(start) {
		return TimeWindowPartitions{}, fmt.Errorf("%s partitions: start %s is not aligned to a window boundary",
			cadence, start.Format(time.RFC3339))
	}
	return TimeWindowPartitions{cadence: cadence, start: start}, nil
}

// DailyPartitions parses start as "2006-01-02".
func DailyPartitions(start string) (TimeWindowPartitions, error) {
	return parseTimeWindow(Daily, start)
}

// HourlyPartitions parses start as "2006-01-02-15:04".
func HourlyPartitions(start string) (TimeWindowPartitions, error) {
	return parseTimeWindow(Hourly, start)
}

// MustDailyPartitions is DailyPartitions for literals in tests and fixtures.
func MustDailyPartitions(start string) TimeWindowPartitions {
	def, err := DailyPartitions(start)
	if err != nil {
		panic(err)
	}
	return def
}

func parseTimeWindow(cadence Cadence, start string) (TimeWindowPartitions, error) {
	t, err := time.ParseInLocation(cadence.Format(), start, time.UTC)
	if err != nil {
		return TimeWindowPartitions{}, fmt.Errorf("%s partitions: invalid start %q: %w", cadence, start, err)
	}
	return NewTimeWindowPartitions(cadence, t)
}

func (d TimeWindowPartitions) Kind() PartitionsKind { return KindTimeWindow }
func (d TimeWindowPartitions) Cadence() Cadence     { return d.cadence }
func (d TimeWindowPartitions) Start() time.Time     { return d.start }

func (d TimeWindowPartitions) count(now time.Time) int {
	elapsed := now.Sub(d.start)
	if elapsed < d.cadence.step() {
		return 0
	}
	return int(elapsed / d.cadence.step())
}

// Keys returns every window whose end is at or before now, oldest first.
func (d TimeWindowPartitions) Keys(now time.Time) []string {
	n := d.count(now)
	keys := make([]string, n)
	for i := range n {
		keys[i] = d.KeyAt(i)
	}
	return keys
}

// KeyAt formats the i-th window.
func (d TimeWindowPartitions) KeyAt(i int) string {
	return d.start.Add(time.Duration(i) * d.cadence.step()).Format(d.cadence.Format())
}

func (d TimeWindowPartitions) Index(key string) (int, bool) {
	t, err := time.ParseInLocation(d.cadence.Format(), key, time.UTC)
	if err != nil || t.Before(d.start) {
		return 0, false
	}
	offset := t.Sub(d.start)
	if offset%d.cadence.step() != 0 {
		return 0, false
	}
	return int(offset / d.cadence.step()), true
}

func (d TimeWindowPartitions) Has(key string, now time.Time) bool {
	i, ok := d.Index(key)
	return ok && i < d.count(now)
}

func (d TimeWindowPartitions) Compatible(other PartitionsDefinition) bool {
	o, ok := other.(TimeWindowPartitions)
	return ok && o.cadence == d.cadence
}

func (d TimeWindowPartitions) String() string {
	return fmt.Sprintf("%s partitions starting %s", d.cadence, d.start.Format(d.cadence.Format()))
}

// StaticPartitions is a fixed, ordered list of keys.
type StaticPartitions struct {
	keys []string
}

// NewStaticPartitions rejects empty lists, empty keys and duplicates.
func NewStaticPartitions(keys ...string) (StaticPartitions, error) {
	if len(keys) == 0 {
		return StaticPartitions{}, fmt.Errorf("static partitions: at least one key is required")
	}
	seen := make(map[string]bool, len(keys))
	for i, k := range keys {
		if k == "" {
			return StaticPartitions{}, fmt.Errorf("static partitions: key %d is empty", i)
		}
		if seen[k] {
			return StaticPartitions{}, fmt.Errorf("static partitions: duplicate key %q", k)
		}
		seen[k] = true
	}
	return StaticPartitions{keys: slices.Clone(keys)}, nil
}

func (d StaticPartitions) Kind() PartitionsKind    { return KindStatic }
func (d StaticPartitions) Keys(time.Time) []string { return slices.Clone(d.keys) }

func (d StaticPartitions) Index(key string) (int, bool) {
	i := slices.Index(d.keys, key)
	return i, i >= 0
}

func (d StaticPartitions) Has(key string, _ time.Time) bool {
	return slices.Contains(d.keys, key)
}

func (d StaticPartitions) Compatible(other PartitionsDefinition) bool {
	_, ok := other.(StaticPartitions)
	return ok
}

func (d StaticPartitions) String() string {
	return "static partitions [" + strings.Join(d.keys, ", ") + "]"
}

// SortPartitionKeys orders keys by their position in def. Keys outside the
// definition sort last, lexicographically.
func SortPartitionKeys(def PartitionsDefinition, keys []string) []string {
	out := slices.Clone(keys)
	slices.SortFunc(out, func(a, b string) int {
		ia, oka := def.Index(a)
		ib, okb := def.Index(b)
		switch {
		case oka && okb:
			return ia - ib
		case oka:
			return -1
		case okb:
			return 1
		default:
			return strings.Compare(a, b)
		}
	})
	return slices.Compact(out)
}
