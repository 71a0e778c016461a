package daemon

import "fmt"

// materializationQuota caps how many partitions of one asset a single
// tick may request. Partitions are ordered oldest first; the newest
// limit partitions are kept.
type materializationQuota struct {
	limit int
}

func newMaterializationQuota(limit int) *materializationQuota {
	return &materializationQuota{limit: limit}
}

// Apply splits partitions into the kept and discarded parts. A zero limit
// keeps everything.
func (q *materializationQuota) Apply(partitions []string) (keep, discard []string) {
	if q.limit <= 0 || len(partitions) <= q.limit {
		return partitions, nil
	}
	cut := len(partitions) - q.limit
	return partitions[cut:], partitions[:cut]
}

// Limit returns the configured cap.
func (q *materializationQuota) Limit() int { return q.limit }

// quotaExceeded describes a discard for logging.
type quotaExceeded struct {
	Requested int
	Limit     int
}

func (e quotaExceeded) String() string {
	return fmt.Sprintf("%d partitions requested, limit %d", e.Requested, e.Limit)
}
