package daemon

import (
	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/policy"
	"github.com/CiderSlime/dagster/internal/store"
)

// firing is one rule firing for one partition ("" when unpartitioned).
type firing struct {
	partition string
	data      EvaluationData
}

// ruleFunc evaluates a rule for key over partitions and returns the
// partitions it fired for, in input order.
type ruleFunc func(t *tick, key asset.Key, partitions []string) ([]firing, error)

var ruleFuncs = map[policy.RuleKind]ruleFunc{
	policy.KindMaterializeOnMissing:                materializeOnMissing,
	policy.KindMaterializeOnParentUpdated:          materializeOnParentUpdated,
	policy.KindSkipOnParentMissing:                 skipOnParentMissing,
	policy.KindSkipOnParentOutdated:                skipOnParentOutdated,
	policy.KindSkipOnNotAllParentsUpdated:          skipOnNotAllParentsUpdated,
	policy.KindSkipOnRequiredButNonexistentParents: skipOnRequiredButNonexistentParents,
}

// materializeOnMissing fires for partitions never materialized and never
// requested by an earlier tick. Time-window assets only look at their
// latest window.
func materializeOnMissing(t *tick, key asset.Key, partitions []string) ([]firing, error) {
	if def, ok := t.graph.PartitionsDef(key); ok && def.Kind() == asset.KindTimeWindow {
		partitions = partitions[len(partitions)-1:]
	}
	mats, err := t.materializations(key)
	if err != nil {
		return nil, err
	}
	var out []firing
	for _, p := range partitions {
		if _, ok := mats[p]; ok || t.state.isHandled(key, p) {
			continue
		}
		out = append(out, firing{partition: p})
	}
	return out, nil
}

// materializeOnParentUpdated fires when a parent has a materialization
// newer than both the previous tick and the asset's own latest one, or
// when a parent is requested in this tick.
func materializeOnParentUpdated(t *tick, key asset.Key, partitions []string) ([]firing, error) {
	mats, err := t.materializations(key)
	if err != nil {
		return nil, err
	}
	var out []firing
	for _, p := range partitions {
		own := mats[p].StorageID
		var updated, willUpdate []asset.Key
		for _, parent := range t.graph.Parents(key) {
			pm, err := t.materializations(parent)
			if err != nil {
				return nil, err
			}
			mapped, _ := t.graph.ParentPartitions(key, p, parent, t.now)
			for _, pp := range mapped {
				if t.isRequested(parent, pp) {
					willUpdate = append(willUpdate, parent)
				}
				ev, ok := pm[pp]
				if !ok || ev.StorageID <= t.state.LatestStorageID || ev.StorageID <= own {
					continue
				}
				changed, err := t.changedDataVersion(ev)
				if err != nil {
					return nil, err
				}
				if changed {
					updated = append(updated, parent)
				}
			}
		}
		if len(updated) > 0 || len(willUpdate) > 0 {
			out = append(out, firing{partition: p, data: NewParentUpdatedData(updated, willUpdate)})
		}
	}
	return out, nil
}

// skipOnParentMissing fires when a mapped parent partition has never been
// materialized. A parent requested in the same tick is still missing.
func skipOnParentMissing(t *tick, key asset.Key, partitions []string) ([]firing, error) {
	return waitingOn(t, key, partitions, func(parent asset.Key, mapped, _ []string) (bool, error) {
		pm, err := t.materializations(parent)
		if err != nil {
			return false, err
		}
		for _, pp := range mapped {
			if _, ok := pm[pp]; !ok {
				return true, nil
			}
		}
		return false, nil
	})
}

// skipOnParentOutdated fires when a materialized parent is older than one
// of its own parents. Parents requested in this tick are ignored.
func skipOnParentOutdated(t *tick, key asset.Key, partitions []string) ([]firing, error) {
	return waitingOn(t, key, partitions, func(parent asset.Key, mapped, _ []string) (bool, error) {
		pm, err := t.materializations(parent)
		if err != nil {
			return false, err
		}
		for _, pp := range mapped {
			ev, ok := pm[pp]
			if !ok || t.isRequested(parent, pp) {
				continue
			}
			outdated, err := t.outdated(parent, pp, ev)
			if err != nil || outdated {
				return outdated, err
			}
		}
		return false, nil
	})
}

// skipOnNotAllParentsUpdated fires unless every parent has data newer than
// the asset's latest materialization or is requested in this tick.
func skipOnNotAllParentsUpdated(t *tick, key asset.Key, partitions []string) ([]firing, error) {
	mats, err := t.materializations(key)
	if err != nil {
		return nil, err
	}
	var out []firing
	for _, p := range partitions {
		own := mats[p].StorageID
		fired, err := waitingOn(t, key, []string{p}, func(parent asset.Key, mapped, _ []string) (bool, error) {
			pm, err := t.materializations(parent)
			if err != nil {
				return false, err
			}
			for _, pp := range mapped {
				if t.isRequested(parent, pp) || pm[pp].StorageID > own {
					return false, nil
				}
			}
			return true, nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, fired...)
	}
	return out, nil
}

// skipOnRequiredButNonexistentParents fires when the partition mapping
// points at parent partitions that do not exist.
func skipOnRequiredButNonexistentParents(t *tick, key asset.Key, partitions []string) ([]firing, error) {
	return waitingOn(t, key, partitions, func(_ asset.Key, _, nonexistent []string) (bool, error) {
		return len(nonexistent) > 0, nil
	})
}

// waitingOn runs blocked against every parent of key for each partition and
// fires with the blocking parents as WaitingOnAssetsData.
func waitingOn(
	t *tick,
	key asset.Key,
	partitions []string,
	blocked func(parent asset.Key, mapped, nonexistent []string) (bool, error),
) ([]firing, error) {
	var out []firing
	for _, p := range partitions {
		var waiting []asset.Key
		for _, parent := range t.graph.Parents(key) {
			mapped, nonexistent := t.graph.ParentPartitions(key, p, parent, t.now)
			ok, err := blocked(parent, mapped, nonexistent)
			if err != nil {
				return nil, err
			}
			if ok {
				waiting = append(waiting, parent)
			}
		}
		if len(waiting) > 0 {
			out = append(out, firing{partition: p, data: NewWaitingOnAssetsData(waiting...)})
		}
	}
	return out, nil
}

// outdated reports whether ev, the latest materialization of key at
// partition, predates data in one of key's parents.
func (t *tick) outdated(key asset.Key, partition string, ev store.Event) (bool, error) {
	for _, parent := range t.graph.Parents(key) {
		pm, err := t.materializations(parent)
		if err != nil {
			return false, err
		}
		mapped, _ := t.graph.ParentPartitions(key, partition, parent, t.now)
		for _, pp := range mapped {
			if t.isRequested(parent, pp) || pm[pp].StorageID > ev.StorageID {
				return true, nil
			}
		}
	}
	return false, nil
}

// changedDataVersion reports whether ev counts as new data. Without
// RespectMaterializationDataVersions every materialization does.
func (t *tick) changedDataVersion(ev store.Event) (bool, error) {
	if !t.opts.RespectMaterializationDataVersions {
		return true, nil
	}
	prev, ok, err := t.opts.Store.PreviousMaterialization(t.ctx, ev.AssetKey, ev.PartitionKey, ev.StorageID)
	if err != nil {
		return false, &EvaluationError{Code: ErrCodeStore, Asset: ev.AssetKey, Message: "read previous materialization", Err: err}
	}
	return !ok || prev.DataVersion != ev.DataVersion, nil
}
