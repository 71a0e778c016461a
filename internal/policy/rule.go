// Package policy defines auto-materialize rules and the policies that
// bundle them.
//
// Rules are plain values. The scheduling engine in internal/daemon owns the
// logic that decides whether a rule fires; this package only names rules
// and describes them through RuleSnapshot, the structural identity used in
// evaluation records and expectation matching.
package policy

import (
	"cmp"
	"fmt"
)

// Decision is the outcome class of a rule.
type Decision string

const (
	DecisionMaterialize Decision = "MATERIALIZE"
	DecisionSkip        Decision = "SKIP"
	DecisionDiscard     Decision = "DISCARD"
)

func (d Decision) rank() int {
	switch d {
	case DecisionMaterialize:
		return 0
	case DecisionSkip:
		return 1
	case DecisionDiscard:
		return 2
	default:
		return 3
	}
}

// RuleKind names a rule in scripts and catalogs.
type RuleKind string

const (
	KindMaterializeOnMissing                 RuleKind = "materialize_on_missing"
	KindMaterializeOnParentUpdated           RuleKind = "materialize_on_parent_updated"
	KindSkipOnParentMissing                  RuleKind = "skip_on_parent_missing"
	KindSkipOnParentOutdated                 RuleKind = "skip_on_parent_outdated"
	KindSkipOnNotAllParentsUpdated           RuleKind = "skip_on_not_all_parents_updated"
	KindSkipOnRequiredButNonexistentParents  RuleKind = "skip_on_required_but_nonexistent_parents"
	KindDiscardOnMaxMaterializationsExceeded RuleKind = "discard_on_max_materializations_exceeded"
)

type ruleInfo struct {
	className   string
	description string
	decision    Decision
}

var ruleTable = map[RuleKind]ruleInfo{
	KindMaterializeOnMissing: {
		"MaterializeOnMissingRule", "materialization is missing", DecisionMaterialize,
	},
	KindMaterializeOnParentUpdated: {
		"MaterializeOnParentUpdatedRule", "upstream data has changed since latest materialization", DecisionMaterialize,
	},
	KindSkipOnParentMissing: {
		"SkipOnParentMissingRule", "waiting on upstream data to be present", DecisionSkip,
	},
	KindSkipOnParentOutdated: {
		"SkipOnParentOutdatedRule", "waiting on upstream data to be up to date", DecisionSkip,
	},
	KindSkipOnNotAllParentsUpdated: {
		"SkipOnNotAllParentsUpdatedRule", "waiting on upstream data to be updated", DecisionSkip,
	},
	KindSkipOnRequiredButNonexistentParents: {
		"SkipOnRequiredButNonexistentParentsRule", "required parent partitions do not exist", DecisionSkip,
	},
	KindDiscardOnMaxMaterializationsExceeded: {
		"DiscardOnMaxMaterializationsExceededRule", "", DecisionDiscard,
	},
}

// Rule is a single auto-materialize rule.
type Rule struct {
	kind  RuleKind
	limit int
}

func MaterializeOnMissing() Rule       { return Rule{kind: KindMaterializeOnMissing} }
func MaterializeOnParentUpdated() Rule { return Rule{kind: KindMaterializeOnParentUpdated} }
func SkipOnParentMissing() Rule        { return Rule{kind: KindSkipOnParentMissing} }
func SkipOnParentOutdated() Rule       { return Rule{kind: KindSkipOnParentOutdated} }
func SkipOnNotAllParentsUpdated() Rule { return Rule{kind: KindSkipOnNotAllParentsUpdated} }

func SkipOnRequiredButNonexistentParents() Rule {
	return Rule{kind: KindSkipOnRequiredButNonexistentParents}
}

// DiscardOnMaxMaterializationsExceeded discards requested partitions beyond
// limit per tick, oldest first.
func DiscardOnMaxMaterializationsExceeded(limit int) Rule {
	return Rule{kind: KindDiscardOnMaxMaterializationsExceeded, limit: limit}
}

// ParseRule resolves a rule by its kind name. limit is only read for the
// discard rule.
func ParseRule(name string, limit int) (Rule, error) {
	kind := RuleKind(name)
	if _, ok := ruleTable[kind]; !ok {
		return Rule{}, fmt.Errorf("unknown rule %q", name)
	}
	if kind == KindDiscardOnMaxMaterializationsExceeded {
		if limit < 1 {
			return Rule{}, fmt.Errorf("rule %q: limit must be >= 1, got %d", name, limit)
		}
		return DiscardOnMaxMaterializationsExceeded(limit), nil
	}
	return Rule{kind: kind}, nil
}

// Kind returns the rule's kind.
func (r Rule) Kind() RuleKind { return r.kind }

// Limit returns the discard limit; zero for other rules.
func (r Rule) Limit() int { return r.limit }

// Decision returns the rule's decision class.
func (r Rule) Decision() Decision { return ruleTable[r.kind].decision }

// Description returns the human-readable reason recorded when the rule fires.
func (r Rule) Description() string {
	if r.kind == KindDiscardOnMaxMaterializationsExceeded {
		return fmt.Sprintf("exceeds %d materialization(s) per minute", r.limit)
	}
	return ruleTable[r.kind].description
}

// Snapshot returns the structural identity of the rule.
func (r Rule) Snapshot() RuleSnapshot {
	return RuleSnapshot{
		ClassName:   ruleTable[r.kind].className,
		Description: r.Description(),
		Decision:    r.Decision(),
	}
}

func (r Rule) String() string {
	if r.kind == KindDiscardOnMaxMaterializationsExceeded {
		return fmt.Sprintf("%s(%d)", r.kind, r.limit)
	}
	return string(r.kind)
}

// RuleSnapshot identifies a rule without referencing a rule instance.
type RuleSnapshot struct {
	ClassName   string   `json:"class_name"`
	Description string   `json:"description"`
	Decision    Decision `json:"decision_type"`
}

// Compare orders snapshots by decision, class name, then description.
func (s RuleSnapshot) Compare(other RuleSnapshot) int {
	if c := cmp.Compare(s.Decision.rank(), other.Decision.rank()); c != 0 {
		return c
	}
	if c := cmp.Compare(s.ClassName, other.ClassName); c != 0 {
		return c
	}
	return cmp.Compare(s.Description, other.Description)
}

func (s RuleSnapshot) String() string {
	return fmt.Sprintf("%s[%s](%s)", s.ClassName, s.Decision, s.Description)
}

// CanonicalValue implements canon.Valuer.
func (s RuleSnapshot) CanonicalValue() any {
	return map[string]any{
		"class_name":    s.ClassName,
		"description":   s.Description,
		"decision_type": string(s.Decision),
	}
}
