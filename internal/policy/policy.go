package policy

import (
	"slices"
	"strings"
)

// Policy is an ordered set of rules plus the discard limit.
// A zero MaxMaterializationsPerMinute means no discard rule.
type Policy struct {
	rules                        []Rule
	maxMaterializationsPerMinute int
}

// New builds a policy from rules, dropping duplicates.
func New(maxPerMinute int, rules ...Rule) Policy {
	return Policy{maxMaterializationsPerMinute: max(maxPerMinute, 0)}.WithRules(rules...)
}

// Eager requests a materialization as soon as an asset is missing or its
// upstream data has changed, and waits for parents that are missing or
// outdated.
func Eager() Policy {
	return New(1,
		MaterializeOnMissing(),
		MaterializeOnParentUpdated(),
		SkipOnParentOutdated(),
		SkipOnParentMissing(),
		SkipOnRequiredButNonexistentParents(),
	)
}

// Lazy carries only skip rules. Nothing requests under it on its own.
func Lazy() Policy {
	return New(1,
		SkipOnParentOutdated(),
		SkipOnParentMissing(),
		SkipOnRequiredButNonexistentParents(),
	)
}

// WithRules returns a copy with rules appended, skipping kinds already present.
func (p Policy) WithRules(rules ...Rule) Policy {
	out := Policy{
		rules:                        slices.Clone(p.rules),
		maxMaterializationsPerMinute: p.maxMaterializationsPerMinute,
	}
	for _, r := range rules {
		if r.kind == KindDiscardOnMaxMaterializationsExceeded {
			out.maxMaterializationsPerMinute = r.limit
			continue
		}
		if !out.Has(r.kind) {
			out.rules = append(out.rules, r)
		}
	}
	return out
}

// WithoutRules returns a copy with the given kinds removed.
func (p Policy) WithoutRules(kinds ...RuleKind) Policy {
	out := Policy{maxMaterializationsPerMinute: p.maxMaterializationsPerMinute}
	for _, r := range p.rules {
		if !slices.Contains(kinds, r.kind) {
			out.rules = append(out.rules, r)
		}
	}
	if slices.Contains(kinds, KindDiscardOnMaxMaterializationsExceeded) {
		out.maxMaterializationsPerMinute = 0
	}
	return out
}

// WithMaxMaterializationsPerMinute returns a copy with the discard limit set.
func (p Policy) WithMaxMaterializationsPerMinute(n int) Policy {
	return Policy{rules: slices.Clone(p.rules), maxMaterializationsPerMinute: max(n, 0)}
}

// Has reports whether a rule of kind is part of the policy.
func (p Policy) Has(kind RuleKind) bool {
	return slices.ContainsFunc(p.rules, func(r Rule) bool { return r.kind == kind })
}

// Rules returns materialize and skip rules in declaration order.
func (p Policy) Rules() []Rule { return slices.Clone(p.rules) }

// MaterializeRules returns the rules with DecisionMaterialize.
func (p Policy) MaterializeRules() []Rule { return p.byDecision(DecisionMaterialize) }

// SkipRules returns the rules with DecisionSkip.
func (p Policy) SkipRules() []Rule { return p.byDecision(DecisionSkip) }

func (p Policy) byDecision(d Decision) []Rule {
	var out []Rule
	for _, r := range p.rules {
		if r.Decision() == d {
			out = append(out, r)
		}
	}
	return out
}

// MaxMaterializationsPerMinute returns the discard limit (0 = unlimited).
func (p Policy) MaxMaterializationsPerMinute() int { return p.maxMaterializationsPerMinute }

// DiscardRule returns the discard rule implied by the limit.
func (p Policy) DiscardRule() (Rule, bool) {
	if p.maxMaterializationsPerMinute <= 0 {
		return Rule{}, false
	}
	return DiscardOnMaxMaterializationsExceeded(p.maxMaterializationsPerMinute), true
}

func (p Policy) String() string {
	names := make([]string, 0, len(p.rules)+1)
	for _, r := range p.rules {
		names = append(names, r.String())
	}
	if d, ok := p.DiscardRule(); ok {
		names = append(names, d.String())
	}
	return "Policy(" + strings.Join(names, ", ") + ")"
}

// Ptr returns a pointer to a copy of p, for asset specs.
func (p Policy) Ptr() *Policy { return &p }
