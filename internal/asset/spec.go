package asset

import (
	"slices"

	"github.com/CiderSlime/dagster/internal/policy"
)

// DefaultGroup is the group name of specs that never set one.
const DefaultGroup = "default"

// Spec describes one asset and its executable stand-in.
type Spec struct {
	Key         Key
	Deps        []Key
	GroupName   string
	CodeVersion string

	// Policy is nil when the asset is never auto-materialized.
	Policy *policy.Policy

	// Partitions is nil for unpartitioned assets.
	Partitions PartitionsDefinition

	// Failing makes the stand-in raise whenever it runs.
	Failing bool
}

// NewSpec returns an unpartitioned spec without a policy.
func NewSpec(key Key, deps ...Key) Spec {
	return Spec{Key: key, Deps: SortKeys(deps), GroupName: DefaultGroup}
}

// With returns a copy of s with the fields set in c replaced.
func (s Spec) With(c SpecChanges) Spec {
	if c.set == 0 {
		return s
	}
	out := s
	if c.has(changeDeps) {
		out.Deps = SortKeys(c.deps)
	}
	if c.has(changeGroup) {
		out.GroupName = c.groupName
	}
	if c.has(changeCodeVersion) {
		out.CodeVersion = c.codeVersion
	}
	if c.has(changePolicy) {
		out.Policy = c.policy
	}
	if c.has(changePartitions) {
		out.Partitions = c.partitions
	}
	if c.has(changeFailing) {
		out.Failing = c.failing
	}
	return out
}

// IsPartitioned reports whether the spec has a partitions definition.
func (s Spec) IsPartitioned() bool { return s.Partitions != nil }

type changeSet uint8

const (
	changeDeps changeSet = 1 << iota
	changeGroup
	changeCodeVersion
	changePolicy
	changePartitions
	changeFailing
)

var changeNames = []struct {
	bit  changeSet
	name string
}{
	{changeDeps, "deps"},
	{changeGroup, "group_name"},
	{changeCodeVersion, "code_version"},
	{changePolicy, "policy"},
	{changePartitions, "partitions"},
	{changeFailing, "failing"},
}

// SpecChanges lists the spec fields to replace. Only fields set through
// one of its methods are touched by Spec.With.
type SpecChanges struct {
	set         changeSet
	deps        []Key
	groupName   string
	codeVersion string
	policy      *policy.Policy
	partitions  PartitionsDefinition
	failing     bool
}

// Changes starts an empty change set.
func Changes() SpecChanges { return SpecChanges{} }

func (c SpecChanges) has(bit changeSet) bool { return c.set&bit != 0 }

func (c SpecChanges) Deps(keys ...Key) SpecChanges {
	c.set |= changeDeps
	c.deps = slices.Clone(keys)
	return c
}

func (c SpecChanges) Group(name string) SpecChanges {
	c.set |= changeGroup
	c.groupName = name
	return c
}

func (c SpecChanges) CodeVersion(v string) SpecChanges {
	c.set |= changeCodeVersion
	c.codeVersion = v
	return c
}

func (c SpecChanges) Policy(p policy.Policy) SpecChanges {
	c.set |= changePolicy
	c.policy = p.Ptr()
	return c
}

// NoPolicy clears the policy.
func (c SpecChanges) NoPolicy() SpecChanges {
	c.set |= changePolicy
	c.policy = nil
	return c
}

// Partitions sets the partitions definition; nil makes the asset unpartitioned.
func (c SpecChanges) Partitions(def PartitionsDefinition) SpecChanges {
	c.set |= changePartitions
	c.partitions = def
	return c
}

func (c SpecChanges) Failing(failing bool) SpecChanges {
	c.set |= changeFailing
	c.failing = failing
	return c
}

// IsEmpty reports whether no field is set.
func (c SpecChanges) IsEmpty() bool { return c.set == 0 }

// Fields names the fields that will be replaced, for logs.
func (c SpecChanges) Fields() []string {
	var out []string
	for _, cn := range changeNames {
		if c.has(cn.bit) {
			out = append(out, cn.name)
		}
	}
	return out
}
