// Package asset is the asset catalog: keys, specs, partitioning and the
// dependency graph the scheduling engine walks.
//
// Specs are values. Changing a property produces a new Spec through
// Spec.With, and the Graph is rebuilt from the new spec list rather than
// edited. NewGraph validates everything up front (key syntax, duplicates,
// dangling dependencies, cycles) so traversal code never meets a bad edge.
package asset
