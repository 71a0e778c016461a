// Package daemon is the tick evaluator: one call to Evaluate decides which
// assets to request, given the asset graph, the materialization history in
// the store, and the cursor returned by the previous tick.
//
// # Evaluation order
//
// Assets are walked in topological order so that by the time a child is
// evaluated, every parent's request decision for this tick is final. For
// each asset with a policy:
//
//  1. Materialize rules pick candidate partitions.
//  2. Skip rules remove candidates whose parents are not ready.
//  3. The discard rule drops candidates beyond the policy's limit, oldest
//     partitions first.
//
// Only rules that fired are recorded. Records of the same rule with equal
// evaluation data are merged into one entry with a partition subset.
//
// # Cursor
//
// The Cursor is opaque to callers. It carries the highest event storage id
// seen so far (so parent updates are detected by storage id, not by time)
// and the asset partitions already requested, so a missing partition is
// requested at most once.
package daemon
