// Package harness drives auto-materialize scenarios: a chain of immutable
// ScenarioState values that declare assets, simulate runs, evaluate ticks
// against a private backing instance, and assert on what the scheduler
// decided.
//
// # Writing scenarios in Go
//
//	harness.Scenario{
//	    ID:      "eager_chain",
//	    Initial: harness.NewState(specs...).WithCurrentTime("2023-01-01T00:00:00"),
//	    Execute: func(s harness.ScenarioState) harness.ScenarioState {
//	        return s.EvaluateTick().
//	            AssertRequestedRuns(harness.Request("A")).
//	            WithRequestedRuns().
//	            EvaluateTick().
//	            AssertRequestedRuns(harness.Request("B"))
//	    },
//	}.Evaluate(t)
//
// Assertions report through the Reporter attached by the driver: a
// testing.TB under Evaluate, an aborting reporter under Run. Either way the
// first failed assertion ends the scenario.
//
// # Scenario scripts
//
// The same operations can be written as YAML and loaded with LoadScript:
//
//	id: eager_chain
//	current_time: "2023-01-01T00:00:00"
//	assets:
//	  - {key: A, policy: eager}
//	  - {key: B, deps: [A], policy: eager}
//	steps:
//	  - evaluate_tick: {}
//	  - assert_requested_runs: [{assets: [A]}]
//	  - requested_runs: {}
//	  - evaluate_tick: {}
//	  - assert_evaluation:
//	      asset: B
//	      rules:
//	        - rule: materialize_on_missing
//	        - rule: materialize_on_parent_updated
//	          data: {type: parent_updated, updated: [A]}
//	      num_requested: 1
//
// Scripts are checked against an embedded JSON Schema before decoding.
//
// # Comparison rules
//
// Run requests compare as a multiset of (selection set, partition key)
// pairs. Rule evaluations compare positionally after sorting both sides by
// rule snapshot, then partitions; expected evaluation data is a wildcard
// when unset.
package harness
