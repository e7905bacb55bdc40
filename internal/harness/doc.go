// Package harness provides conformance testing for the reconciliation engine.
//
// The harness compiles a CUE configuration, runs a scenario's import and
// export steps against a fresh store through the real engine, checks store
// invariants after every step, and validates the Pending Exports left behind.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	config: ../config          # CUE directory, relative to the scenario file
//	max_retries: 5             # optional
//	steps:
//	  - import:
//	      - id: alice
//	        connected_system: AD
//	        object_type: user
//	        attributes: {department: Sales}
//	        metaverse:
//	          object_type: person
//	          attributes: {department: Engineering}
//	    expect: {drifted_attributes: 1, exports_created: 1}
//	  - export: {}             # or export: {objects: [alice]}
//	assertions:
//	  - type: pending_export
//	    object: alice
//	    status: Exported
//	    changes:
//	      - attribute: department
//	        value: Engineering
//	        attempts: 1
//
// # Assertion Types
//
//   - pending_export: the object has a Pending Export matching the given fields
//   - no_pending_export: the object has no Pending Export
//   - pending_export_count: the store holds exactly count Pending Exports
//
// # Deterministic Testing
//
// Every run uses testutil.DeterministicClock, testutil.SequentialIDs, a single
// import worker and an in-memory SQLite database, so the snapshot written by
// RunWithGolden is identical across runs. Object names map to stable UUIDs
// (see ObjectID) and snapshots use names rather than ids.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/drift.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
