// Package harness provides deterministic scenario testing for the
// timer engine.
//
// A scenario scripts a sequence of engine commands against a frozen
// clock, captures every emitted event into a trace, and checks the
// final engine state against an expect block. The same scenario always
// produces the same trace byte for byte, which golden comparison
// depends on.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: scenario_name
//	description: "What this scenario demonstrates"
//	start: "2025-06-02T09:00:00Z"
//	catalog:
//	  session:
//	    sprint: { durationSeconds: 180 }
//	  flow:
//	    cycle:
//	      name: "Work Cycle"
//	      autoAdvance: false
//	      steps: [sprint, shortBreak]
//	steps:
//	  - start_flow: cycle
//	  - tick: 180
//	  - advance: true
//	  - tick: 300
//	expect:
//	  status: idle
//	  streak: 1
//	  records: 2
//
// The catalog block uses the same field names as authored CUE
// catalogs, so a catalog can be pasted between the two formats. It is
// merged over the built-in catalog; a scenario with no catalog block
// runs against the built-ins alone.
//
// # Steps
//
// Each step carries exactly one command:
//
//   - start_session: <type>  begin a standalone session
//   - start_flow: <id>       begin a flow run
//   - tick: <n>              advance the clock n seconds, one countdown
//     beat per second
//   - pause: true            pause the running session
//   - resume: true           resume the paused session
//   - advance: true          start the next step of a waiting flow
//   - abandon: true          abandon the in-progress session or flow
//   - advance_time: <dur>    move the clock without countdown beats
//   - record: {...}          append an externally built history record
//
// A step may also carry want_error naming the error kind the command
// must fail with (unknown_session_type, flow_not_found,
// invalid_transition, invalid_record). A command that errors without
// want_error, or succeeds despite it, fails the scenario.
//
// # Deterministic Execution
//
// Every run gets a fresh in-memory store, a testutil.ManualClock
// frozen at the scenario's start instant, and a
// testutil.SequenceIDGenerator, so session IDs, timestamps, and event
// order never vary between runs.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/cycle.yaml")
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
