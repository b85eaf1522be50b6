// Package harness runs YAML scenarios against a real worker and the
// simulated modem, and compares the resulting trace with golden files.
//
// A scenario scripts the modem, then drives the bridge step by step:
//
//	name: forbidden_plmns_timeout
//	description: A bounded wait gives up; the late answer still lands.
//	modem:
//	  responses:
//	    GET_FORBIDDEN_PLMNS:
//	      - hang: true
//	steps:
//	  - call: GET_FORBIDDEN_PLMNS
//	    args: {app_type: 2}
//	    timeout: 2000ms
//	    advance: 2000ms
//	  - release: GET_FORBIDDEN_PLMNS
//	    reply:
//	      value: ["310260"]
//
// Time is virtual. Every scenario runs on a fake clock starting at
// testutil.Epoch, and a call step with advance moves the clock only once
// the call is parked on its timer. After each step the harness settles the
// worker so callbacks and diagnostics land in the trace in a stable order.
//
// Trace lines look like:
//
//	step 1: call GET_FORBIDDEN_PLMNS default timeout=2s -> error: result indeterminate: ...
//	diag: bounded_timeout GET_FORBIDDEN_PLMNS at=+2s detail=2s
//	step 2: release GET_FORBIDDEN_PLMNS -> 1
//	diag: late_completion GET_FORBIDDEN_PLMNS at=+2s
//	issued: GET_FORBIDDEN_PLMNS phone0
package harness
