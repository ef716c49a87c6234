// Package harness runs reconciliation scenarios for gymlog.
//
// A scenario is a YAML file describing successive batches of provider
// records (passes) and assertions over the resulting event log and stored
// projections:
//
//	name: team_change
//	description: "A captured gym logs exactly one team change"
//	heartbeat: true        # optional, default true
//	policy: always         # optional, always|modified
//	passes:
//	  - records:
//	      - name: Catedral
//	        gym_state: { fort_data: { id: g1, ... } }
//	    expect: { inserted: 1, events: 0 }
//	  - file: batches/second.json   # relative to the scenario file
//	assertions:
//	  - type: event_contains
//	    gym: g1
//	    kind: team_changed
//	    fields: { old_team: 1, new_team: 2 }
//	  - type: event_order
//	    kinds: [points_gained, member_joined]
//	  - type: event_count
//	    kind: no_detected_change
//	    count: 0
//	  - type: final_state
//	    table: gyms
//	    where: { id: g1 }
//	    expect: { team: 2 }
//
// Every scenario runs against a fresh in-memory store with a deterministic
// clock (one second per gym) and sequential pass ids, so the event log is
// byte-for-byte reproducible and can be compared against golden files.
package harness
