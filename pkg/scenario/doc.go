// Package scenario produces event batches from a YAML script, standing in
// for a live connection in demos, the command line tool and tests.
//
// A scenario lists batches; each batch lists the primary events recognised
// while processing one unit of input. Nested events are requested with
// end_stream and priority, and settings are given as the values the peer
// announced, from which the changed settings are derived:
//
//	name: simple-get
//	local_client: true
//	batches:
//	  - events:
//	      - type: REMOTE_SETTINGS_CHANGED
//	        settings: {MAX_CONCURRENT_STREAMS: 100, INITIAL_WINDOW_SIZE: 1048576}
//	  - events:
//	      - type: RESPONSE_RECEIVED
//	        stream: 1
//	        headers:
//	          - {name: ":status", value: "200"}
//	      - type: DATA_RECEIVED
//	        stream: 1
//	        data: hello
//	        padding: 4
//	        end_stream: true
//	  - events:
//	      - type: CONNECTION_TERMINATED
//	        error_code: NO_ERROR
//	        last_stream: 1
package scenario
