// Package config loads the YAML configuration shared by the h2events
// command and the inspector.
//
// Example file:
//
//	log_level: debug
//	log_format: json
//	nesting: nested-only
//	output_format: json
//	history_size: 500
//	inspector:
//	  address: 0.0.0.0:8642
//	  path: /events
//	  buffer_size: 128
package config
