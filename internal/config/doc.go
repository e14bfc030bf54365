// Package config loads the starter configuration.
//
// Configuration lives in a single config.yaml inside a configuration
// directory, by default ~/.config/starter. Missing fields keep their defaults:
//
//	bus:
//	  buffer_size: 256
//	  wait_timeout: 30s
//	logging:
//	  level: info
//	runner:
//	  parallel: 1
//	  fail_fast: false
//	  scenario_timeout: 10m
//	  kill_grace_period: 10s
//	  report_path: ""
//
// LoadConfig validates the merged result and reports every invalid field at
// once as a ConfigurationErrorCollection.
package config
