// Package harness runs IDE test scenarios on top of the lifecycle event bus.
//
// A scenario is a YAML file naming the IDE command, its arguments and the
// expected exit code:
//
//	name: indexing
//	command: ./bin/idea.sh
//	args:
//	  - "--run-id={{ .RunID }}"
//	  - "--log-dir={{ env \"HOME\" }}/logs/{{ .Scenario }}"
//	timeout: 5m
//	expect_exit_code: 0
//	tags: [smoke]
//
// Arguments and environment values are text/template strings with the sprig
// functions available.
//
// For every scenario the TestRunner clears the bus (Hooks.BeforeEach),
// registers a Timeline and any SubscriberSetup, posts
// TestContextInitializedEvent, runs the IDE through ide.Runner, posts
// TestFinishedEvent and clears the bus again (Hooks.AfterEach). Subscriber
// keys that did not finish a lifecycle notification in time end up in the
// scenario result and in every report.
package harness
