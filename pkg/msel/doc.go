// Package msel parses and executes a range's Master Scenario Events
// List: a free-form text timeline of timed Injects, each a sequence of
// run_command/place_file Actions dispatched against the range's VMs.
package msel
