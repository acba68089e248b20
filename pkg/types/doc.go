/*
Package types defines the domain model shared by every other package in
cyroid: ranges, networks, VMs, templates, snapshots, artifacts, the MSEL
scenario timeline, and the event/connection journal.

Types here carry no behavior beyond small invariant helpers (Principal's
CanAct/IsAdmin). Validation, lifecycle transitions, and persistence all
live in the packages that consume these types (pkg/orchestrator,
pkg/authz, pkg/repository) — this package only defines shapes.

Enums are typed string constants, not iota ints, so that persisted and
logged values stay human-readable.
*/
package types
