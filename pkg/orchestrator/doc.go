/*
Package orchestrator implements the range/VM/network lifecycle: the
range and VM state machines of fsm.go (there is no network table; a
network counts as provisioned when it has a runtime handle), and the
plans built on top of them
(deploy, teardown, single-VM start/stop, snapshot create/restore,
clone, blueprint export/import).

Every entry point that mutates a range's or its VMs' status takes that
range's lock for its whole duration, so two requests against the same
range never interleave their steps; different ranges proceed fully in
parallel.

	orch := orchestrator.New(repo, adapter, synthesizer, journal, storage, routingNetworkHandle)
	if err := orch.Deploy(ctx, rangeID); err != nil {
		// range is now Error; the failure is already journaled
	}
*/
package orchestrator
