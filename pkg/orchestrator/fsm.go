package orchestrator

import "github.com/cyroid/cyroid/pkg/types"

// rangeTransitions is the legality table for the range state machine:
// every key lists the states a range in that state may move to. It is
// consulted by canTransition for validation and by the test suite to
// enumerate every legal and illegal pair exhaustively.
var rangeTransitions = map[types.RangeStatus][]types.RangeStatus{
	types.RangeStatusDraft:     {types.RangeStatusDeploying},
	types.RangeStatusDeploying: {types.RangeStatusRunning, types.RangeStatusError},
	types.RangeStatusRunning:   {types.RangeStatusStopped, types.RangeStatusError},
	types.RangeStatusStopped:   {types.RangeStatusRunning, types.RangeStatusDraft, types.RangeStatusError},
	types.RangeStatusError:     {types.RangeStatusDeploying, types.RangeStatusDraft},
	types.RangeStatusArchived:  {},
}

// vmTransitions is the legality table for the VM state machine:
// Pending → Creating → Running → Stopped → (Creating | Removed), with
// Error reachable from Creating or Running and removable from any
// non-terminal state (teardown force-removes regardless of status).
var vmTransitions = map[types.VMStatus][]types.VMStatus{
	types.VMStatusPending:  {types.VMStatusCreating, vmStatusRemoved},
	types.VMStatusCreating: {types.VMStatusRunning, types.VMStatusError, vmStatusRemoved},
	types.VMStatusRunning:  {types.VMStatusStopped, types.VMStatusError, vmStatusRemoved},
	types.VMStatusStopped:  {types.VMStatusCreating, vmStatusRemoved},
	types.VMStatusError:    {types.VMStatusCreating, vmStatusRemoved},
}

// vmStatusRemoved is a terminal pseudo-status: a removed VM's row is
// deleted from the repository rather than updated, so it never appears
// in types.VMStatus itself. It exists only for legality-table purposes.
const vmStatusRemoved types.VMStatus = "removed"

// canTransition reports whether to is a legal next state for a value
// currently in from, per table.
func canTransition[S comparable](from, to S, table map[S][]S) bool {
	for _, s := range table[from] {
		if s == to {
			return true
		}
	}
	return false
}

// canDeploy reports whether a deploy plan may start from status.
func canDeploy(status types.RangeStatus) bool {
	switch status {
	case types.RangeStatusDraft, types.RangeStatusStopped, types.RangeStatusError:
		return true
	default:
		return false
	}
}

// canStop reports whether a range-level stop is legal from status.
func canStop(status types.RangeStatus) bool {
	return status == types.RangeStatusRunning
}

// canTeardown reports whether teardown is legal from status: any state
// except Deploying.
func canTeardown(status types.RangeStatus) bool {
	return status != types.RangeStatusDeploying
}

// canStart reports whether an explicit range-level start is legal from
// status: only Stopped.
func canStart(status types.RangeStatus) bool {
	return status == types.RangeStatusStopped
}
