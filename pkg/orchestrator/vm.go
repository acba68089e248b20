package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/cyroid/cyroid/pkg/cyerr"
	"github.com/cyroid/cyroid/pkg/synth"
	"github.com/cyroid/cyroid/pkg/types"
)

// stopGrace is the container-stop grace period (§5: "container stop
// grace 10 s").
const stopGrace = 10 * time.Second

// StartVM runs the single-VM start plan: create-or-start vmID's
// container, mark it Running, then reconcile the owning range (Stopped
// or Draft auto-transitions to Running).
func (o *Orchestrator) StartVM(ctx context.Context, vmID string) error {
	vm, err := o.repo.GetVM(vmID)
	if err != nil {
		return err
	}

	return o.withRangeLock(vm.RangeID, func() error {
		rng, err := o.repo.GetRange(vm.RangeID)
		if err != nil {
			return err
		}

		if err := o.deployOneVM(ctx, rng, vm); err != nil {
			return err
		}

		return o.reconcileRangeStatus(rng)
	})
}

// StopVM stops vmID's container, marks it Stopped, then reconciles the
// owning range (Running → Stopped when every sibling VM is Stopped).
func (o *Orchestrator) StopVM(ctx context.Context, vmID string) error {
	vm, err := o.repo.GetVM(vmID)
	if err != nil {
		return err
	}

	return o.withRangeLock(vm.RangeID, func() error {
		if vm.RuntimeHandle == "" {
			return cyerr.Validation("vm %s has no running container to stop", vmID)
		}
		if err := o.rt.Stop(ctx, vm.RuntimeHandle, stopGrace); err != nil {
			return fmt.Errorf("stop vm %s: %w", vmID, err)
		}

		vm.Status = types.VMStatusStopped
		if err := o.repo.UpdateVM(vm); err != nil {
			return err
		}
		if err := o.journal.Record(vm.RangeID, vm.ID, types.EventVMStopped, "vm stopped", nil); err != nil {
			return err
		}

		rng, err := o.repo.GetRange(vm.RangeID)
		if err != nil {
			return err
		}
		return o.reconcileRangeStatus(rng)
	})
}

// RestartVM stops then starts vmID's container and marks the VM
// Running. It does not reconcile the owning range's status.
func (o *Orchestrator) RestartVM(ctx context.Context, vmID string) error {
	vm, err := o.repo.GetVM(vmID)
	if err != nil {
		return err
	}
	if vm.RuntimeHandle == "" {
		return cyerr.Validation("vm %s has no container to restart", vmID)
	}

	return o.withRangeLock(vm.RangeID, func() error {
		if err := o.rt.Restart(ctx, vm.RuntimeHandle, stopGrace); err != nil {
			return fmt.Errorf("restart vm %s: %w", vmID, err)
		}
		vm.Status = types.VMStatusRunning
		if err := o.repo.UpdateVM(vm); err != nil {
			return err
		}
		return o.journal.Record(vm.RangeID, vm.ID, types.EventVMRestarted, "vm restarted", nil)
	})
}

// CreateSnapshot commits vmID's running container to an image named
// cyroid-snapshot-{vm_id}-{snapshot_name} (lowercased, spaces → hyphens)
// and records a Snapshot row.
func (o *Orchestrator) CreateSnapshot(ctx context.Context, vmID, name, description string) (*types.Snapshot, error) {
	vm, err := o.repo.GetVM(vmID)
	if err != nil {
		return nil, err
	}
	if vm.RuntimeHandle == "" {
		return nil, cyerr.Validation("vm %s has no running container to snapshot", vmID)
	}

	tag := snapshotImageTag(vmID, name)
	imageID, err := o.rt.Commit(ctx, vm.RuntimeHandle, tag)
	if err != nil {
		return nil, fmt.Errorf("commit snapshot for vm %s: %w", vmID, err)
	}

	snap := &types.Snapshot{
		ID:          newID(),
		VMID:        vmID,
		Name:        name,
		Description: description,
		ImageID:     imageID,
		CreatedAt:   now(),
	}
	if err := o.repo.CreateSnapshot(snap); err != nil {
		return nil, err
	}
	if err := o.journal.Record(vm.RangeID, vmID, types.EventSnapshotCreated, "snapshot "+name+" created", nil); err != nil {
		return nil, err
	}
	return snap, nil
}

// RestoreSnapshot stops and removes vmID's current container (logging
// and ignoring any removal error) and creates a fresh container from
// the snapshot's image, reusing the VM's current network attachment and
// resource caps.
func (o *Orchestrator) RestoreSnapshot(ctx context.Context, snapshotID string) error {
	snap, err := o.repo.GetSnapshot(snapshotID)
	if err != nil {
		return err
	}
	vm, err := o.repo.GetVM(snap.VMID)
	if err != nil {
		return err
	}

	return o.withRangeLock(vm.RangeID, func() error {
		if vm.RuntimeHandle != "" {
			if err := o.rt.Remove(ctx, vm.RuntimeHandle, true); err != nil {
				o.logger.Warn().Err(err).Str("vm_id", vm.ID).Msg("failed to remove vm container before snapshot restore")
			}
			vm.RuntimeHandle = ""
		}

		network, err := o.repo.GetNetwork(vm.NetworkID)
		if err != nil {
			return err
		}
		storageDir := o.storage.Path(vm.RangeID, vm.ID)

		spec, err := o.synth.Synthesize(synth.Input{
			VM: vm, Template: &types.VMTemplate{VMType: types.VMTypeContainer, BaseImage: snap.ImageID},
			Network: network, RoutingNetwork: o.routingNetwork, StorageDir: storageDir,
		})
		if err != nil {
			return fmt.Errorf("synthesize restore for vm %s: %w", vm.ID, err)
		}
		spec.Image = snap.ImageID

		handle, err := o.rt.CreateContainer(ctx, spec)
		if err != nil {
			return fmt.Errorf("create restored container for vm %s: %w", vm.ID, err)
		}
		if err := o.rt.Start(ctx, handle); err != nil {
			return fmt.Errorf("start restored vm %s: %w", vm.ID, err)
		}

		vm.RuntimeHandle = handle
		vm.Status = types.VMStatusRunning
		if err := o.repo.UpdateVM(vm); err != nil {
			return err
		}
		return o.journal.Record(vm.RangeID, vm.ID, types.EventSnapshotRestored, "snapshot "+snap.Name+" restored", nil)
	})
}

