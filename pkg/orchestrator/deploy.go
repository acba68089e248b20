package orchestrator

import (
	"context"
	"fmt"

	"github.com/cyroid/cyroid/pkg/cyerr"
	"github.com/cyroid/cyroid/pkg/runtime"
	"github.com/cyroid/cyroid/pkg/synth"
	"github.com/cyroid/cyroid/pkg/types"
	"golang.org/x/sync/errgroup"
)

// Deploy runs the deploy plan for rangeID: provision every network,
// then create-or-start every VM, then mark the range Running. It is
// idempotent — re-running after a partial failure resumes from the
// first unprovisioned network or VM, since already-provisioned entities
// are skipped by their runtime-handle check.
func (o *Orchestrator) Deploy(ctx context.Context, rangeID string) error {
	return o.withRangeLock(rangeID, func() error {
		rng, err := o.repo.GetRange(rangeID)
		if err != nil {
			return err
		}
		if !canDeploy(rng.Status) {
			return cyerr.Validation("range %s cannot deploy from status %s", rangeID, rng.Status)
		}

		rng.Status = types.RangeStatusDeploying
		if err := o.repo.UpdateRange(rng); err != nil {
			return err
		}

		if err := o.deployNetworks(ctx, rng); err != nil {
			return o.failRange(rng, err)
		}
		if err := o.deployVMs(ctx, rng); err != nil {
			return o.failRange(rng, err)
		}

		rng.Status = types.RangeStatusRunning
		if err := o.repo.UpdateRange(rng); err != nil {
			return err
		}
		return o.journal.Record(rng.ID, "", types.EventRangeDeployed, "range deployed", nil)
	})
}

// failRange marks rng Error, journals the cause, and returns it
// unwrapped so the caller sees the original failure.
func (o *Orchestrator) failRange(rng *types.Range, cause error) error {
	rng.Status = types.RangeStatusError
	if uerr := o.repo.UpdateRange(rng); uerr != nil {
		o.logger.Error().Err(uerr).Str("range_id", rng.ID).Msg("failed to mark range Error")
	}
	_ = o.journal.Record(rng.ID, "", types.EventVMError, fmt.Sprintf("deploy failed: %v", cause), nil)
	return cause
}

// deployNetworks provisions every network in rng that has no runtime
// handle yet. Steps within the plan execute sequentially per spec; the
// per-network fan-out is still safe to parallelize since each network
// is independent, so this uses errgroup the way the pack's own
// dependency on golang.org/x/sync allows.
func (o *Orchestrator) deployNetworks(ctx context.Context, rng *types.Range) error {
	networks, err := o.repo.ListNetworksByRange(rng.ID)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range networks {
		n := n
		if n.RuntimeHandle != "" {
			continue
		}
		if err := o.warnOnCIDRCollision(n); err != nil {
			return err
		}
		g.Go(func() error {
			handle, err := o.rt.CreateNetwork(gctx, runtime.NetworkSpec{
				Name:     n.Name,
				Subnet:   n.CIDR,
				Gateway:  n.Gateway,
				Internal: n.Isolation == types.IsolationComplete || n.Isolation == types.IsolationControlled,
				Labels:   map[string]string{"range_id": rng.ID, "network_id": n.ID},
			})
			if err != nil {
				return fmt.Errorf("create network %s: %w", n.Name, err)
			}
			n.RuntimeHandle = handle
			return o.repo.UpdateNetwork(n)
		})
	}
	return g.Wait()
}

// warnOnCIDRCollision logs (but never fails deploy on) another range's
// live network already holding n's CIDR. Range cloning copies CIDRs
// unchanged rather than renumbering them, so this is an expected,
// non-fatal occurrence, not a validation error.
func (o *Orchestrator) warnOnCIDRCollision(n *types.Network) error {
	all, err := o.repo.ListNetworks()
	if err != nil {
		return err
	}
	for _, other := range all {
		if other.ID == n.ID || other.RangeID == n.RangeID {
			continue
		}
		if other.RuntimeHandle != "" && other.CIDR == n.CIDR {
			o.logger.Warn().
				Str("network_id", n.ID).
				Str("range_id", n.RangeID).
				Str("conflicting_network_id", other.ID).
				Str("conflicting_range_id", other.RangeID).
				Str("cidr", n.CIDR).
				Msg("network CIDR collides with another range's live network")
		}
	}
	return nil
}

// deployVMs creates-or-starts every VM in rng. Per spec, steps within a
// single deploy execute sequentially; this loop is intentionally not
// parallelized, unlike deployNetworks, since post-install script
// execution and golden-image seeding make VM creation far more
// I/O-sensitive to ordering mistakes than network setup.
func (o *Orchestrator) deployVMs(ctx context.Context, rng *types.Range) error {
	vms, err := o.repo.ListVMsByRange(rng.ID)
	if err != nil {
		return err
	}

	for _, vm := range vms {
		if err := o.deployOneVM(ctx, rng, vm); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) deployOneVM(ctx context.Context, rng *types.Range, vm *types.VM) error {
	if vm.RuntimeHandle != "" {
		if err := o.rt.Start(ctx, vm.RuntimeHandle); err != nil {
			return fmt.Errorf("start vm %s: %w", vm.ID, err)
		}
		vm.Status = types.VMStatusRunning
		if err := o.repo.UpdateVM(vm); err != nil {
			return err
		}
		return o.journal.Record(rng.ID, vm.ID, types.EventVMStarted, "vm started", nil)
	}

	tmpl, err := o.repo.GetVMTemplate(vm.TemplateID)
	if err != nil {
		return fmt.Errorf("load template for vm %s: %w", vm.ID, err)
	}
	network, err := o.repo.GetNetwork(vm.NetworkID)
	if err != nil {
		return fmt.Errorf("load network for vm %s: %w", vm.ID, err)
	}

	storageDir, err := o.storage.Create(rng.ID, vm.ID)
	if err != nil {
		return fmt.Errorf("create storage for vm %s: %w", vm.ID, err)
	}

	vm.Status = types.VMStatusCreating
	if err := o.repo.UpdateVM(vm); err != nil {
		return err
	}

	spec, err := o.synth.Synthesize(synth.Input{
		VM: vm, Template: tmpl, Network: network,
		RoutingNetwork: o.routingNetwork, StorageDir: storageDir,
		CachedISOPath: tmpl.CachedISOPath,
	})
	if err != nil {
		vm.Status = types.VMStatusError
		_ = o.repo.UpdateVM(vm)
		return fmt.Errorf("synthesize vm %s: %w", vm.ID, err)
	}

	handle, err := o.rt.CreateContainer(ctx, spec)
	if err != nil {
		vm.Status = types.VMStatusError
		_ = o.repo.UpdateVM(vm)
		return fmt.Errorf("create container for vm %s: %w", vm.ID, err)
	}
	vm.RuntimeHandle = handle
	if err := o.repo.UpdateVM(vm); err != nil {
		return err
	}

	if err := o.rt.Start(ctx, handle); err != nil {
		vm.Status = types.VMStatusError
		_ = o.repo.UpdateVM(vm)
		return fmt.Errorf("start vm %s: %w", vm.ID, err)
	}

	if tmpl.PostInstallScript != "" && tmpl.VMType == types.VMTypeContainer {
		exitCode, output, execErr := o.rt.Exec(ctx, handle, []string{"sh", "-c", tmpl.PostInstallScript}, runtime.ExecOptions{})
		if execErr != nil || exitCode != 0 {
			_ = o.journal.Record(rng.ID, vm.ID, types.EventVMError,
				fmt.Sprintf("post-install script exited %d: %s", exitCode, output), nil)
		}
	}

	vm.Status = types.VMStatusRunning
	if err := o.repo.UpdateVM(vm); err != nil {
		return err
	}
	return o.journal.Record(rng.ID, vm.ID, types.EventVMStarted, "vm started", nil)
}

// Teardown removes every VM's container and every network, then returns
// rng to Draft. It forbids teardown while Deploying and otherwise
// proceeds from any status. Every removal error from the runtime, not
// only not-found, is logged and ignored, and the handle is cleared
// either way.
func (o *Orchestrator) Teardown(ctx context.Context, rangeID string) error {
	return o.withRangeLock(rangeID, func() error {
		rng, err := o.repo.GetRange(rangeID)
		if err != nil {
			return err
		}
		if !canTeardown(rng.Status) {
			return cyerr.Validation("range %s cannot tear down while %s", rangeID, rng.Status)
		}

		vms, err := o.repo.ListVMsByRange(rangeID)
		if err != nil {
			return err
		}
		for _, vm := range vms {
			if vm.RuntimeHandle != "" {
				if err := o.rt.Remove(ctx, vm.RuntimeHandle, true); err != nil {
					o.logger.Warn().Err(err).Str("vm_id", vm.ID).Msg("failed to remove vm container during teardown")
				}
			}
			vm.RuntimeHandle = ""
			vm.Status = types.VMStatusPending
			if err := o.repo.UpdateVM(vm); err != nil {
				return err
			}
		}

		networks, err := o.repo.ListNetworksByRange(rangeID)
		if err != nil {
			return err
		}
		for _, n := range networks {
			if n.RuntimeHandle != "" {
				if err := o.rt.DeleteNetwork(ctx, n.RuntimeHandle); err != nil {
					o.logger.Warn().Err(err).Str("network_id", n.ID).Msg("failed to remove network during teardown")
				}
			}
			n.RuntimeHandle = ""
			if err := o.repo.UpdateNetwork(n); err != nil {
				return err
			}
		}

		rng.Status = types.RangeStatusDraft
		if err := o.repo.UpdateRange(rng); err != nil {
			return err
		}
		return o.journal.Record(rng.ID, "", types.EventRangeTeardown, "range torn down", nil)
	})
}
