package msel

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cyroid/cyroid/pkg/cyerr"
	"github.com/cyroid/cyroid/pkg/events"
	"github.com/cyroid/cyroid/pkg/repository"
	"github.com/cyroid/cyroid/pkg/runtime"
	"github.com/cyroid/cyroid/pkg/types"
)

// blobStore is the subset of pkg/artifact's Store the engine needs,
// kept as a local interface so tests can substitute an in-memory fake
// rather than dial a real object store.
type blobStore interface {
	Get(ctx context.Context, digest string) (io.ReadCloser, error)
}

// Engine executes Injects against a range's VMs: run_command dispatches
// through the runtime adapter's exec, place_file fetches the artifact's
// bytes from the blob store and copies them in.
type Engine struct {
	repo      repository.Repository
	rt        runtime.Adapter
	artifacts blobStore
	journal   *events.Journal
}

// NewEngine creates an execution Engine. artifacts is typically a
// *artifact.Store.
func NewEngine(repo repository.Repository, rt runtime.Adapter, artifacts blobStore, journal *events.Journal) *Engine {
	return &Engine{repo: repo, rt: rt, artifacts: artifacts, journal: journal}
}

// Execute runs every action of injectID in order against the owning
// range's VMs. An action failure does not abort later actions; it is
// recorded in the execution log and the inject's terminal status is
// Failed if any action failed, Completed otherwise.
func (e *Engine) Execute(ctx context.Context, injectID string) error {
	inject, err := e.repo.GetInject(injectID)
	if err != nil {
		return err
	}
	if inject.Status != types.InjectStatusPending {
		return cyerr.Validation("inject %s is %s, not pending", injectID, inject.Status)
	}

	msel, err := e.repo.GetMSEL(inject.MSELID)
	if err != nil {
		return err
	}

	hostToVM, err := e.hostnameIndex(msel.RangeID)
	if err != nil {
		return err
	}

	inject.Status = types.InjectStatusExecuting
	inject.ExecutedAt = time.Now()
	if err := e.repo.UpdateInject(inject); err != nil {
		return err
	}

	var log []string
	allSucceeded := true
	for _, action := range inject.Actions {
		result := e.runAction(ctx, hostToVM, action)
		if !result.Success {
			allSucceeded = false
		}
		log = append(log, formatResult(result))
	}

	if allSucceeded {
		inject.Status = types.InjectStatusCompleted
	} else {
		inject.Status = types.InjectStatusFailed
	}
	inject.ExecutionLog = strings.Join(log, "\n")
	if err := e.repo.UpdateInject(inject); err != nil {
		return err
	}

	kind := types.EventInjectExecuted
	if !allSucceeded {
		kind = types.EventInjectFailed
	}
	return e.journal.Record(msel.RangeID, "", kind, fmt.Sprintf("inject %q %s", inject.Title, inject.Status), nil)
}

func (e *Engine) hostnameIndex(rangeID string) (map[string]*types.VM, error) {
	vms, err := e.repo.ListVMsByRange(rangeID)
	if err != nil {
		return nil, err
	}
	index := make(map[string]*types.VM, len(vms))
	for _, vm := range vms {
		index[vm.Hostname] = vm
	}
	return index, nil
}

func (e *Engine) runAction(ctx context.Context, hostToVM map[string]*types.VM, action types.Action) types.ActionResult {
	result := types.ActionResult{Action: action}

	vm, ok := hostToVM[action.TargetHostname]
	if !ok {
		result.Error = fmt.Sprintf("unknown hostname %q", action.TargetHostname)
		return result
	}
	if vm.RuntimeHandle == "" || vm.Status != types.VMStatusRunning {
		result.Error = fmt.Sprintf("vm %q is not running", action.TargetHostname)
		return result
	}

	switch action.Kind {
	case types.ActionKindRunCommand:
		exitCode, output, err := e.rt.Exec(ctx, vm.RuntimeHandle, []string{"sh", "-c", action.Command}, runtime.ExecOptions{})
		result.ExitCode = exitCode
		result.Output = output
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.Success = exitCode == 0
		if !result.Success {
			result.Error = fmt.Sprintf("exit code %d", exitCode)
		}
		return result

	case types.ActionKindPlaceFile:
		if err := e.placeFile(ctx, vm, action); err != nil {
			result.Error = err.Error()
			return result
		}
		result.Success = true
		if e.journal != nil {
			_ = e.journal.Record(vm.RangeID, vm.ID, types.EventArtifactPlaced,
				fmt.Sprintf("placed %s at %s", action.Filename, action.TargetPath), nil)
		}
		return result

	default:
		result.Error = fmt.Sprintf("unrecognized action kind %q", action.Kind)
		return result
	}
}

func (e *Engine) placeFile(ctx context.Context, vm *types.VM, action types.Action) error {
	artifacts, err := e.repo.ListArtifacts()
	if err != nil {
		return err
	}
	var art *types.Artifact
	for _, a := range artifacts {
		if a.Name == action.Filename {
			art = a
			break
		}
	}
	if art == nil {
		return cyerr.NotFound("artifact %q", action.Filename)
	}

	obj, err := e.artifacts.Get(ctx, art.SHA256)
	if err != nil {
		return err
	}
	defer obj.Close()

	tmp, err := os.CreateTemp("", "cyroid-placefile-*")
	if err != nil {
		return fmt.Errorf("stage artifact %q: %w", action.Filename, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, obj); err != nil {
		tmp.Close()
		return fmt.Errorf("stage artifact %q: %w", action.Filename, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return e.rt.CopyTo(ctx, vm.RuntimeHandle, tmp.Name(), action.TargetPath)
}

func formatResult(r types.ActionResult) string {
	switch r.Action.Kind {
	case types.ActionKindRunCommand:
		if r.Success {
			return fmt.Sprintf("run_command on %s: exit %d", r.Action.TargetHostname, r.ExitCode)
		}
		return fmt.Sprintf("run_command on %s: failed: %s", r.Action.TargetHostname, r.Error)
	case types.ActionKindPlaceFile:
		if r.Success {
			return fmt.Sprintf("place_file %s on %s: placed", r.Action.Filename, r.Action.TargetHostname)
		}
		return fmt.Sprintf("place_file %s on %s: failed: %s", r.Action.Filename, r.Action.TargetHostname, r.Error)
	default:
		return fmt.Sprintf("unknown action on %s: %s", r.Action.TargetHostname, r.Error)
	}
}
