// Package orchestrator composes the container-runtime adapter, the
// synthesizer and the repository into range/VM/network lifecycle plans.
// It is the only package that mutates Range, Network, or VM status —
// every other component observes those through the repository.
package orchestrator

import (
	"sync"

	"github.com/cyroid/cyroid/pkg/events"
	"github.com/cyroid/cyroid/pkg/log"
	"github.com/cyroid/cyroid/pkg/repository"
	"github.com/cyroid/cyroid/pkg/runtime"
	"github.com/cyroid/cyroid/pkg/synth"
	"github.com/cyroid/cyroid/pkg/types"
	"github.com/cyroid/cyroid/pkg/volume"
	"github.com/rs/zerolog"
)

// Orchestrator holds every collaborator a lifecycle plan needs and
// serializes all state transitions on one range behind that range's
// lock, so two concurrent requests against the same range never
// interleave their plan steps.
type Orchestrator struct {
	repo    repository.Repository
	rt      runtime.Adapter
	synth   *synth.Synthesizer
	journal *events.Journal
	storage *volume.Store
	logger  zerolog.Logger

	routingNetwork string // shared routing network's runtime handle; "" if unconfigured

	mu         sync.Mutex
	rangeLocks map[string]*sync.Mutex
}

// New creates an Orchestrator. routingNetwork is the runtime handle of
// the shared routing network every container attaches to before its
// range network; pass "" when no reverse-proxy-stable-IP scheme is in
// use.
func New(repo repository.Repository, rt runtime.Adapter, synthesizer *synth.Synthesizer, journal *events.Journal, storage *volume.Store, routingNetwork string) *Orchestrator {
	return &Orchestrator{
		repo:           repo,
		rt:             rt,
		synth:          synthesizer,
		journal:        journal,
		storage:        storage,
		logger:         log.WithComponent("orchestrator"),
		routingNetwork: routingNetwork,
		rangeLocks:     make(map[string]*sync.Mutex),
	}
}

// lockRange returns the mutex serializing every plan that touches
// rangeID, creating it on first use.
func (o *Orchestrator) lockRange(rangeID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	l, ok := o.rangeLocks[rangeID]
	if !ok {
		l = &sync.Mutex{}
		o.rangeLocks[rangeID] = l
	}
	return l
}

// withRangeLock runs fn with rangeID's lock held.
func (o *Orchestrator) withRangeLock(rangeID string, fn func() error) error {
	l := o.lockRange(rangeID)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// reconcileRangeStatus applies the auto-transition rules from the
// deploy-plan spec: Stopped or Draft → Running when any VM transitions
// to Running (the single-VM-start rule generalizes the published
// Stopped→Running auto-transition to cover Draft too), and Running →
// Stopped when every VM in the range is Stopped. It is idempotent and
// safe to call after any single VM status change.
func (o *Orchestrator) reconcileRangeStatus(rng *types.Range) error {
	vms, err := o.repo.ListVMsByRange(rng.ID)
	if err != nil {
		return err
	}

	anyRunning := false
	allStopped := len(vms) > 0
	for _, vm := range vms {
		if vm.Status == types.VMStatusRunning {
			anyRunning = true
		}
		if vm.Status != types.VMStatusStopped {
			allStopped = false
		}
	}

	switch {
	case anyRunning && (rng.Status == types.RangeStatusStopped || rng.Status == types.RangeStatusDraft):
		rng.Status = types.RangeStatusRunning
		return o.repo.UpdateRange(rng)
	case allStopped && rng.Status == types.RangeStatusRunning:
		rng.Status = types.RangeStatusStopped
		return o.repo.UpdateRange(rng)
	}
	return nil
}
