package msel

import (
	"sync"

	"github.com/cyroid/cyroid/pkg/cyerr"
	"github.com/cyroid/cyroid/pkg/repository"
	"github.com/cyroid/cyroid/pkg/types"
)

// fakeRepo implements only the repository.Repository methods this
// package's tests exercise; the embedded nil interface satisfies the
// rest at compile time and would panic if a test ever reached them.
type fakeRepo struct {
	repository.Repository

	mu        sync.Mutex
	msels     map[string]*types.MSEL
	injects   map[string]*types.Inject
	vms       map[string]*types.VM
	artifacts []*types.Artifact
	events    []*types.EventLogEntry
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		msels:   make(map[string]*types.MSEL),
		injects: make(map[string]*types.Inject),
		vms:     make(map[string]*types.VM),
	}
}

func (f *fakeRepo) AppendEventLogEntry(e *types.EventLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeRepo) CreateMSEL(m *types.MSEL) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msels[m.ID] = m
	return nil
}

func (f *fakeRepo) GetMSEL(id string) (*types.MSEL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.msels[id]
	if !ok {
		return nil, cyerr.NotFound("msel %s", id)
	}
	return m, nil
}

func (f *fakeRepo) GetMSELByRange(rangeID string) (*types.MSEL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msels {
		if m.RangeID == rangeID {
			return m, nil
		}
	}
	return nil, cyerr.NotFound("msel for range %s", rangeID)
}

func (f *fakeRepo) DeleteMSEL(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.msels, id)
	return nil
}

func (f *fakeRepo) CreateInject(i *types.Inject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *i
	f.injects[i.ID] = &cp
	return nil
}

func (f *fakeRepo) GetInject(id string) (*types.Inject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.injects[id]
	if !ok {
		return nil, cyerr.NotFound("inject %s", id)
	}
	cp := *i
	return &cp, nil
}

func (f *fakeRepo) ListInjectsByMSEL(mselID string) ([]*types.Inject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Inject
	for _, i := range f.injects {
		if i.MSELID == mselID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateInject(i *types.Inject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *i
	f.injects[i.ID] = &cp
	return nil
}

func (f *fakeRepo) DeleteInject(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.injects, id)
	return nil
}

func (f *fakeRepo) ListVMsByRange(rangeID string) ([]*types.VM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.VM
	for _, vm := range f.vms {
		if vm.RangeID == rangeID {
			out = append(out, vm)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListArtifacts() ([]*types.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.artifacts, nil
}

var _ repository.Repository = (*fakeRepo)(nil)
