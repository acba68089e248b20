package session

import (
	"context"
	"io"
	"sync"

	"github.com/cyroid/cyroid/pkg/cyerr"
	"github.com/cyroid/cyroid/pkg/repository"
	"github.com/cyroid/cyroid/pkg/runtime"
	"github.com/cyroid/cyroid/pkg/types"
)

// fakeRepo implements only the methods this package's handlers call;
// the embedded nil interface satisfies the rest at compile time.
type fakeRepo struct {
	repository.Repository

	mu       sync.Mutex
	ranges   map[string]*types.Range
	networks map[string]*types.Network
	vms      map[string]*types.VM
	events   []*types.EventLogEntry
	tags     map[types.ResourceKind]map[string][]*types.ResourceTag
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		ranges:   make(map[string]*types.Range),
		networks: make(map[string]*types.Network),
		vms:      make(map[string]*types.VM),
	}
}

func (f *fakeRepo) AppendEventLogEntry(e *types.EventLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeRepo) GetRange(id string) (*types.Range, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.ranges[id]
	if !ok {
		return nil, cyerr.NotFound("range %s", id)
	}
	return r, nil
}

func (f *fakeRepo) GetNetwork(id string) (*types.Network, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.networks[id]
	if !ok {
		return nil, cyerr.NotFound("network %s", id)
	}
	return n, nil
}

func (f *fakeRepo) GetVM(id string) (*types.VM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vm, ok := f.vms[id]
	if !ok {
		return nil, cyerr.NotFound("vm %s", id)
	}
	return vm, nil
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

func (f *fakeRepo) ListResourceTags(kind types.ResourceKind, resourceID string) ([]*types.ResourceTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tags[kind][resourceID], nil
}

var _ repository.Repository = (*fakeRepo)(nil)

// fakePTY is an in-memory PTYStream backed by pipes, so ConsoleHandler
// tests never touch containerd.
type fakePTY struct {
	in     *io.PipeReader
	inW    *io.PipeWriter
	out    *io.PipeReader
	outW   *io.PipeWriter
	resize []string
	closed bool
	mu     sync.Mutex
}

func newFakePTY() *fakePTY {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	return &fakePTY{in: inR, inW: inW, out: outR, outW: outW}
}

func (p *fakePTY) Read(b []byte) (int, error)  { return p.out.Read(b) }
func (p *fakePTY) Write(b []byte) (int, error) { return p.inW.Write(b) }
func (p *fakePTY) Resize(cols, rows uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resize = append(p.resize, "resized")
	return nil
}
func (p *fakePTY) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.inW.Close()
	p.in.Close()
	p.outW.Close()
	p.out.Close()
	return nil
}

// fakeRuntime implements only ExecInteractive and ContainerIP; every
// other Adapter method panics if reached, which these tests never do.
type fakeRuntime struct {
	runtime.Adapter

	pty     *fakePTY
	execErr error
	ip      string
	ipErr   error
}

func (f *fakeRuntime) ExecInteractive(ctx context.Context, handle string, argv []string) (runtime.PTYStream, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	return f.pty, nil
}

func (f *fakeRuntime) ContainerIP(ctx context.Context, handle, networkHandle string) (string, error) {
	return f.ip, f.ipErr
}
