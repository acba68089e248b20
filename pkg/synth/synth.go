// Package synth translates a VM, its template and its network into a
// concrete runtime.ContainerSpec. It is the only place that knows the
// three container families (plain, Linux-VM, Windows-VM) and their
// env-var/mount/label contracts; everything below it (pkg/runtime) works
// in terms of opaque container specs, and everything above it
// (pkg/orchestrator) never builds one by hand.
//
// Synthesis is a pure function of its inputs plus a small amount of
// environment probing (KVM device presence), a one-time directory copy
// for golden images, and, for Windows VMs with a post-install script,
// writing install.bat into an OEM directory. It never starts or stops
// anything.
package synth

import (
	"fmt"
	"os"

	"github.com/cyroid/cyroid/pkg/runtime"
	"github.com/cyroid/cyroid/pkg/types"
)

const kvmDevicePath = "/dev/kvm"

// Synthesizer holds the filesystem roots synthesis needs to resolve
// mount sources; it carries no other state and no lifecycle methods.
type Synthesizer struct {
	vmStorageDir     string
	templateStoreDir string
	globalSharedDir  string
}

// New creates a Synthesizer. The roots are kept as given, with no
// defaults; an empty globalSharedDir means no /global mount.
func New(vmStorageDir, templateStoreDir, globalSharedDir string) *Synthesizer {
	return &Synthesizer{
		vmStorageDir:     vmStorageDir,
		templateStoreDir: templateStoreDir,
		globalSharedDir:  globalSharedDir,
	}
}

// Input bundles everything Synthesize needs beyond the VM/template pair:
// the network the VM attaches to, the shared routing network's runtime
// handle, and the VM's resolved storage directory (pkg/volume.Store.Path).
type Input struct {
	VM              *types.VM
	Template        *types.VMTemplate
	Network         *types.Network
	RoutingNetwork  string
	StorageDir      string
	CachedISOPath   string // resolved path, if Template.CachedISOPath names a cache entry
}

// Synthesize builds the container spec for in.VM per its template's
// VMType. It is the single entry point; the three synthesizeX functions
// below are unexported and unreachable from outside the package.
func (s *Synthesizer) Synthesize(in Input) (runtime.ContainerSpec, error) {
	if in.Template.GoldenImagePath != "" {
		if err := s.seedGoldenImage(in); err != nil {
			return runtime.ContainerSpec{}, fmt.Errorf("seed golden image: %w", err)
		}
	}

	switch in.Template.VMType {
	case types.VMTypeContainer:
		return s.synthesizeContainer(in), nil
	case types.VMTypeLinuxVM:
		return s.synthesizeLinuxVM(in), nil
	case types.VMTypeWindowsVM:
		return s.synthesizeWindowsVM(in)
	default:
		return runtime.ContainerSpec{}, fmt.Errorf("synth: unknown vm_type %q", in.Template.VMType)
	}
}

// hasKVM reports whether /dev/kvm exists on this host.
func hasKVM() bool {
	_, err := os.Stat(kvmDevicePath)
	return err == nil
}

// networkAttachments builds the two-step routing-then-range attachment
// order every container family shares: the routing network has no
// pinned IP, the range network always does.
func networkAttachments(in Input) []runtime.NetworkAttachment {
	atts := make([]runtime.NetworkAttachment, 0, 2)
	if in.RoutingNetwork != "" {
		atts = append(atts, runtime.NetworkAttachment{NetworkHandle: in.RoutingNetwork})
	}
	atts = append(atts, runtime.NetworkAttachment{
		NetworkHandle: in.Network.RuntimeHandle,
		IPAddress:     in.VM.PrimaryIP,
	})
	return atts
}

func baseSpec(in Input) runtime.ContainerSpec {
	return runtime.ContainerSpec{
		ID:       in.VM.ID,
		Hostname: in.VM.Hostname,
		CPUCores: float64(in.VM.CPU),
		MemoryMB: int64(in.VM.RAMMB),
		Networks: networkAttachments(in),
		Labels:   map[string]string{"cyroid.range_id": in.VM.RangeID, "cyroid.vm_id": in.VM.ID},
	}
}
