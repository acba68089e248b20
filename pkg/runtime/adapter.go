// Package runtime is the single substrate every higher-level component
// (orchestrator, synth, msel, session) uses to create and drive the
// containers and networks that make up a range. It is the only package
// that speaks containerd; everything above it works in terms of opaque
// string handles.
package runtime

import (
	"context"
	"io"
	"time"
)

// NetworkSpec describes a network to create. Internal networks have no
// route to the outside world; cyroid sets Internal for Complete and
// Controlled isolation ranges.
type NetworkSpec struct {
	Name     string
	Subnet   string
	Gateway  string
	Internal bool
	Labels   map[string]string
}

// Mount is a single bind mount into a container.
type Mount struct {
	Source      string
	Destination string
	ReadOnly    bool
}

// NetworkAttachment binds a container to a network handle, optionally
// pinning a static IP. Order matters: the routing network (if any) must
// be attached before the range network so the range network's gateway
// doesn't become the container's default route.
type NetworkAttachment struct {
	NetworkHandle string
	IPAddress     string
}

// ContainerSpec is the fully-resolved description of a container to
// create, produced by pkg/synth from a VM, its template and network.
type ContainerSpec struct {
	ID         string
	Image      string
	Hostname   string
	Env        []string
	Privileged bool
	Devices    []string
	Mounts     []Mount
	Networks   []NetworkAttachment
	CPUCores   float64
	MemoryMB   int64
	Labels     map[string]string
}

// ExecOptions configures a one-shot or interactive exec.
type ExecOptions struct {
	User     string
	WorkDir  string
	Env      []string
	TTY      bool
}

// PullStatus is the status field of a PullProgress record.
type PullStatus string

const (
	PullStatusPulling        PullStatus = "pulling"
	PullStatusComplete       PullStatus = "complete"
	PullStatusAlreadyExists  PullStatus = "already_exists"
)

// PullProgress is one progress update for an in-flight image pull,
// reported per layer.
type PullProgress struct {
	LayerID      string
	BytesCurrent int64
	BytesTotal   int64
	Status       PullStatus
	Err          error
}

// ContainerStats is a point-in-time resource usage sample.
type ContainerStats struct {
	CPUPercent float64
	MemMB      float64
	MemPercent float64
	RxBytes    int64
	TxBytes    int64
}

// PTYStream is a duplex byte stream attached to an interactive exec
// session, returned by ExecInteractive and driven by pkg/session's
// console handler.
type PTYStream interface {
	io.Reader
	io.Writer
	Resize(cols, rows uint32) error
	Close() error
}

// Adapter is the container/network substrate every range operation is
// built on. Implementations never retry internally; callers (mostly
// pkg/orchestrator) decide whether a failure is transient and what to
// do about it.
type Adapter interface {
	CreateNetwork(ctx context.Context, spec NetworkSpec) (string, error)
	DeleteNetwork(ctx context.Context, handle string) error

	CreateContainer(ctx context.Context, spec ContainerSpec) (string, error)
	Start(ctx context.Context, handle string) error
	Stop(ctx context.Context, handle string, grace time.Duration) error
	Restart(ctx context.Context, handle string, grace time.Duration) error
	Remove(ctx context.Context, handle string, force bool) error

	Exec(ctx context.Context, handle string, argv []string, opts ExecOptions) (exitCode int, output string, err error)
	ExecInteractive(ctx context.Context, handle string, argv []string) (PTYStream, error)

	CopyTo(ctx context.Context, handle, src, dst string) error
	Commit(ctx context.Context, handle, repoTag string) (string, error)
	PullStream(ctx context.Context, image string) (<-chan PullProgress, error)
	ImageExists(ctx context.Context, image string) (bool, error)

	Stats(ctx context.Context, handle string) (ContainerStats, error)
	ContainerIP(ctx context.Context, handle, networkHandle string) (string, error)

	ListContainers(ctx context.Context, labelFilter map[string]string) ([]string, error)
	ListNetworks(ctx context.Context, labelFilter map[string]string) ([]string, error)

	Close() error
}

// cpuSharesAndQuota converts a core count into containerd's CFS share
// weight (1024 per core) and quota (microseconds per 100ms period).
func cpuSharesAndQuota(cores float64) (shares uint64, quota int64, period uint64) {
	if cores <= 0 {
		return 0, 0, 0
	}
	return uint64(cores * 1024), int64(cores * 100000), 100000
}
