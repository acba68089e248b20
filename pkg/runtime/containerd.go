package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/errdefs"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/cyroid/cyroid/pkg/log"
)

const (
	// Namespace isolates every container and network cyroid creates from
	// anything else running on the same containerd daemon.
	Namespace = "cyroid"

	// DefaultSocketPath is where containerd listens by default on Linux.
	DefaultSocketPath = "/run/containerd/containerd.sock"

	// DefaultCNIConfDir holds the per-network CNI conflists this adapter
	// generates; it is not shared with any system-wide CNI install.
	DefaultCNIConfDir = "/var/lib/cyroid/cni/net.d"
)

// ContainerdRuntime is the containerd-backed Adapter implementation. It
// is the one piece of cyroid that talks to the container engine; every
// other component works through the Adapter interface.
type ContainerdRuntime struct {
	client    *containerd.Client
	namespace string
	cniConfDir string

	mu       sync.RWMutex
	networks map[string]*networkRecord
	attached map[string][]string // containerID -> attached network handles
}

// NewContainerdRuntime dials containerd over socketPath (DefaultSocketPath
// if empty) and prepares the CNI conflist directory.
func NewContainerdRuntime(socketPath, cniConfDir string) (*ContainerdRuntime, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if cniConfDir == "" {
		cniConfDir = DefaultCNIConfDir
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to containerd at %s: %w", socketPath, err)
	}

	return &ContainerdRuntime{
		client:     client,
		namespace:  Namespace,
		cniConfDir: cniConfDir,
		networks:   make(map[string]*networkRecord),
		attached:   make(map[string][]string),
	}, nil
}

func (r *ContainerdRuntime) ctx(ctx context.Context) context.Context {
	return namespaces.WithNamespace(ctx, r.namespace)
}

func (r *ContainerdRuntime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *ContainerdRuntime) CreateNetwork(ctx context.Context, spec NetworkSpec) (string, error) {
	return r.createNetwork(r.ctx(ctx), spec)
}

func (r *ContainerdRuntime) DeleteNetwork(ctx context.Context, handle string) error {
	return r.deleteNetwork(r.ctx(ctx), handle)
}

func (r *ContainerdRuntime) ListNetworks(ctx context.Context, labelFilter map[string]string) ([]string, error) {
	return r.listNetworks(labelFilter), nil
}

// CreateContainer pulls the image if needed, builds the OCI spec with
// resource limits and mounts, creates the container and its (unstarted)
// task, then attaches networks in the order given — the routing network
// first, then the range network with its static IP, matching the
// synthesis contract in pkg/synth.
func (r *ContainerdRuntime) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	ctx = r.ctx(ctx)

	image, err := r.client.GetImage(ctx, spec.Image)
	if err != nil {
		image, err = r.client.Pull(ctx, spec.Image, containerd.WithPullUnpack)
		if err != nil {
			return "", fmt.Errorf("resolve image %s: %w", spec.Image, err)
		}
	}

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(spec.Env),
		oci.WithHostname(spec.Hostname),
	}

	if spec.Privileged {
		opts = append(opts, oci.WithPrivileged, oci.WithAllDevicesAllowed, oci.WithHostDevices)
	}
	for _, dev := range spec.Devices {
		opts = append(opts, oci.WithLinuxDevice(dev, "rwm"))
	}

	if spec.CPUCores > 0 {
		shares, quota, period := cpuSharesAndQuota(spec.CPUCores)
		opts = append(opts, oci.WithCPUShares(shares), oci.WithCPUCFS(quota, period))
	}
	if spec.MemoryMB > 0 {
		opts = append(opts, oci.WithMemoryLimit(uint64(spec.MemoryMB)*1024*1024))
	}

	if len(spec.Mounts) > 0 {
		mounts := make([]specs.Mount, 0, len(spec.Mounts))
		for _, m := range spec.Mounts {
			mountOpts := []string{"rbind"}
			if m.ReadOnly {
				mountOpts = append(mountOpts, "ro")
			} else {
				mountOpts = append(mountOpts, "rw")
			}
			mounts = append(mounts, specs.Mount{
				Source:      m.Source,
				Destination: m.Destination,
				Type:        "bind",
				Options:     mountOpts,
			})
		}
		opts = append(opts, oci.WithMounts(mounts))
	}

	container, err := r.client.NewContainer(
		ctx,
		spec.ID,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(spec.ID+"-snapshot", image),
		containerd.WithNewSpec(opts...),
		containerd.WithContainerLabels(spec.Labels),
	)
	if err != nil {
		return "", fmt.Errorf("create container %s: %w", spec.ID, err)
	}

	task, err := container.NewTask(ctx, cio.NewCreator(cio.WithStdio))
	if err != nil {
		container.Delete(ctx, containerd.WithSnapshotCleanup)
		return "", fmt.Errorf("create task for %s: %w", spec.ID, err)
	}

	if len(spec.Networks) > 0 {
		netns := waitForNetns(int(task.Pid()))
		handles := make([]string, 0, len(spec.Networks))
		for _, att := range spec.Networks {
			handles = append(handles, att.NetworkHandle)
		}
		if _, err := r.attachNetworks(ctx, spec.ID, netns, spec.Networks); err != nil {
			task.Delete(ctx, containerd.WithProcessKill)
			container.Delete(ctx, containerd.WithSnapshotCleanup)
			return "", fmt.Errorf("attach networks for %s: %w", spec.ID, err)
		}
		r.mu.Lock()
		r.attached[spec.ID] = handles
		r.mu.Unlock()
	}

	return container.ID(), nil
}

func (r *ContainerdRuntime) Start(ctx context.Context, handle string) error {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, handle)
	if err != nil {
		return fmt.Errorf("load container %s: %w", handle, err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		task, err = container.NewTask(ctx, cio.NewCreator(cio.WithStdio))
		if err != nil {
			return fmt.Errorf("create task for %s: %w", handle, err)
		}
	}

	return task.Start(ctx)
}

func (r *ContainerdRuntime) Stop(ctx context.Context, handle string, grace time.Duration) error {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, handle)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("load container %s: %w", handle, err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		return nil
	}

	stopCtx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	if err := task.Kill(stopCtx, syscall.SIGTERM); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("send SIGTERM to %s: %w", handle, err)
	}

	statusC, err := task.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for task %s: %w", handle, err)
	}

	select {
	case <-statusC:
	case <-stopCtx.Done():
		if err := task.Kill(ctx, syscall.SIGKILL); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("force kill %s: %w", handle, err)
		}
		<-statusC
	}

	if _, err := task.Delete(ctx); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("delete task %s: %w", handle, err)
	}
	return nil
}

func (r *ContainerdRuntime) Restart(ctx context.Context, handle string, grace time.Duration) error {
	if err := r.Stop(ctx, handle, grace); err != nil {
		return err
	}
	return r.Start(ctx, handle)
}

// Remove stops the container if running and deletes it along with its
// snapshot and network attachments. Removing an already-absent
// container is not an error.
func (r *ContainerdRuntime) Remove(ctx context.Context, handle string, force bool) error {
	ctx = r.ctx(ctx)

	grace := 10 * time.Second
	if force {
		grace = 0
	}
	if err := r.Stop(ctx, handle, grace); err != nil && !force {
		return err
	}

	container, err := r.client.LoadContainer(ctx, handle)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("load container %s: %w", handle, err)
	}

	r.mu.Lock()
	handles := r.attached[handle]
	delete(r.attached, handle)
	r.mu.Unlock()

	if len(handles) > 0 {
		if err := r.detachNetworks(ctx, handle, "", handles); err != nil {
			log.Logger.Warn().Err(err).Str("container", handle).Msg("detach networks on remove")
		}
	}

	if err := container.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("delete container %s: %w", handle, err)
	}
	return nil
}

func (r *ContainerdRuntime) CopyTo(ctx context.Context, handle, src, dst string) error {
	return r.copyTo(r.ctx(ctx), handle, src, dst)
}

func (r *ContainerdRuntime) Commit(ctx context.Context, handle, repoTag string) (string, error) {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, handle)
	if err != nil {
		return "", fmt.Errorf("load container %s: %w", handle, err)
	}

	image, err := container.Checkpoint(ctx, repoTag, []containerd.CheckpointOpts{containerd.WithCheckpointImage}...)
	if err != nil {
		return "", fmt.Errorf("commit container %s as %s: %w", handle, repoTag, err)
	}
	return image.Name(), nil
}

func (r *ContainerdRuntime) Stats(ctx context.Context, handle string) (ContainerStats, error) {
	return r.stats(r.ctx(ctx), handle)
}

func (r *ContainerdRuntime) ContainerIP(ctx context.Context, handle, networkHandle string) (string, error) {
	ctx = r.ctx(ctx)

	r.mu.RLock()
	_, ok := r.networks[networkHandle]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown network handle %q", networkHandle)
	}

	container, err := r.client.LoadContainer(ctx, handle)
	if err != nil {
		return "", fmt.Errorf("load container %s: %w", handle, err)
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("container %s has no running task: %w", handle, err)
	}
	if s, err := task.Status(ctx); err != nil || s.Status != containerd.Running {
		return "", fmt.Errorf("container %s is not running", handle)
	}

	return containerIPFromNetns(waitForNetns(int(task.Pid())))
}

func (r *ContainerdRuntime) ListContainers(ctx context.Context, labelFilter map[string]string) ([]string, error) {
	ctx = r.ctx(ctx)

	containers, err := r.client.Containers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	ids := make([]string, 0, len(containers))
	for _, c := range containers {
		info, err := c.Info(ctx)
		if err != nil {
			continue
		}
		if matchesLabels(info.Labels, labelFilter) {
			ids = append(ids, c.ID())
		}
	}
	return ids, nil
}

func (r *ContainerdRuntime) PullStream(ctx context.Context, image string) (<-chan PullProgress, error) {
	return r.pullStream(r.ctx(ctx), image)
}

// ImageExists reports whether image is already present in the local
// image store, without pulling it.
func (r *ContainerdRuntime) ImageExists(ctx context.Context, image string) (bool, error) {
	if _, err := r.client.GetImage(r.ctx(ctx), image); err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// combinedWriter captures process stdout+stderr into a single buffer
// for the non-interactive Exec contract (exit_code, combined_output).
type combinedWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *combinedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *combinedWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

var _ io.Writer = (*combinedWriter)(nil)
