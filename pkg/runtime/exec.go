package runtime

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	goruntime "runtime"
	"time"

	cgroupstats "github.com/containerd/cgroups/stats/v1"
	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/typeurl/v2"
	"github.com/google/uuid"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Exec runs argv to completion inside handle's container and returns its
// exit code and combined stdout+stderr, per the non-interactive contract
// used by pkg/msel for inject commands.
func (r *ContainerdRuntime) Exec(ctx context.Context, handle string, argv []string, opts ExecOptions) (int, string, error) {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, handle)
	if err != nil {
		return -1, "", fmt.Errorf("load container %s: %w", handle, err)
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return -1, "", fmt.Errorf("container %s is not running: %w", handle, err)
	}

	spec, err := container.Spec(ctx)
	if err != nil {
		return -1, "", fmt.Errorf("read spec for %s: %w", handle, err)
	}

	procSpec := spec.Process
	procSpec.Args = argv
	procSpec.Terminal = false
	procSpec.Env = append(append([]string{}, procSpec.Env...), opts.Env...)
	if opts.WorkDir != "" {
		procSpec.Cwd = opts.WorkDir
	}
	if opts.User != "" {
		procSpec.User = specs.User{Username: opts.User}
	}

	out := &combinedWriter{}
	execID := "exec-" + uuid.NewString()

	process, err := task.Exec(ctx, execID, procSpec, cio.NewCreator(cio.WithStreams(nil, out, out)))
	if err != nil {
		return -1, "", fmt.Errorf("exec in %s: %w", handle, err)
	}
	defer process.Delete(ctx)

	statusC, err := process.Wait(ctx)
	if err != nil {
		return -1, "", fmt.Errorf("wait for exec in %s: %w", handle, err)
	}
	if err := process.Start(ctx); err != nil {
		return -1, "", fmt.Errorf("start exec in %s: %w", handle, err)
	}

	status := <-statusC
	code, _, err := status.Result()
	if err != nil {
		return -1, out.String(), fmt.Errorf("exec result in %s: %w", handle, err)
	}
	return int(code), out.String(), nil
}

// ptyStream implements PTYStream over an in-process exec attached with a
// container-side pseudo terminal. It never touches a host PTY device;
// the bytes it shuttles are framed by pkg/session for its websocket.
type ptyStream struct {
	process containerd.Process
	stdin   io.WriteCloser
	stdout  io.ReadCloser
}

func (p *ptyStream) Read(b []byte) (int, error)  { return p.stdout.Read(b) }
func (p *ptyStream) Write(b []byte) (int, error) { return p.stdin.Write(b) }

func (p *ptyStream) Resize(cols, rows uint32) error {
	return p.process.Resize(context.Background(), cols, rows)
}

func (p *ptyStream) Close() error {
	p.stdin.Close()
	p.stdout.Close()
	ctx := context.Background()
	p.process.Kill(ctx, 15)
	_, err := p.process.Delete(ctx)
	return err
}

// ExecInteractive attaches a terminal-backed exec session for
// pkg/session's shell console: argv is typically the login-shell probe
// ("if [ -x /bin/bash ]; then exec /bin/bash; else exec /bin/sh; fi").
func (r *ContainerdRuntime) ExecInteractive(ctx context.Context, handle string, argv []string) (PTYStream, error) {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("load container %s: %w", handle, err)
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("container %s is not running: %w", handle, err)
	}

	spec, err := container.Spec(ctx)
	if err != nil {
		return nil, fmt.Errorf("read spec for %s: %w", handle, err)
	}

	procSpec := spec.Process
	procSpec.Args = argv
	procSpec.Terminal = true

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	execID := "shell-" + uuid.NewString()
	process, err := task.Exec(ctx, execID, procSpec, cio.NewCreator(cio.WithStreams(inR, outW, nil), cio.WithTerminal))
	if err != nil {
		return nil, fmt.Errorf("interactive exec in %s: %w", handle, err)
	}
	if err := process.Start(ctx); err != nil {
		process.Delete(ctx)
		return nil, fmt.Errorf("start interactive exec in %s: %w", handle, err)
	}

	return &ptyStream{process: process, stdin: inW, stdout: outR}, nil
}

// copyTo streams src (a host path) into the container as a single
// tar archive extracted at dst, avoiding any dependency on a shared
// filesystem between cyroid and the container it's placing a file into.
func (r *ContainerdRuntime) copyTo(ctx context.Context, handle, src, dst string) error {
	container, err := r.client.LoadContainer(ctx, handle)
	if err != nil {
		return fmt.Errorf("load container %s: %w", handle, err)
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return fmt.Errorf("container %s is not running: %w", handle, err)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read source file %s: %w", src, err)
	}

	var archive bytes.Buffer
	gz := gzip.NewWriter(&archive)
	tw := tar.NewWriter(gz)
	hdr := &tar.Header{
		Name: filepath.Base(dst),
		Mode: 0644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("build archive header for %s: %w", dst, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write archive body for %s: %w", dst, err)
	}
	tw.Close()
	gz.Close()

	spec, err := container.Spec(ctx)
	if err != nil {
		return fmt.Errorf("read spec for %s: %w", handle, err)
	}

	destDir := filepath.Dir(dst)
	procSpec := spec.Process
	procSpec.Args = []string{"sh", "-c", fmt.Sprintf("mkdir -p %q && tar -xzf - -C %q", destDir, destDir)}
	procSpec.Terminal = false

	out := &combinedWriter{}
	execID := "copy-" + uuid.NewString()
	process, err := task.Exec(ctx, execID, procSpec, cio.NewCreator(cio.WithStreams(bytes.NewReader(archive.Bytes()), out, out)))
	if err != nil {
		return fmt.Errorf("copy_to exec in %s: %w", handle, err)
	}
	defer process.Delete(ctx)

	statusC, err := process.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for copy_to in %s: %w", handle, err)
	}
	if err := process.Start(ctx); err != nil {
		return fmt.Errorf("start copy_to in %s: %w", handle, err)
	}

	status := <-statusC
	code, _, err := status.Result()
	if err != nil {
		return fmt.Errorf("copy_to result in %s: %w", handle, err)
	}
	if code != 0 {
		return fmt.Errorf("copy_to in %s exited %d: %s", handle, code, out.String())
	}
	return nil
}

// stats reads a task's current resource metrics and derives the
// percentage fields the stats contract exposes.
func (r *ContainerdRuntime) stats(ctx context.Context, handle string) (ContainerStats, error) {
	container, err := r.client.LoadContainer(ctx, handle)
	if err != nil {
		return ContainerStats{}, fmt.Errorf("load container %s: %w", handle, err)
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return ContainerStats{}, fmt.Errorf("container %s is not running: %w", handle, err)
	}

	metric, err := task.Metrics(ctx)
	if err != nil {
		return ContainerStats{}, fmt.Errorf("read metrics for %s: %w", handle, err)
	}

	spec, err := container.Spec(ctx)
	if err != nil {
		return ContainerStats{}, fmt.Errorf("read spec for %s: %w", handle, err)
	}

	var limitMB float64
	if spec.Linux != nil && spec.Linux.Resources != nil && spec.Linux.Resources.Memory != nil && spec.Linux.Resources.Memory.Limit != nil {
		limitMB = float64(*spec.Linux.Resources.Memory.Limit) / (1024 * 1024)
	}

	stats := ContainerStats{}

	decoded, err := typeurl.UnmarshalAny(metric.Data)
	if err != nil {
		return stats, fmt.Errorf("decode metrics for %s: %w", handle, err)
	}

	if m, ok := decoded.(*cgroupstats.Metrics); ok {
		if m.CPU != nil && m.CPU.Usage != nil {
			nanos := m.CPU.Usage.Total
			cores := float64(countLogicalCPUs())
			if cores > 0 {
				stats.CPUPercent = float64(nanos) / 1e9 / cores * 100
			}
		}
		if m.Memory != nil && m.Memory.Usage != nil {
			stats.MemMB = float64(m.Memory.Usage.Usage) / (1024 * 1024)
			if limitMB > 0 {
				stats.MemPercent = stats.MemMB / limitMB * 100
			}
		}
		for _, iface := range m.Network {
			stats.RxBytes += int64(iface.RxBytes)
			stats.TxBytes += int64(iface.TxBytes)
		}
	}

	return stats, nil
}

func countLogicalCPUs() int {
	return goruntime.NumCPU()
}

// pullStream pulls image in the background, polling the content store's
// ingest status so callers can render per-layer progress the way the
// containerd CLI's own pull progress bar does.
func (r *ContainerdRuntime) pullStream(ctx context.Context, image string) (<-chan PullProgress, error) {
	if _, err := r.client.GetImage(ctx, image); err == nil {
		ch := make(chan PullProgress, 1)
		ch <- PullProgress{LayerID: image, Status: PullStatusAlreadyExists}
		close(ch)
		return ch, nil
	}

	progress := make(chan PullProgress, 32)

	go func() {
		defer close(progress)

		done := make(chan struct{})
		go func() {
			defer close(done)
			ticker := r.client.ContentStore()
			for {
				select {
				case <-ctx.Done():
					return
				case <-done:
					return
				default:
				}
				statuses, err := ticker.ListStatuses(ctx)
				if err == nil {
					for _, st := range statuses {
						progress <- PullProgress{
							LayerID:      st.Ref,
							BytesCurrent: st.Offset,
							BytesTotal:   st.Total,
							Status:       PullStatusPulling,
						}
					}
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(250 * time.Millisecond):
				}
			}
		}()

		_, err := r.client.Pull(ctx, image, containerd.WithPullUnpack)
		close(done)
		if err != nil {
			progress <- PullProgress{LayerID: image, Err: err}
			return
		}
		progress <- PullProgress{LayerID: image, Status: PullStatusComplete}
	}()

	return progress, nil
}

// containerIPFromNetns inspects a container's network namespace for its
// first non-loopback IPv4 address, used by the VNC proxy to dial the
// guest's websockify endpoint directly.
func containerIPFromNetns(netnsPath string) (string, error) {
	nsFile, err := os.Open(netnsPath)
	if err != nil {
		return "", fmt.Errorf("open netns %s: %w", netnsPath, err)
	}
	defer nsFile.Close()

	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Name == "lo" {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok && ipNet.IP.To4() != nil {
				return ipNet.IP.String(), nil
			}
		}
	}
	return "", fmt.Errorf("no IPv4 address found in %s", netnsPath)
}
