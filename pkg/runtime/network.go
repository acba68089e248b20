package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	gocni "github.com/containerd/go-cni"
)

// bridgeConflistTemplate mirrors the CNI conflist nerdctl's netutil
// package generates for a bridge-backed user network: one bridge plugin
// for L2/L3 setup, a firewall plugin, and a portmap plugin kept for
// parity even though range networks rarely publish host ports.
const bridgeConflistTemplate = `{
  "cniVersion": "1.0.0",
  "name": "{{.Name}}",
  "plugins": [
    {
      "type": "bridge",
      "bridge": "cyroid-{{.Short}}",
      "isGateway": true,
      "isDefaultGateway": true,
      "ipMasq": {{not .Internal}},
      "hairpinMode": true,
      "ipam": {
        "type": "host-local",
        "ranges": [[{"subnet": "{{.Subnet}}", "gateway": "{{.Gateway}}"}]]
      }
    },
    {"type": "firewall"},
    {"type": "portmap", "capabilities": {"portMappings": true}}
  ]
}`

var conflistTpl = template.Must(template.New("conflist").Parse(bridgeConflistTemplate))

// networkRecord tracks a created network: its CNI conflist path, the
// handle returned to callers, and whether it was created internal-only.
type networkRecord struct {
	handle     string
	confPath   string
	cni        gocni.CNI
	subnet     string
	gateway    string
	internal   bool
	labels     map[string]string
}

func conflistPath(confDir, handle string) string {
	return filepath.Join(confDir, fmt.Sprintf("cyroid-%s.conflist", handle))
}

// createNetwork writes a bridge conflist for the network and loads it
// into a dedicated CNI instance so containers can be attached to it
// independently of any other network.
func (r *ContainerdRuntime) createNetwork(ctx context.Context, spec NetworkSpec) (string, error) {
	handle := spec.Name
	if handle == "" {
		return "", fmt.Errorf("network name is required")
	}

	r.mu.Lock()
	if _, exists := r.networks[handle]; exists {
		r.mu.Unlock()
		return handle, nil
	}
	r.mu.Unlock()

	short := handle
	if len(short) > 11 {
		short = short[:11]
	}

	var buf bytes.Buffer
	if err := conflistTpl.Execute(&buf, struct {
		Name, Short, Subnet, Gateway string
		Internal                     bool
	}{handle, short, spec.Subnet, spec.Gateway, spec.Internal}); err != nil {
		return "", fmt.Errorf("render CNI conflist: %w", err)
	}

	if err := os.MkdirAll(r.cniConfDir, 0755); err != nil {
		return "", fmt.Errorf("create CNI conf dir: %w", err)
	}

	path := conflistPath(r.cniConfDir, handle)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write CNI conflist: %w", err)
	}

	cni, err := gocni.New(
		gocni.WithPluginDir([]string{gocni.DefaultCNIDir}),
		gocni.WithInterfacePrefix("eth"),
	)
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("init CNI for network %s: %w", handle, err)
	}
	if err := cni.Load(gocni.WithConfListFile(path)); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("load CNI conflist for network %s: %w", handle, err)
	}

	r.mu.Lock()
	r.networks[handle] = &networkRecord{
		handle:   handle,
		confPath: path,
		cni:      cni,
		subnet:   spec.Subnet,
		gateway:  spec.Gateway,
		internal: spec.Internal,
		labels:   spec.Labels,
	}
	r.mu.Unlock()

	return handle, nil
}

// deleteNetwork removes a network's conflist. Idempotent: deleting an
// unknown handle is not an error.
func (r *ContainerdRuntime) deleteNetwork(ctx context.Context, handle string) error {
	r.mu.Lock()
	rec, ok := r.networks[handle]
	if ok {
		delete(r.networks, handle)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := os.Remove(rec.confPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove CNI conflist for network %s: %w", handle, err)
	}
	return nil
}

func (r *ContainerdRuntime) listNetworks(labelFilter map[string]string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.networks))
	for handle, rec := range r.networks {
		if matchesLabels(rec.labels, labelFilter) {
			ids = append(ids, handle)
		}
	}
	return ids
}

func matchesLabels(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

// attachNetworks sets up CNI for each network attachment, in order, for
// a container's network namespace. The first attachment becomes the
// container's default route unless a later Internal attachment
// overrides it, matching the routing-network-first convention pkg/synth
// relies on.
func (r *ContainerdRuntime) attachNetworks(ctx context.Context, containerID string, netns string, attachments []NetworkAttachment) ([]*gocni.Result, error) {
	results := make([]*gocni.Result, 0, len(attachments))
	for i, att := range attachments {
		r.mu.RLock()
		rec, ok := r.networks[att.NetworkHandle]
		r.mu.RUnlock()
		if !ok {
			return results, fmt.Errorf("unknown network handle %q", att.NetworkHandle)
		}

		var opts []gocni.NamespaceOpts
		if att.IPAddress != "" {
			opts = append(opts, gocni.WithCapabilityIPs(att.IPAddress))
		}
		opts = append(opts, gocni.WithLabels(map[string]string{"ifname": fmt.Sprintf("eth%d", i)}))

		res, err := rec.cni.SetupSerially(ctx, containerID, netns, opts...)
		if err != nil {
			return results, fmt.Errorf("attach network %s: %w", att.NetworkHandle, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// detachNetworks tears down every CNI attachment recorded for a
// container. Errors are collected but don't stop the remaining
// teardowns, matching the idempotent-remove contract.
func (r *ContainerdRuntime) detachNetworks(ctx context.Context, containerID, netns string, handles []string) error {
	var firstErr error
	for _, handle := range handles {
		r.mu.RLock()
		rec, ok := r.networks[handle]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		if err := rec.cni.Remove(ctx, containerID, netns); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func networkNamespace(pid int) string {
	return fmt.Sprintf("/proc/%d/ns/net", pid)
}

// waitForNetns polls for a process's network namespace file to appear;
// runc shim v2 creates the namespace before Task.Pid() resolves but a
// short grace window avoids a race on very fast hosts.
func waitForNetns(pid int) string {
	path := networkNamespace(pid)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		time.Sleep(10 * time.Millisecond)
	}
	return path
}

func encodeLabels(labels map[string]string) string {
	b, _ := json.Marshal(labels)
	return string(b)
}
