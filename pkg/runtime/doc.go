// Package runtime is cyroid's containerd adapter: the one place that
// creates networks and containers, runs commands inside them, streams
// image pulls, and reports resource usage. pkg/orchestrator, pkg/synth,
// pkg/msel and pkg/session all work through the Adapter interface here
// rather than importing containerd directly.
//
// Every range network becomes a small bridge CNI conflist written under
// the adapter's CNI conf directory; every VM becomes a containerd
// container attached to one or two of those networks in order — the
// routing network first (if the VM has one), then its range network
// with a pinned static IP. Attaching in that order keeps the range
// network's gateway from clobbering the container's default route.
//
// Adapter methods never retry internally. A transient failure (engine
// unreachable, exec timeout) is returned to the caller as-is; deciding
// whether to mark a range or VM Error and journal the cause is
// pkg/orchestrator's job.
//
//	rt, err := runtime.NewContainerdRuntime("", "")
//	netHandle, _ := rt.CreateNetwork(ctx, runtime.NetworkSpec{Name: "range-1-net", Subnet: "10.20.0.0/24", Gateway: "10.20.0.1"})
//	id, _ := rt.CreateContainer(ctx, runtime.ContainerSpec{ID: "vm-1", Image: "...", Networks: []runtime.NetworkAttachment{{NetworkHandle: netHandle, IPAddress: "10.20.0.10"}}})
//	rt.Start(ctx, id)
package runtime
