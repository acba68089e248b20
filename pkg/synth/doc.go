/*
Package synth turns a (VM, VMTemplate, Network) triple into a
runtime.ContainerSpec. There are exactly three synthesis modes, selected
by the template's VMType:

  - Container: the template's base image runs directly; desktop VMs in a
    recognized family (KasmVNC, LinuxServer, or a generic default) get
    reverse-proxy labels for /vnc/{vm_id}.
  - LinuxVM: a fixed qemu-in-container image, booted via BOOT/DISK_SIZE/
    CPU_CORES/RAM_SIZE/DISPLAY env vars, with /dev/kvm passed through
    when present.
  - WindowsVM: a fixed dockur-in-container image, booted via VERSION and
    the same resource env vars, with an OEM directory synthesized from
    the template's post-install script when one is set.

Every mode attaches to the shared routing network before the range
network, matching pkg/runtime's attachment-order contract. Synthesize is
otherwise pure: the only side effects are a /dev/kvm stat, a one-time
directory copy into the VM's storage path when a template carries a
golden image, and the OEM directory's install.bat written for a
WindowsVM template with a post-install script.

	spec, err := synthesizer.Synthesize(synth.Input{
		VM: vm, Template: tmpl, Network: net,
		RoutingNetwork: routingHandle, StorageDir: storageDir,
	})
*/
package synth
