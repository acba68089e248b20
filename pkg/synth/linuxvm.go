package synth

import (
	"fmt"

	"github.com/cyroid/cyroid/pkg/runtime"
	"github.com/cyroid/cyroid/pkg/types"
)

// linuxVMImage is the fixed qemu-family base image every Linux-VM-in-
// container uses; the actual distro is selected by the BOOT env var, not
// by the image reference.
const linuxVMImage = "qemux/qemu"

// synthesizeLinuxVM builds the Linux-VM-in-container family (mode 2):
// fixed image, BOOT/DISK_SIZE/CPU_CORES/RAM_SIZE/BOOT_MODE/DISK_TYPE/
// DISPLAY env, /dev/kvm passthrough when present, privileged, and the
// storage/disk2/disk3/shared/global mount set.
func (s *Synthesizer) synthesizeLinuxVM(in Input) runtime.ContainerSpec {
	spec := baseSpec(in)
	spec.Image = linuxVMImage
	spec.Privileged = true

	display := "none"
	if in.VM.Extended.Display == types.DisplayModeDesktop {
		display = "web"
	}

	env := []string{
		"BOOT=" + bootValue(in),
		fmt.Sprintf("DISK_SIZE=%dG", in.VM.DiskGB),
		fmt.Sprintf("CPU_CORES=%d", in.VM.CPU),
		fmt.Sprintf("RAM_SIZE=%dM", in.VM.RAMMB),
		"BOOT_MODE=legacy",
		"DISK_TYPE=scsi",
		"DISPLAY=" + display,
	}
	if in.VM.Extended.Disk2GB > 0 {
		env = append(env, fmt.Sprintf("DISK2_SIZE=%dG", in.VM.Extended.Disk2GB))
	}
	if in.VM.Extended.Disk3GB > 0 {
		env = append(env, fmt.Sprintf("DISK3_SIZE=%dG", in.VM.Extended.Disk3GB))
	}
	spec.Env = env

	if hasKVM() {
		spec.Devices = append(spec.Devices, kvmDevicePath)
	}

	spec.Mounts = vmMounts(s, in)

	if in.VM.Extended.Display == types.DisplayModeDesktop {
		for k, v := range desktopLabels(in.VM.ID, desktopFamily{port: 8006, scheme: "http"}) {
			spec.Labels[k] = v
		}
	}

	return spec
}

// bootValue resolves the BOOT env var to the template's distro code or
// URL. When a cached ISO is mounted at /boot.iso, the VM-in-container
// image finds it there regardless of BOOT, so the variant code still
// identifies which distro it is for bookkeeping purposes.
func bootValue(in Input) string {
	return in.Template.Variant
}

// vmMounts assembles the mount set shared by the Linux-VM and
// Windows-VM families: persistent storage, optional extra disks, a
// per-VM shared folder, the global read-only shared directory, and a
// read-only cached ISO when one is resolved.
func vmMounts(s *Synthesizer, in Input) []runtime.Mount {
	mounts := []runtime.Mount{
		{Source: in.StorageDir, Destination: "/storage"},
	}
	if in.CachedISOPath != "" {
		mounts = append(mounts, runtime.Mount{Source: in.CachedISOPath, Destination: "/boot.iso", ReadOnly: true})
	}
	if in.VM.Extended.Disk2GB > 0 {
		mounts = append(mounts, runtime.Mount{Source: in.StorageDir + "2", Destination: "/storage2"})
	}
	if in.VM.Extended.Disk3GB > 0 {
		mounts = append(mounts, runtime.Mount{Source: in.StorageDir + "3", Destination: "/storage3"})
	}
	if in.VM.Extended.SharedFolder != "" {
		mounts = append(mounts, runtime.Mount{Source: in.VM.Extended.SharedFolder, Destination: "/shared"})
	}
	if s.globalSharedDir != "" {
		mounts = append(mounts, runtime.Mount{Source: s.globalSharedDir, Destination: "/global", ReadOnly: true})
	}
	return mounts
}
