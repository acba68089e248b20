package synth

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyroid/cyroid/pkg/runtime"
	"github.com/cyroid/cyroid/pkg/types"
)

// windowsVMImage is the fixed dockur-family base image every Windows-VM-
// in-container uses; the actual release is selected by the VERSION env
// var, not by the image reference.
const windowsVMImage = "dockurr/windows"

// synthesizeWindowsVM builds the Windows-VM-in-container family (mode
// 3): fixed image, VERSION/DISK_SIZE/CPU_CORES/RAM_SIZE plus the
// optional locale/network overrides, /dev/kvm when present, and an OEM
// directory carrying a generated install.bat when the template has a
// post-install script.
func (s *Synthesizer) synthesizeWindowsVM(in Input) (runtime.ContainerSpec, error) {
	spec := baseSpec(in)
	spec.Image = windowsVMImage
	spec.Privileged = true

	env := []string{
		"VERSION=" + in.Template.Variant,
		fmt.Sprintf("DISK_SIZE=%dG", in.VM.DiskGB),
		fmt.Sprintf("CPU_CORES=%d", in.VM.CPU),
		fmt.Sprintf("RAM_SIZE=%dM", in.VM.RAMMB),
	}
	if in.VM.Extended.Username != "" {
		env = append(env, "USERNAME="+in.VM.Extended.Username)
	}
	if in.VM.Extended.Password != "" {
		env = append(env, "PASSWORD="+in.VM.Extended.Password)
	}
	if in.VM.Extended.DHCP {
		env = append(env, "DHCP=Y")
	} else {
		if in.VM.Extended.Gateway != "" {
			env = append(env, "GATEWAY="+in.VM.Extended.Gateway)
		}
		if in.VM.Extended.DNS != "" {
			env = append(env, "DNS="+in.VM.Extended.DNS)
		}
	}
	if in.VM.Extended.Language != "" {
		env = append(env, "LANGUAGE="+in.VM.Extended.Language)
	}
	if in.VM.Extended.Keyboard != "" {
		env = append(env, "KEYBOARD="+in.VM.Extended.Keyboard)
	}
	if in.VM.Extended.Region != "" {
		env = append(env, "REGION="+in.VM.Extended.Region)
	}
	if in.VM.Extended.Manual {
		env = append(env, "MANUAL=Y")
	}
	display := "none"
	if in.VM.Extended.Display == types.DisplayModeDesktop {
		display = "web"
	}
	env = append(env, "DISPLAY="+display)
	if hasKVM() {
		env = append(env, "KVM=Y")
	} else {
		env = append(env, "KVM=N")
	}
	spec.Env = env

	if hasKVM() {
		spec.Devices = append(spec.Devices, kvmDevicePath)
	}

	spec.Mounts = vmMounts(s, in)

	if in.Template.PostInstallScript != "" {
		oemDir, err := s.writeOEMDir(in)
		if err != nil {
			return runtime.ContainerSpec{}, fmt.Errorf("synthesize OEM directory: %w", err)
		}
		spec.Mounts = append(spec.Mounts, runtime.Mount{Source: oemDir, Destination: "/oem", ReadOnly: true})
	}

	if in.VM.Extended.Display == types.DisplayModeDesktop {
		for k, v := range desktopLabels(in.VM.ID, desktopFamily{port: 8006, scheme: "http"}) {
			spec.Labels[k] = v
		}
	}

	return spec, nil
}

// writeOEMDir renders the template's post-install script as install.bat
// inside a per-VM OEM directory under its storage root, which dockur's
// Windows image runs automatically once Windows setup completes.
func (s *Synthesizer) writeOEMDir(in Input) (string, error) {
	oemDir := filepath.Join(in.StorageDir, "..", "oem")
	if err := os.MkdirAll(oemDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(oemDir, "install.bat")
	if err := os.WriteFile(path, []byte(in.Template.PostInstallScript), 0644); err != nil {
		return "", err
	}
	return oemDir, nil
}
