package synth

import (
	"github.com/cyroid/cyroid/pkg/runtime"
	"github.com/cyroid/cyroid/pkg/types"
)

// synthesizeContainer builds the plain-container family (mode 1): no
// special env, unprivileged, reverse-proxy labels only when the VM is
// desktop-mode and its base image matches a recognized family.
func (s *Synthesizer) synthesizeContainer(in Input) runtime.ContainerSpec {
	spec := baseSpec(in)
	spec.Image = in.Template.BaseImage
	spec.Privileged = false

	if in.VM.Extended.Display == types.DisplayModeDesktop {
		if fam, ok := detectDesktopFamily(in.Template.BaseImage); ok {
			for k, v := range desktopLabels(in.VM.ID, fam) {
				spec.Labels[k] = v
			}
		}
	}

	return spec
}
