package orchestrator

import "github.com/cyroid/cyroid/pkg/types"

// Clone creates a new Range, new Networks (same CIDRs — clones are not
// meant to be deployed concurrently with their source without subnet
// reassignment), and new VMs referencing the same templates. Runtime
// handles and resource tags are never copied.
func (o *Orchestrator) Clone(rangeID, newName, ownerID string) (*types.Range, error) {
	src, err := o.repo.GetRange(rangeID)
	if err != nil {
		return nil, err
	}

	clone := &types.Range{
		ID:          newID(),
		Name:        newName,
		Description: src.Description,
		OwnerID:     ownerID,
		Status:      types.RangeStatusDraft,
		CreatedAt:   now(),
		UpdatedAt:   now(),
	}
	if err := o.repo.CreateRange(clone); err != nil {
		return nil, err
	}

	networks, err := o.repo.ListNetworksByRange(rangeID)
	if err != nil {
		return nil, err
	}
	networkIDMap := make(map[string]string, len(networks))
	for _, n := range networks {
		cloneNet := &types.Network{
			ID:        newID(),
			RangeID:   clone.ID,
			Name:      n.Name,
			CIDR:      n.CIDR,
			Gateway:   n.Gateway,
			DNS:       append([]string(nil), n.DNS...),
			Isolation: n.Isolation,
			CreatedAt: now(),
		}
		if err := o.repo.CreateNetwork(cloneNet); err != nil {
			return nil, err
		}
		networkIDMap[n.ID] = cloneNet.ID
	}

	vms, err := o.repo.ListVMsByRange(rangeID)
	if err != nil {
		return nil, err
	}
	for _, vm := range vms {
		cloneVM := &types.VM{
			ID:         newID(),
			RangeID:    clone.ID,
			NetworkID:  networkIDMap[vm.NetworkID],
			TemplateID: vm.TemplateID,
			Hostname:   vm.Hostname,
			PrimaryIP:  vm.PrimaryIP,
			CPU:        vm.CPU,
			RAMMB:      vm.RAMMB,
			DiskGB:     vm.DiskGB,
			Status:     types.VMStatusPending,
			Extended:   vm.Extended,
			PositionX:  vm.PositionX,
			PositionY:  vm.PositionY,
			CreatedAt:  now(),
			UpdatedAt:  now(),
		}
		if err := o.repo.CreateVM(cloneVM); err != nil {
			return nil, err
		}
	}

	return clone, nil
}
