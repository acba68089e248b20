package orchestrator

import "github.com/cyroid/cyroid/pkg/types"

const blueprintVersion = "1.0"

// BlueprintNetwork is one network entry in a range blueprint.
type BlueprintNetwork struct {
	Name      string `json:"name"`
	Subnet    string `json:"subnet"`
	Gateway   string `json:"gateway"`
	Isolation string `json:"isolation_level"`
}

// BlueprintVM is one VM entry in a range blueprint, referencing its
// network and template by name rather than id so blueprints are
// portable across installations.
type BlueprintVM struct {
	Hostname     string `json:"hostname"`
	IPAddress    string `json:"ip_address"`
	NetworkName  string `json:"network_name"`
	TemplateName string `json:"template_name"`
	CPU          int    `json:"cpu"`
	RAMMB        int    `json:"ram_mb"`
	DiskGB       int    `json:"disk_gb"`
	PositionX    int    `json:"position_x"`
	PositionY    int    `json:"position_y"`
}

// Blueprint is the declarative export/import document of §6.
type Blueprint struct {
	Version     string             `json:"version"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Networks    []BlueprintNetwork `json:"networks"`
	VMs         []BlueprintVM      `json:"vms"`
}

// Export renders rangeID as a Blueprint: networks and VMs named rather
// than id-referenced, no runtime handles, no resource tags.
func (o *Orchestrator) Export(rangeID string) (*Blueprint, error) {
	rng, err := o.repo.GetRange(rangeID)
	if err != nil {
		return nil, err
	}

	networks, err := o.repo.ListNetworksByRange(rangeID)
	if err != nil {
		return nil, err
	}
	networkNames := make(map[string]string, len(networks))
	bp := &Blueprint{Version: blueprintVersion, Name: rng.Name, Description: rng.Description}
	for _, n := range networks {
		networkNames[n.ID] = n.Name
		bp.Networks = append(bp.Networks, BlueprintNetwork{
			Name: n.Name, Subnet: n.CIDR, Gateway: n.Gateway, Isolation: string(n.Isolation),
		})
	}

	vms, err := o.repo.ListVMsByRange(rangeID)
	if err != nil {
		return nil, err
	}
	for _, vm := range vms {
		tmpl, err := o.repo.GetVMTemplate(vm.TemplateID)
		if err != nil {
			return nil, err
		}
		bp.VMs = append(bp.VMs, BlueprintVM{
			Hostname: vm.Hostname, IPAddress: vm.PrimaryIP,
			NetworkName: networkNames[vm.NetworkID], TemplateName: tmpl.Name,
			CPU: vm.CPU, RAMMB: vm.RAMMB, DiskGB: vm.DiskGB,
			PositionX: vm.PositionX, PositionY: vm.PositionY,
		})
	}

	return bp, nil
}

// Import creates a new Draft range from bp, owned by ownerID. Network
// names resolve to new Network rows within the created range; VM
// template names resolve against the full template catalog — a VM whose
// template name is not found is logged and skipped rather than failing
// the whole import.
func (o *Orchestrator) Import(bp *Blueprint, ownerID string) (*types.Range, []string, error) {
	rng := &types.Range{
		ID: newID(), Name: bp.Name, Description: bp.Description,
		OwnerID: ownerID, Status: types.RangeStatusDraft,
		CreatedAt: now(), UpdatedAt: now(),
	}
	if err := o.repo.CreateRange(rng); err != nil {
		return nil, nil, err
	}

	networkIDs := make(map[string]string, len(bp.Networks))
	for _, bn := range bp.Networks {
		n := &types.Network{
			ID: newID(), RangeID: rng.ID, Name: bn.Name, CIDR: bn.Subnet,
			Gateway: bn.Gateway, Isolation: types.IsolationLevel(bn.Isolation), CreatedAt: now(),
		}
		if err := o.repo.CreateNetwork(n); err != nil {
			return nil, nil, err
		}
		networkIDs[bn.Name] = n.ID
	}

	templates, err := o.repo.ListVMTemplates()
	if err != nil {
		return nil, nil, err
	}
	templateIDs := make(map[string]string, len(templates))
	for _, t := range templates {
		templateIDs[t.Name] = t.ID
	}

	var skipped []string
	for _, bv := range bp.VMs {
		templateID, ok := templateIDs[bv.TemplateName]
		if !ok {
			o.logger.Warn().Str("hostname", bv.Hostname).Str("template_name", bv.TemplateName).
				Msg("blueprint import skipped vm: template not found")
			skipped = append(skipped, bv.Hostname)
			continue
		}
		vm := &types.VM{
			ID: newID(), RangeID: rng.ID, NetworkID: networkIDs[bv.NetworkName],
			TemplateID: templateID, Hostname: bv.Hostname, PrimaryIP: bv.IPAddress,
			CPU: bv.CPU, RAMMB: bv.RAMMB, DiskGB: bv.DiskGB, Status: types.VMStatusPending,
			PositionX: bv.PositionX, PositionY: bv.PositionY,
			CreatedAt: now(), UpdatedAt: now(),
		}
		if err := o.repo.CreateVM(vm); err != nil {
			return nil, nil, err
		}
	}

	return rng, skipped, nil
}
