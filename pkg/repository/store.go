// Package repository defines and implements cyroid's persistence layer:
// one bucket per entity, JSON-marshaled values, BoltDB-backed.
package repository

import (
	"github.com/cyroid/cyroid/pkg/types"
)

// Repository defines the interface for cyber-range state storage.
type Repository interface {
	// Principals
	CreatePrincipal(p *types.Principal) error
	GetPrincipal(id string) (*types.Principal, error)
	ListPrincipals() ([]*types.Principal, error)
	UpdatePrincipal(p *types.Principal) error
	DeletePrincipal(id string) error

	// Ranges
	CreateRange(r *types.Range) error
	GetRange(id string) (*types.Range, error)
	ListRanges() ([]*types.Range, error)
	ListRangesByOwner(ownerID string) ([]*types.Range, error)
	UpdateRange(r *types.Range) error
	DeleteRange(id string) error

	// Networks
	CreateNetwork(n *types.Network) error
	GetNetwork(id string) (*types.Network, error)
	ListNetworks() ([]*types.Network, error)
	ListNetworksByRange(rangeID string) ([]*types.Network, error)
	UpdateNetwork(n *types.Network) error
	DeleteNetwork(id string) error

	// VM templates
	CreateVMTemplate(t *types.VMTemplate) error
	GetVMTemplate(id string) (*types.VMTemplate, error)
	ListVMTemplates() ([]*types.VMTemplate, error)
	UpdateVMTemplate(t *types.VMTemplate) error
	DeleteVMTemplate(id string) error

	// VMs
	CreateVM(v *types.VM) error
	GetVM(id string) (*types.VM, error)
	ListVMs() ([]*types.VM, error)
	ListVMsByRange(rangeID string) ([]*types.VM, error)
	ListVMsByNetwork(networkID string) ([]*types.VM, error)
	UpdateVM(v *types.VM) error
	DeleteVM(id string) error

	// Snapshots
	CreateSnapshot(s *types.Snapshot) error
	GetSnapshot(id string) (*types.Snapshot, error)
	ListSnapshotsByVM(vmID string) ([]*types.Snapshot, error)
	DeleteSnapshot(id string) error

	// Artifacts
	CreateArtifact(a *types.Artifact) error
	GetArtifact(id string) (*types.Artifact, error)
	ListArtifacts() ([]*types.Artifact, error)
	UpdateArtifact(a *types.Artifact) error
	DeleteArtifact(id string) error

	// Artifact placements
	CreateArtifactPlacement(p *types.ArtifactPlacement) error
	GetArtifactPlacement(id string) (*types.ArtifactPlacement, error)
	ListArtifactPlacementsByVM(vmID string) ([]*types.ArtifactPlacement, error)
	UpdateArtifactPlacement(p *types.ArtifactPlacement) error
	DeleteArtifactPlacement(id string) error

	// MSELs and Injects
	CreateMSEL(m *types.MSEL) error
	GetMSEL(id string) (*types.MSEL, error)
	GetMSELByRange(rangeID string) (*types.MSEL, error)
	DeleteMSEL(id string) error

	CreateInject(i *types.Inject) error
	GetInject(id string) (*types.Inject, error)
	ListInjectsByMSEL(mselID string) ([]*types.Inject, error)
	UpdateInject(i *types.Inject) error
	DeleteInject(id string) error

	// Resource tags (ABAC visibility markers)
	CreateResourceTag(t *types.ResourceTag) error
	ListResourceTags(kind types.ResourceKind, resourceID string) ([]*types.ResourceTag, error)
	DeleteResourceTag(kind types.ResourceKind, resourceID string, tag string) error

	// Event log. kind filters to a single event kind when non-empty.
	// Listings are reverse-chronological (newest first); offset skips
	// that many of the newest matching entries before limit is applied.
	AppendEventLogEntry(e *types.EventLogEntry) error
	ListEventLogByRange(rangeID string, kind types.EventKind, limit, offset int) ([]*types.EventLogEntry, error)

	// Connections. protocol filters to a single protocol when non-empty;
	// listings are reverse-chronological by StartedAt with the same
	// (limit, offset) semantics as the event log.
	CreateConnection(c *types.Connection) error
	UpdateConnection(c *types.Connection) error
	ListConnectionsByRange(rangeID string, protocol types.ConnectionProtocol, limit, offset int) ([]*types.Connection, error)

	// CA holds the single serialized certificate authority blob used to
	// terminate TLS on session endpoints (pkg/security, pkg/session).
	GetCA() ([]byte, error)
	SaveCA(data []byte) error

	Close() error
}
