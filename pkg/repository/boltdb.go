package repository

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/cyroid/cyroid/pkg/cyerr"
	"github.com/cyroid/cyroid/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketPrincipals        = []byte("principals")
	bucketRanges            = []byte("ranges")
	bucketNetworks          = []byte("networks")
	bucketVMTemplates       = []byte("vm_templates")
	bucketVMs               = []byte("vms")
	bucketSnapshots         = []byte("snapshots")
	bucketArtifacts         = []byte("artifacts")
	bucketArtifactPlacement = []byte("artifact_placements")
	bucketMSELs             = []byte("msels")
	bucketInjects           = []byte("injects")
	bucketResourceTags      = []byte("resource_tags")
	bucketEventLog          = []byte("event_log")
	bucketConnections       = []byte("connections")
	bucketCA                = []byte("ca")
)

var allBuckets = [][]byte{
	bucketPrincipals, bucketRanges, bucketNetworks, bucketVMTemplates,
	bucketVMs, bucketSnapshots, bucketArtifacts, bucketArtifactPlacement,
	bucketMSELs, bucketInjects, bucketResourceTags, bucketEventLog,
	bucketConnections, bucketCA,
}

// caKey is the single key under which the serialized CA blob lives.
var caKey = []byte("root")

// BoltRepository implements Repository using BoltDB.
type BoltRepository struct {
	db *bolt.DB
}

// NewBoltRepository opens (creating if absent) a BoltDB-backed repository
// rooted at dataDir/cyroid.db.
func NewBoltRepository(dataDir string) (*BoltRepository, error) {
	dbPath := filepath.Join(dataDir, "cyroid.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltRepository{db: db}, nil
}

func (s *BoltRepository) Close() error {
	return s.db.Close()
}

func put(tx *bolt.Tx, bucket []byte, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

func get[T any](tx *bolt.Tx, bucket []byte, key string, kind string) (*T, error) {
	data := tx.Bucket(bucket).Get([]byte(key))
	if data == nil {
		return nil, cyerr.NotFound("%s %s not found", kind, key)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func list[T any](tx *bolt.Tx, bucket []byte, filter func(*T) bool) ([]*T, error) {
	var out []*T
	err := tx.Bucket(bucket).ForEach(func(_, v []byte) error {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return err
		}
		if filter == nil || filter(&item) {
			out = append(out, &item)
		}
		return nil
	})
	return out, err
}

// paginate slices a slice already sorted in the caller's desired order,
// skipping offset entries and returning at most limit (limit <= 0 means
// unbounded).
func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// --- Principals ---

func (s *BoltRepository) CreatePrincipal(p *types.Principal) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketPrincipals, p.ID, p) })
}

func (s *BoltRepository) GetPrincipal(id string) (*types.Principal, error) {
	var p *types.Principal
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		p, err = get[types.Principal](tx, bucketPrincipals, id, "principal")
		return err
	})
	return p, err
}

func (s *BoltRepository) ListPrincipals() ([]*types.Principal, error) {
	var out []*types.Principal
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		out, err = list[types.Principal](tx, bucketPrincipals, nil)
		return err
	})
	return out, err
}

func (s *BoltRepository) UpdatePrincipal(p *types.Principal) error { return s.CreatePrincipal(p) }

func (s *BoltRepository) DeletePrincipal(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketPrincipals).Delete([]byte(id)) })
}

// --- Ranges ---

func (s *BoltRepository) CreateRange(r *types.Range) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketRanges, r.ID, r) })
}

func (s *BoltRepository) GetRange(id string) (*types.Range, error) {
	var r *types.Range
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		r, err = get[types.Range](tx, bucketRanges, id, "range")
		return err
	})
	return r, err
}

func (s *BoltRepository) ListRanges() ([]*types.Range, error) {
	var out []*types.Range
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		out, err = list[types.Range](tx, bucketRanges, nil)
		return err
	})
	return out, err
}

func (s *BoltRepository) ListRangesByOwner(ownerID string) ([]*types.Range, error) {
	var out []*types.Range
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		out, err = list[types.Range](tx, bucketRanges, func(r *types.Range) bool { return r.OwnerID == ownerID })
		return err
	})
	return out, err
}

func (s *BoltRepository) UpdateRange(r *types.Range) error { return s.CreateRange(r) }

func (s *BoltRepository) DeleteRange(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketRanges).Delete([]byte(id)) })
}

// --- Networks ---

func (s *BoltRepository) CreateNetwork(n *types.Network) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketNetworks, n.ID, n) })
}

func (s *BoltRepository) GetNetwork(id string) (*types.Network, error) {
	var n *types.Network
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		n, err = get[types.Network](tx, bucketNetworks, id, "network")
		return err
	})
	return n, err
}

func (s *BoltRepository) ListNetworks() ([]*types.Network, error) {
	var out []*types.Network
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		out, err = list[types.Network](tx, bucketNetworks, nil)
		return err
	})
	return out, err
}

func (s *BoltRepository) ListNetworksByRange(rangeID string) ([]*types.Network, error) {
	var out []*types.Network
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		out, err = list[types.Network](tx, bucketNetworks, func(n *types.Network) bool { return n.RangeID == rangeID })
		return err
	})
	return out, err
}

func (s *BoltRepository) UpdateNetwork(n *types.Network) error { return s.CreateNetwork(n) }

func (s *BoltRepository) DeleteNetwork(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketNetworks).Delete([]byte(id)) })
}

// --- VM templates ---

func (s *BoltRepository) CreateVMTemplate(t *types.VMTemplate) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketVMTemplates, t.ID, t) })
}

func (s *BoltRepository) GetVMTemplate(id string) (*types.VMTemplate, error) {
	var t *types.VMTemplate
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		t, err = get[types.VMTemplate](tx, bucketVMTemplates, id, "vm template")
		return err
	})
	return t, err
}

func (s *BoltRepository) ListVMTemplates() ([]*types.VMTemplate, error) {
	var out []*types.VMTemplate
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		out, err = list[types.VMTemplate](tx, bucketVMTemplates, nil)
		return err
	})
	return out, err
}

func (s *BoltRepository) UpdateVMTemplate(t *types.VMTemplate) error { return s.CreateVMTemplate(t) }

func (s *BoltRepository) DeleteVMTemplate(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketVMTemplates).Delete([]byte(id)) })
}

// --- VMs ---

func (s *BoltRepository) CreateVM(v *types.VM) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketVMs, v.ID, v) })
}

func (s *BoltRepository) GetVM(id string) (*types.VM, error) {
	var v *types.VM
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		v, err = get[types.VM](tx, bucketVMs, id, "vm")
		return err
	})
	return v, err
}

func (s *BoltRepository) ListVMs() ([]*types.VM, error) {
	var out []*types.VM
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		out, err = list[types.VM](tx, bucketVMs, nil)
		return err
	})
	return out, err
}

func (s *BoltRepository) ListVMsByRange(rangeID string) ([]*types.VM, error) {
	var out []*types.VM
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		out, err = list[types.VM](tx, bucketVMs, func(v *types.VM) bool { return v.RangeID == rangeID })
		return err
	})
	return out, err
}

func (s *BoltRepository) ListVMsByNetwork(networkID string) ([]*types.VM, error) {
	var out []*types.VM
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		out, err = list[types.VM](tx, bucketVMs, func(v *types.VM) bool { return v.NetworkID == networkID })
		return err
	})
	return out, err
}

func (s *BoltRepository) UpdateVM(v *types.VM) error { return s.CreateVM(v) }

func (s *BoltRepository) DeleteVM(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketVMs).Delete([]byte(id)) })
}

// --- Snapshots ---

func (s *BoltRepository) CreateSnapshot(sn *types.Snapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketSnapshots, sn.ID, sn) })
}

func (s *BoltRepository) GetSnapshot(id string) (*types.Snapshot, error) {
	var sn *types.Snapshot
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		sn, err = get[types.Snapshot](tx, bucketSnapshots, id, "snapshot")
		return err
	})
	return sn, err
}

func (s *BoltRepository) ListSnapshotsByVM(vmID string) ([]*types.Snapshot, error) {
	var out []*types.Snapshot
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		out, err = list[types.Snapshot](tx, bucketSnapshots, func(sn *types.Snapshot) bool { return sn.VMID == vmID })
		return err
	})
	return out, err
}

func (s *BoltRepository) DeleteSnapshot(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketSnapshots).Delete([]byte(id)) })
}

// --- Artifacts ---

func (s *BoltRepository) CreateArtifact(a *types.Artifact) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketArtifacts, a.ID, a) })
}

func (s *BoltRepository) GetArtifact(id string) (*types.Artifact, error) {
	var a *types.Artifact
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		a, err = get[types.Artifact](tx, bucketArtifacts, id, "artifact")
		return err
	})
	return a, err
}

func (s *BoltRepository) ListArtifacts() ([]*types.Artifact, error) {
	var out []*types.Artifact
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		out, err = list[types.Artifact](tx, bucketArtifacts, nil)
		return err
	})
	return out, err
}

func (s *BoltRepository) UpdateArtifact(a *types.Artifact) error { return s.CreateArtifact(a) }

func (s *BoltRepository) DeleteArtifact(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketArtifacts).Delete([]byte(id)) })
}

// --- Artifact placements ---

func (s *BoltRepository) CreateArtifactPlacement(p *types.ArtifactPlacement) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketArtifactPlacement, p.ID, p) })
}

func (s *BoltRepository) GetArtifactPlacement(id string) (*types.ArtifactPlacement, error) {
	var p *types.ArtifactPlacement
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		p, err = get[types.ArtifactPlacement](tx, bucketArtifactPlacement, id, "artifact placement")
		return err
	})
	return p, err
}

func (s *BoltRepository) ListArtifactPlacementsByVM(vmID string) ([]*types.ArtifactPlacement, error) {
	var out []*types.ArtifactPlacement
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		out, err = list[types.ArtifactPlacement](tx, bucketArtifactPlacement, func(p *types.ArtifactPlacement) bool { return p.VMID == vmID })
		return err
	})
	return out, err
}

func (s *BoltRepository) UpdateArtifactPlacement(p *types.ArtifactPlacement) error {
	return s.CreateArtifactPlacement(p)
}

func (s *BoltRepository) DeleteArtifactPlacement(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketArtifactPlacement).Delete([]byte(id)) })
}

// --- MSELs and Injects ---

func (s *BoltRepository) CreateMSEL(m *types.MSEL) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketMSELs, m.ID, m) })
}

func (s *BoltRepository) GetMSEL(id string) (*types.MSEL, error) {
	var m *types.MSEL
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		m, err = get[types.MSEL](tx, bucketMSELs, id, "msel")
		return err
	})
	return m, err
}

func (s *BoltRepository) GetMSELByRange(rangeID string) (*types.MSEL, error) {
	var found *types.MSEL
	err := s.db.View(func(tx *bolt.Tx) error {
		out, err := list[types.MSEL](tx, bucketMSELs, func(m *types.MSEL) bool { return m.RangeID == rangeID })
		if err != nil {
			return err
		}
		if len(out) > 0 {
			found = out[0]
		}
		return nil
	})
	if err == nil && found == nil {
		return nil, cyerr.NotFound("msel for range %s not found", rangeID)
	}
	return found, err
}

func (s *BoltRepository) DeleteMSEL(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketMSELs).Delete([]byte(id)) })
}

func (s *BoltRepository) CreateInject(i *types.Inject) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketInjects, i.ID, i) })
}

func (s *BoltRepository) GetInject(id string) (*types.Inject, error) {
	var i *types.Inject
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		i, err = get[types.Inject](tx, bucketInjects, id, "inject")
		return err
	})
	return i, err
}

func (s *BoltRepository) ListInjectsByMSEL(mselID string) ([]*types.Inject, error) {
	var out []*types.Inject
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		out, err = list[types.Inject](tx, bucketInjects, func(i *types.Inject) bool { return i.MSELID == mselID })
		return err
	})
	sort.Slice(out, func(a, b int) bool { return out[a].Sequence < out[b].Sequence })
	return out, err
}

func (s *BoltRepository) UpdateInject(i *types.Inject) error { return s.CreateInject(i) }

func (s *BoltRepository) DeleteInject(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketInjects).Delete([]byte(id)) })
}

// --- Resource tags ---

func resourceTagKey(kind types.ResourceKind, resourceID, tag string) string {
	return fmt.Sprintf("%s/%s/%s", kind, resourceID, tag)
}

func (s *BoltRepository) CreateResourceTag(t *types.ResourceTag) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketResourceTags, resourceTagKey(t.ResourceKind, t.ResourceID, t.Tag), t)
	})
}

func (s *BoltRepository) ListResourceTags(kind types.ResourceKind, resourceID string) ([]*types.ResourceTag, error) {
	var out []*types.ResourceTag
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		out, err = list[types.ResourceTag](tx, bucketResourceTags, func(t *types.ResourceTag) bool {
			return t.ResourceKind == kind && t.ResourceID == resourceID
		})
		return err
	})
	return out, err
}

func (s *BoltRepository) DeleteResourceTag(kind types.ResourceKind, resourceID string, tag string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResourceTags).Delete([]byte(resourceTagKey(kind, resourceID, tag)))
	})
}

// --- Event log ---

func (s *BoltRepository) AppendEventLogEntry(e *types.EventLogEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		key := fmt.Sprintf("%s/%020d", e.RangeID, e.Timestamp.UnixNano())
		return put(tx, bucketEventLog, key, e)
	})
}

func (s *BoltRepository) ListEventLogByRange(rangeID string, kind types.EventKind, limit, offset int) ([]*types.EventLogEntry, error) {
	var out []*types.EventLogEntry
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		out, err = list[types.EventLogEntry](tx, bucketEventLog, func(e *types.EventLogEntry) bool {
			if e.RangeID != rangeID {
				return false
			}
			if kind != "" && e.Kind != kind {
				return false
			}
			return true
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Timestamp.After(out[b].Timestamp) })
	return paginate(out, limit, offset), nil
}

// --- Connections ---

func (s *BoltRepository) CreateConnection(c *types.Connection) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketConnections, c.ID, c) })
}

func (s *BoltRepository) UpdateConnection(c *types.Connection) error { return s.CreateConnection(c) }

func (s *BoltRepository) ListConnectionsByRange(rangeID string, protocol types.ConnectionProtocol, limit, offset int) ([]*types.Connection, error) {
	var out []*types.Connection
	err := s.db.View(func(tx *bolt.Tx) (err error) {
		out, err = list[types.Connection](tx, bucketConnections, func(c *types.Connection) bool {
			if c.RangeID != rangeID {
				return false
			}
			if protocol != "" && c.Protocol != protocol {
				return false
			}
			return true
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(a, b int) bool { return out[a].StartedAt.After(out[b].StartedAt) })
	return paginate(out, limit, offset), nil
}

// --- CA ---

func (s *BoltRepository) GetCA() ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCA).Get(caKey)
		if v == nil {
			return cyerr.NotFound("ca not found")
		}
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

func (s *BoltRepository) SaveCA(data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketCA).Put(caKey, data) })
}
