package volume

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultStorageRoot is the base directory for per-VM persistent storage
// when no vm_storage_dir is configured.
const DefaultStorageRoot = "/var/lib/cyroid/vms"

// Store manages the on-disk persistent storage directory bind-mounted
// into a VM's container at {vm_storage_dir}/{range_id}/{vm_id}/storage.
// This directory survives VM stop/start and range teardown; it is
// removed only by Delete or DeleteRange.
type Store struct {
	root string
}

// NewStore creates a volume store rooted at root. An empty root falls
// back to DefaultStorageRoot.
func NewStore(root string) (*Store, error) {
	if root == "" {
		root = DefaultStorageRoot
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create volume store root: %w", err)
	}

	return &Store{root: root}, nil
}

// Path returns the storage directory for a VM without creating it or any
// of its parents; Create makes it.
func (s *Store) Path(rangeID, vmID string) string {
	return filepath.Join(s.root, rangeID, vmID, "storage")
}

// Create ensures the VM's storage directory exists and returns its path.
func (s *Store) Create(rangeID, vmID string) (string, error) {
	path := s.Path(rangeID, vmID)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create VM storage directory: %w", err)
	}
	return path, nil
}

// Delete removes a VM's storage directory and all contents.
func (s *Store) Delete(rangeID, vmID string) error {
	path := s.Path(rangeID, vmID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete VM storage directory: %w", err)
	}
	return nil
}

// DeleteRange removes every VM's storage directory under a range, used
// when the whole range is torn down.
func (s *Store) DeleteRange(rangeID string) error {
	path := filepath.Join(s.root, rangeID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete range storage directory: %w", err)
	}
	return nil
}

// Exists reports whether a VM's storage directory has already been
// created.
func (s *Store) Exists(rangeID, vmID string) bool {
	_, err := os.Stat(s.Path(rangeID, vmID))
	return err == nil
}
