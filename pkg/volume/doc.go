/*
Package volume manages each VM's persistent storage directory on the host,
bind-mounted into its container at {vm_storage_dir}/{range_id}/{vm_id}/storage.
This directory is the one piece of VM state that survives a VM stop/start
cycle; pkg/orchestrator creates it when a VM is first deployed and does
not remove it, so it also survives range teardown. Delete and DeleteRange
remove it when called; nothing else in cyroid calls them.

	store, _ := volume.NewStore(cfg.VMStorageDir)
	path, _ := store.Create(rangeID, vmID)
*/
package volume
