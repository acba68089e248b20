/*
Package cache implements cyroid's image/ISO cache subsystem (spec
component C2): one in-process Manager tracking every in-flight image
pull and file download, enforcing at most one operation per key,
extracting archives with a largest-ISO-wins policy, and writing the
on-disk layout pkg/synth reads template boot media from:

	{root}/windows-isos/windows-{version}.iso
	{root}/linux-isos/{distro}.iso
	{root}/custom-isos/{sanitized-name}.iso (+ metadata.json sidecar)

A downloaded file is only visible at its final path once the transfer
(and any archive extraction) completes; a cancelled or failed download
leaves nothing there. Completed and failed entries stay visible to
Status for a few seconds before eviction so the caller that triggered
the operation can observe its own terminal state.

	mgr, _ := cache.NewManager(cfg.ISOCacheDir)
	key, _ := mgr.StartDownload(ctx, cache.DownloadKindLinux, "ubuntu", isoURL)
	status, _ := mgr.Status(key)
*/
package cache
