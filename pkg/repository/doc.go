/*
Package repository provides BoltDB-backed persistence for cyroid's range
state: principals, ranges, networks, VM templates, VMs, snapshots,
artifacts, placements, MSELs, injects, resource tags, the event log, and
connection records.

One bucket per entity kind, JSON-marshaled values, ID (or a composite key
for the event log and resource tags) as the bucket key. Create and Update
share the same upsert; Delete is idempotent. List-by-X filters scan the
full bucket in memory — entity counts in a single range orchestrator are
small enough that secondary indexes aren't worth the complexity.

	repo, err := repository.NewBoltRepository(dataDir)
	defer repo.Close()

	r := &types.Range{ID: id, Name: "phishing-101", Status: types.RangeStatusDraft}
	err = repo.CreateRange(r)
*/
package repository
