package orchestrator

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.NewString()
}

func now() time.Time {
	return time.Now()
}

// snapshotImageTag renders the spec's naming scheme:
// cyroid-snapshot-{vm_id}-{snapshot_name}, lowercased with spaces turned
// into hyphens.
func snapshotImageTag(vmID, name string) string {
	sanitized := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	return "cyroid-snapshot-" + strings.ToLower(vmID) + "-" + sanitized
}
