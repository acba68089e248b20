package types

import (
	"net"
	"time"
)

// Principal is the authenticated subject of a request: identity, roles, tags.
type Principal struct {
	ID            string
	Roles         []string
	Tags          []string
	Approved      bool
	Active        bool
	ResetRequired bool
}

// HasRole reports whether the principal carries the given role.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal has the admin role, which
// bypasses the tag filter. HasRole does not treat admin as carrying any
// other role.
func (p *Principal) IsAdmin() bool {
	return p.HasRole("admin")
}

// CanAct reports whether the principal is allowed to act at all.
func (p *Principal) CanAct() bool {
	return p.Approved && p.Active
}

// ResourceKind names an entity kind that can carry visibility tags.
type ResourceKind string

const (
	ResourceKindRange    ResourceKind = "range"
	ResourceKindTemplate ResourceKind = "template"
	ResourceKindArtifact ResourceKind = "artifact"
)

// ResourceTag is a (kind, id, tag) visibility marker. Absence of any tag
// for a resource means it is public within the installation.
type ResourceTag struct {
	ResourceKind ResourceKind
	ResourceID   string
	Tag          string
}

// RangeStatus is the lifecycle state of a Range.
type RangeStatus string

const (
	RangeStatusDraft     RangeStatus = "draft"
	RangeStatusDeploying RangeStatus = "deploying"
	RangeStatusRunning   RangeStatus = "running"
	RangeStatusStopped   RangeStatus = "stopped"
	RangeStatusArchived  RangeStatus = "archived"
	RangeStatusError     RangeStatus = "error"
)

// Range is a named, isolated multi-network environment composed of VMs.
type Range struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	Status      RangeStatus
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsolationLevel controls a network's egress posture.
type IsolationLevel string

const (
	IsolationComplete   IsolationLevel = "complete"
	IsolationControlled IsolationLevel = "controlled"
	IsolationOpen       IsolationLevel = "open"
)

// Network is an L2/L3 segment owned by exactly one Range.
type Network struct {
	ID            string
	RangeID       string
	Name          string
	CIDR          string
	Gateway       string
	DNS           []string
	Isolation     IsolationLevel
	RuntimeHandle string // opaque container-engine network id; empty if unprovisioned
	CreatedAt     time.Time
}

// OSKind is the operating system family a VMTemplate boots.
type OSKind string

const (
	OSKindLinux   OSKind = "linux"
	OSKindWindows OSKind = "windows"
	OSKindCustom  OSKind = "custom"
)

// VMType determines which of the synthesizer's three modes applies.
type VMType string

const (
	VMTypeContainer VMType = "container"
	VMTypeLinuxVM   VMType = "linux_vm"
	VMTypeWindowsVM VMType = "windows_vm"
)

// VMTemplate is a reusable recipe for creating VMs.
type VMTemplate struct {
	ID                string
	Name              string
	OSKind            OSKind
	Variant           string
	BaseImage         string
	VMType            VMType
	DefaultCPU        int
	DefaultRAMMB      int
	DefaultDiskGB     int
	PostInstallScript string
	GoldenImagePath   string
	CachedISOPath     string
	Tags              []string
	OwnerID           string
	CreatedAt         time.Time
}

// VMStatus is the lifecycle state of a VM.
type VMStatus string

const (
	VMStatusPending  VMStatus = "pending"
	VMStatusCreating VMStatus = "creating"
	VMStatusRunning  VMStatus = "running"
	VMStatusStopped  VMStatus = "stopped"
	VMStatusError    VMStatus = "error"
)

// DisplayMode selects a VM's desktop/server presentation.
type DisplayMode string

const (
	DisplayModeDesktop DisplayMode = "desktop"
	DisplayModeServer  DisplayMode = "server"
)

// ExtendedVMConfig carries the VM-in-container specifics that don't apply
// to plain containers: extra disks, shared folders, Windows locale.
type ExtendedVMConfig struct {
	Disk2GB      int
	Disk3GB      int
	SharedFolder string
	Language     string
	Keyboard     string
	Region       string
	Display      DisplayMode

	// Windows-VM-in-container setup overrides (mode 3 only).
	Username string
	Password string
	DHCP     bool
	Gateway  string
	DNS      string
	Manual   bool
}

// VM is a unit of compute attached to one primary network.
type VM struct {
	ID            string
	RangeID       string
	NetworkID     string
	TemplateID    string
	Hostname      string
	PrimaryIP     string
	CPU           int
	RAMMB         int
	DiskGB        int
	Status        VMStatus
	RuntimeHandle string // container id; present iff Status in {Creating,Running,Stopped}
	Extended      ExtendedVMConfig
	PositionX     int
	PositionY     int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Snapshot is a committed container image taken from a running VM. Its
// lifetime is independent of the source VM.
type Snapshot struct {
	ID          string
	VMID        string
	Name        string
	Description string
	ImageID     string
	CreatedAt   time.Time
}

// ArtifactKind classifies an uploaded file.
type ArtifactKind string

const (
	ArtifactKindExecutable ArtifactKind = "executable"
	ArtifactKindScript     ArtifactKind = "script"
	ArtifactKindDocument   ArtifactKind = "document"
	ArtifactKindArchive    ArtifactKind = "archive"
	ArtifactKindConfig     ArtifactKind = "config"
	ArtifactKindOther      ArtifactKind = "other"
)

// ArtifactIndicator flags an artifact's handling sensitivity.
type ArtifactIndicator string

const (
	ArtifactIndicatorSafe       ArtifactIndicator = "safe"
	ArtifactIndicatorSuspicious ArtifactIndicator = "suspicious"
	ArtifactIndicatorMalicious  ArtifactIndicator = "malicious"
)

// Artifact points at a blob held in the external content-addressed store.
type Artifact struct {
	ID         string
	Name       string
	BlobPath   string
	SHA256     string
	SizeBytes  int64
	Kind       ArtifactKind
	Indicator  ArtifactIndicator
	TTPs       []string
	Tags       []string
	UploaderID string
	CreatedAt  time.Time
}

// PlacementStatus is the lifecycle of an ArtifactPlacement.
type PlacementStatus string

const (
	PlacementStatusPending    PlacementStatus = "pending"
	PlacementStatusInProgress PlacementStatus = "in_progress"
	PlacementStatusPlaced     PlacementStatus = "placed"
	PlacementStatusVerified   PlacementStatus = "verified"
	PlacementStatusFailed     PlacementStatus = "failed"
)

// ArtifactPlacement records the copy of one artifact onto one VM.
type ArtifactPlacement struct {
	ID         string
	ArtifactID string
	VMID       string
	TargetPath string
	Status     PlacementStatus
	Error      string
	UpdatedAt  time.Time
}

// MSEL is a range's Master Scenario Events List: a parsed timeline of Injects.
type MSEL struct {
	ID      string
	RangeID string
	Name    string
	RawText string
}

// InjectStatus is the lifecycle of a scheduled scenario event.
type InjectStatus string

const (
	InjectStatusPending   InjectStatus = "pending"
	InjectStatusExecuting InjectStatus = "executing"
	InjectStatusCompleted InjectStatus = "completed"
	InjectStatusFailed    InjectStatus = "failed"
	InjectStatusSkipped   InjectStatus = "skipped"
)

// ActionKind distinguishes the two action shapes an Inject can carry.
type ActionKind string

const (
	ActionKindRunCommand ActionKind = "run_command"
	ActionKindPlaceFile  ActionKind = "place_file"
)

// Action is one step of an Inject. Exactly the fields for its Kind are set;
// parsing rejects unknown kinds rather than passing them through.
type Action struct {
	Kind           ActionKind
	TargetHostname string
	Command        string // set iff Kind == ActionKindRunCommand
	Filename       string // set iff Kind == ActionKindPlaceFile
	TargetPath     string // set iff Kind == ActionKindPlaceFile
}

// ActionResult records the outcome of executing one Action.
type ActionResult struct {
	Action   Action
	Success  bool
	ExitCode int
	Output   string
	Error    string
}

// Inject is a single timed scenario event within an MSEL.
type Inject struct {
	ID                string
	MSELID            string
	Sequence          int
	InjectTimeMinutes int
	Title             string
	Description       string
	Actions           []Action
	Status            InjectStatus
	ExecutedAt        time.Time
	ExecutionLog      string
}

// EventKind enumerates the journal's recognized event kinds.
type EventKind string

const (
	EventRangeDeployed    EventKind = "RANGE_DEPLOYED"
	EventRangeStarted     EventKind = "RANGE_STARTED"
	EventRangeStopped     EventKind = "RANGE_STOPPED"
	EventRangeTeardown    EventKind = "RANGE_TEARDOWN"
	EventVMCreated        EventKind = "VM_CREATED"
	EventVMStarted        EventKind = "VM_STARTED"
	EventVMStopped        EventKind = "VM_STOPPED"
	EventVMRestarted      EventKind = "VM_RESTARTED"
	EventVMError          EventKind = "VM_ERROR"
	EventSnapshotCreated  EventKind = "SNAPSHOT_CREATED"
	EventSnapshotRestored EventKind = "SNAPSHOT_RESTORED"
	EventArtifactPlaced   EventKind = "ARTIFACT_PLACED"
	EventInjectExecuted   EventKind = "INJECT_EXECUTED"
	EventInjectFailed     EventKind = "INJECT_FAILED"
	EventConnectionOpened EventKind = "CONNECTION_ESTABLISHED"
	EventConnectionClosed EventKind = "CONNECTION_CLOSED"
)

// EventLogEntry is one append-only journal row.
type EventLogEntry struct {
	ID        string
	RangeID   string
	VMID      string // optional
	Kind      EventKind
	Message   string
	Extra     map[string]string
	Timestamp time.Time
}

// ConnectionProtocol is the transport protocol of an observed Connection.
type ConnectionProtocol string

const (
	ConnectionProtocolTCP  ConnectionProtocol = "tcp"
	ConnectionProtocolUDP  ConnectionProtocol = "udp"
	ConnectionProtocolICMP ConnectionProtocol = "icmp"
)

// ConnectionState is the observed state of a Connection.
type ConnectionState string

const (
	ConnectionStateEstablished ConnectionState = "established"
	ConnectionStateClosed      ConnectionState = "closed"
	ConnectionStateTimeout     ConnectionState = "timeout"
	ConnectionStateReset       ConnectionState = "reset"
)

// Connection is a flow record written by an external probe.
type Connection struct {
	ID        string
	RangeID   string
	SrcVMID   string // optional
	DstVMID   string // optional
	SrcIP     net.IP
	SrcPort   int
	DstIP     net.IP
	DstPort   int
	Protocol  ConnectionProtocol
	State     ConnectionState
	BytesSent int64
	BytesRecv int64
	StartedAt time.Time
	EndedAt   time.Time
}
