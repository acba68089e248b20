package events

import (
	"time"

	"github.com/cyroid/cyroid/pkg/repository"
	"github.com/cyroid/cyroid/pkg/types"
	"github.com/google/uuid"
)

// Journal wraps a Broker with synchronous persistence: every event is
// written to the repository before being broadcast to live subscribers,
// so the journal on disk never lags what a client has already seen.
type Journal struct {
	broker *Broker
	repo   repository.Repository
}

// NewJournal creates a Journal over repo, broadcasting through broker.
func NewJournal(repo repository.Repository, broker *Broker) *Journal {
	return &Journal{broker: broker, repo: repo}
}

// Record persists and broadcasts a new event. The Timestamp and ID are
// assigned here if unset.
func (j *Journal) Record(rangeID, vmID string, kind types.EventKind, message string, extra map[string]string) error {
	evt := &Event{
		ID:      uuid.NewString(),
		RangeID: rangeID,
		VMID:    vmID,
		Kind:    kind,
		Message: message,
		Extra:   extra,
	}

	entry := &types.EventLogEntry{
		ID:        evt.ID,
		RangeID:   evt.RangeID,
		VMID:      evt.VMID,
		Kind:      evt.Kind,
		Message:   evt.Message,
		Extra:     evt.Extra,
		Timestamp: time.Now(),
	}
	if err := j.repo.AppendEventLogEntry(entry); err != nil {
		return err
	}
	evt.Timestamp = entry.Timestamp

	j.broker.Publish(evt)
	return nil
}

// Subscribe exposes the underlying broker's live fan-out.
func (j *Journal) Subscribe() Subscriber {
	return j.broker.Subscribe()
}

// Unsubscribe removes a subscription created by Subscribe.
func (j *Journal) Unsubscribe(sub Subscriber) {
	j.broker.Unsubscribe(sub)
}

// History returns a range's event log, newest first. kind filters to a
// single event kind when non-empty.
func (j *Journal) History(rangeID string, kind types.EventKind, limit, offset int) ([]*types.EventLogEntry, error) {
	return j.repo.ListEventLogByRange(rangeID, kind, limit, offset)
}
