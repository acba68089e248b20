/*
Package events provides cyroid's range event journal: a Broker for live
fan-out and a Journal that persists each event through pkg/repository
before broadcasting it, so the on-disk log never lags what a live
subscriber has already observed.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	journal := events.NewJournal(repo, broker)
	err := journal.Record(rangeID, vmID, types.EventVMStarted, "vm started", nil)

	sub := journal.Subscribe()
	defer journal.Unsubscribe(sub)
	for evt := range sub {
		...
	}

Publish never blocks on a slow subscriber: each subscriber has a bounded
buffer and a full buffer drops the event for that subscriber only.
*/
package events
