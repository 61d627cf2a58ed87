package store

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
)

// DefaultJournalBuffer is the number of events a Journal queues before it
// starts dropping.
const DefaultJournalBuffer = 1024

type eventKind int

const (
	eventAlertRaised eventKind = iota
	eventAlertAcked
	eventCommand
	eventMaintenance
)

type event struct {
	kind    eventKind
	alert   model.Alert
	command model.RelayCommand
	record  model.MaintenanceRecord
}

// Journal receives audit events from the engine and writes them to a Store
// on its own goroutine. Event methods never block: when the buffer is full
// the event is dropped and counted.
type Journal struct {
	store   *Store
	events  chan event
	dropped atomic.Int64
	written atomic.Int64
}

// NewJournal creates a Journal writing to s. size <= 0 uses
// DefaultJournalBuffer.
func NewJournal(s *Store, size int) *Journal {
	if size <= 0 {
		size = DefaultJournalBuffer
	}
	return &Journal{store: s, events: make(chan event, size)}
}

func (j *Journal) enqueue(ev event) {
	select {
	case j.events <- ev:
	default:
		if j.dropped.Add(1) == 1 {
			log.Printf("journal: buffer full, dropping events")
		}
	}
}

func (j *Journal) AlertRaised(a model.Alert) {
	j.enqueue(event{kind: eventAlertRaised, alert: a})
}

func (j *Journal) AlertAcknowledged(a model.Alert) {
	j.enqueue(event{kind: eventAlertAcked, alert: a})
}

func (j *Journal) CommandRecorded(c model.RelayCommand) {
	j.enqueue(event{kind: eventCommand, command: c})
}

func (j *Journal) MaintenanceRecorded(r model.MaintenanceRecord) {
	j.enqueue(event{kind: eventMaintenance, record: r})
}

// Dropped is the number of events lost to a full buffer.
func (j *Journal) Dropped() int64 { return j.dropped.Load() }

// Written is the number of events stored.
func (j *Journal) Written() int64 { return j.written.Load() }

// Run writes queued events until ctx is cancelled, then drains what is
// already queued.
func (j *Journal) Run(ctx context.Context) {
	for {
		select {
		case ev := <-j.events:
			j.write(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-j.events:
					j.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) write(ev event) {
	var err error
	switch ev.kind {
	case eventAlertRaised:
		err = j.store.RecordAlert(ev.alert)
	case eventAlertAcked:
		err = j.store.AcknowledgeAlert(ev.alert)
	case eventCommand:
		err = j.store.RecordCommand(ev.command)
	case eventMaintenance:
		err = j.store.RecordMaintenance(ev.record)
	}
	if err != nil {
		log.Printf("journal: write failed: %v", err)
		return
	}
	j.written.Add(1)
}
