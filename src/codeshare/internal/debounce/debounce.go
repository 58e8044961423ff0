// Package debounce bounds the outbound update rate under rapid typing by
// collapsing bursts of change notifications into a single firing per quiet
// period.
package debounce

import (
	"sync"
	"time"

	"github.com/codeshare/codeshare/src/codeshare/entity"
)

// FireFunc is invoked once per elapsed quiet period with the document that
// triggered the most recent change.
type FireFunc func(id entity.DocumentID)

// Debouncer restarts a quiet-period timer on every change notification and
// fires once the timer elapses uninterrupted.
//
// In the default (shared-timer) mode a change to any document supersedes
// the pending timer, so interleaved edits to different documents coalesce
// onto one firing for whichever document changed last. Intermediate updates
// for the superseded document are absorbed and re-converge on the next save
// or full resync. Per-document mode keeps an independent timer per
// identifier instead, which removes that absorption.
type Debouncer struct {
	quiet       time.Duration
	perDocument bool
	fire        FireFunc

	mu      sync.Mutex
	stopped bool

	// Shared-timer mode.
	pending    *time.Timer
	pendingID  entity.DocumentID
	generation uint64

	// Per-document mode.
	timers map[entity.DocumentID]*time.Timer
}

// New returns a Debouncer that calls fire on the firing goroutine after
// quiet elapses with no further triggers.
func New(quiet time.Duration, perDocument bool, fire FireFunc) *Debouncer {
	return &Debouncer{
		quiet:       quiet,
		perDocument: perDocument,
		fire:        fire,
		timers:      make(map[entity.DocumentID]*time.Timer),
	}
}

// Trigger records a raw change notification for the given document,
// superseding any pending timer it shares one with.
func (d *Debouncer) Trigger(id entity.DocumentID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if d.perDocument {
		if t, ok := d.timers[id]; ok {
			t.Stop()
		}
		d.timers[id] = time.AfterFunc(d.quiet, func() { d.firePerDocument(id) })
		return
	}

	if d.pending != nil {
		d.pending.Stop()
	}
	d.generation++
	gen := d.generation
	d.pendingID = id
	d.pending = time.AfterFunc(d.quiet, func() { d.fireShared(gen) })
}

// Stop cancels every pending timer. A stopped Debouncer ignores further
// triggers and never fires again.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true

	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
}

func (d *Debouncer) fireShared(gen uint64) {
	d.mu.Lock()
	// A trigger may have superseded this timer between expiry and lock
	// acquisition; only the latest generation is allowed to fire.
	if d.stopped || gen != d.generation {
		d.mu.Unlock()
		return
	}
	id := d.pendingID
	d.pending = nil
	d.mu.Unlock()

	d.fire(id)
}

func (d *Debouncer) firePerDocument(id entity.DocumentID) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.timers, id)
	d.mu.Unlock()

	d.fire(id)
}
