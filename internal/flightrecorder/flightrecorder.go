// Package flightrecorder tracks per-request stage timings in a bounded,
// in-memory LRU. Flight records are never persisted; they exist purely for
// live introspection (the /stats surface) and are gone on restart.
package flightrecorder

import (
	"container/list"
	"sync"
	"time"

	"github.com/beigebox/beigebox/pkg/bbtypes"
)

const (
	// DefaultCapacity bounds the number of records kept.
	DefaultCapacity = 1000
	// DefaultRetention is how long a closed record is kept before eviction
	// sweeps reclaim it.
	DefaultRetention = 24 * time.Hour
)

// Recorder is a bounded LRU of FlightRecords keyed by id.
type Recorder struct {
	mu       sync.Mutex
	capacity int
	retention time.Duration
	order    *list.List // front = most recently touched
	index    map[string]*list.Element
	now      func() time.Time
}

type node struct {
	id     string
	record *bbtypes.FlightRecord
}

// New creates a Recorder with the given capacity and retention. Zero values
// use the defaults.
func New(capacity int, retention time.Duration) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Recorder{
		capacity:  capacity,
		retention: retention,
		order:     list.New(),
		index:     make(map[string]*list.Element),
		now:       time.Now,
	}
}

// Start begins a new FlightRecord for the given id, evicting the oldest
// record if the recorder is at capacity.
func (r *Recorder) Start(id, conversationID, model string) *bbtypes.FlightRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := &bbtypes.FlightRecord{
		ID:             id,
		ConversationID: conversationID,
		Model:          model,
		StartedAt:      r.now(),
	}
	el := r.order.PushFront(&node{id: id, record: rec})
	r.index[id] = el

	for r.order.Len() > r.capacity {
		oldest := r.order.Back()
		if oldest == nil {
			break
		}
		r.order.Remove(oldest)
		delete(r.index, oldest.Value.(*node).id)
	}
	return rec
}

// Stage appends a named, timed stage to the record for id. It is a no-op if
// the record is missing (already evicted) or closed.
func (r *Recorder) Stage(id, name string, elapsed time.Duration, detail map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.index[id]
	if !ok {
		return
	}
	rec := el.Value.(*node).record
	if rec.Closed {
		return
	}
	rec.Stages = append(rec.Stages, bbtypes.FlightStage{
		Name:      name,
		ElapsedMs: elapsed.Milliseconds(),
		Detail:    detail,
	})
	r.order.MoveToFront(el)
}

// Close marks the record for id as finished. Closed records are still
// readable until evicted by capacity or GC.
func (r *Recorder) Close(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.index[id]; ok {
		el.Value.(*node).record.Closed = true
	}
}

// Get returns the record for id, if still resident.
func (r *Recorder) Get(id string) (*bbtypes.FlightRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return el.Value.(*node).record, true
}

// GC evicts closed records older than the retention window.
func (r *Recorder) GC() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.retention)
	for el := r.order.Back(); el != nil; {
		prev := el.Prev()
		n := el.Value.(*node)
		if n.record.Closed && n.record.StartedAt.Before(cutoff) {
			r.order.Remove(el)
			delete(r.index, n.id)
		}
		el = prev
	}
}
