package adminserver

import (
	"sync"
	"sync/atomic"

	"crashline/internal/engine"
	"crashline/internal/wire"
)

// roundRing is an in-process ring buffer of recently settled rounds plus a
// small broadcast-frame fan-out for /spectate. It is fed by ringSink,
// independent of whether Postgres (internal/audit's own persistence) is
// reachable, per the admin plane's "works even if the audit DB is down"
// requirement.
type roundRing struct {
	mu      sync.Mutex
	records []engine.RoundRecord
	cap     int

	subsMu sync.Mutex
	subs   map[chan wire.Frame]struct{}

	dropped int64
}

func newRoundRing(cap int) *roundRing {
	return &roundRing{
		cap:  cap,
		subs: make(map[chan wire.Frame]struct{}),
	}
}

func (r *roundRing) add(rec engine.RoundRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	if len(r.records) > r.cap {
		r.records = r.records[len(r.records)-r.cap:]
	}
}

func (r *roundRing) recent() []engine.RoundRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]engine.RoundRecord, len(r.records))
	copy(out, r.records)
	return out
}

func (r *roundRing) explosionValues() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.records))
	for i, rec := range r.records {
		out[i] = float64(rec.Explosion)
	}
	return out
}

func (r *roundRing) subscribe() chan wire.Frame {
	ch := make(chan wire.Frame, 32)
	r.subsMu.Lock()
	r.subs[ch] = struct{}{}
	r.subsMu.Unlock()
	return ch
}

func (r *roundRing) unsubscribe(ch chan wire.Frame) {
	r.subsMu.Lock()
	delete(r.subs, ch)
	r.subsMu.Unlock()
}

func (r *roundRing) publish(f wire.Frame) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- f:
		default:
			atomic.AddInt64(&r.dropped, 1)
		}
	}
}

func (r *roundRing) droppedCount() int64 {
	return atomic.LoadInt64(&r.dropped)
}

// ringSink adapts Server to engine.EventSink by delegating to its ring.
type ringSink Server

func (s *ringSink) PublishFrame(f wire.Frame)          { s.ring.publish(f) }
func (s *ringSink) RecordRound(rec engine.RoundRecord) { s.ring.add(rec) }

var _ engine.EventSink = (*ringSink)(nil)
