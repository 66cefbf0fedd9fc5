package engine

import (
	"time"

	"crashline/internal/wire"
)

// EventSink receives a best-effort, one-way feed of broadcast frames and
// settled-round summaries. It is consumed by the round manager and
// connection handlers but never consulted — a nil or slow sink must never
// change game behavior. internal/audit is the production implementation;
// tests use a stub.
type EventSink interface {
	PublishFrame(f wire.Frame)
	RecordRound(rec RoundRecord)
}

// PlayerRecord is one player's line in a settled round's audit record.
type PlayerRecord struct {
	ID                int
	Nickname          string
	Bet               float64
	CashedOut         bool
	CashoutMultiplier float32
	Payout            float64
	ProfitDelta       float64
}

// RoundRecord summarizes one completed round for the audit sink. It is
// assembled by the round manager after Settle and is never read back by
// the engine — recording it is strictly observational.
type RoundRecord struct {
	Sequence         int
	Explosion        float32
	BetCount         int
	BetSum           float64
	HouseProfitDelta float64
	Started          time.Time
	Closed           time.Time
	Exploded         time.Time
	Players          []PlayerRecord
}

// noopSink discards everything. Used when no sink is configured.
type noopSink struct{}

func (noopSink) PublishFrame(wire.Frame) {}
func (noopSink) RecordRound(RoundRecord) {}

var _ EventSink = noopSink{}

// MultiSink fans out to every sink it holds, in order. It adds no buffering
// of its own: each sink is responsible for bounding how long it blocks.
// The admin ring buffer never blocks; audit.Sink never blocks on frames and
// waits at most one second on a full round queue before dropping the round.
type MultiSink []EventSink

func (m MultiSink) PublishFrame(f wire.Frame) {
	for _, s := range m {
		s.PublishFrame(f)
	}
}

func (m MultiSink) RecordRound(rec RoundRecord) {
	for _, s := range m {
		s.RecordRound(rec)
	}
}

var _ EventSink = MultiSink(nil)
