package audit

import (
	"testing"
	"time"

	"crashline/internal/engine"
	"crashline/internal/wire"
)

// TestSinkWithNilBackendsDoesNotBlock confirms a Sink started with no
// Postgres pool and no Redis client still drains its queues instead of
// wedging — the degrade-gracefully contract the round manager depends on.
func TestSinkWithNilBackendsDoesNotBlock(t *testing.T) {
	s := New(nil, nil)
	defer s.Close()

	for i := 0; i < frameQueueDepth*2; i++ {
		s.PublishFrame(wire.Frame{Type: wire.TypeMultiplier, Value: float32(i)})
	}
	s.RecordRound(engine.RoundRecord{Sequence: 1, Started: time.Now(), Closed: time.Now(), Exploded: time.Now()})

	// Give the drain goroutine a moment; nothing here should panic or hang.
	time.Sleep(50 * time.Millisecond)
}

func TestCompressDetailRoundTripsAsGzip(t *testing.T) {
	rec := engine.RoundRecord{
		Sequence: 7,
		Players:  []engine.PlayerRecord{{ID: 1, Bet: 10, Payout: 20}},
	}
	out, err := compressDetail(rec)
	if err != nil {
		t.Fatalf("compressDetail() error = %v", err)
	}
	if len(out) == 0 {
		t.Fatal("compressDetail() returned empty output")
	}
	// gzip member header magic bytes.
	if out[0] != 0x1f || out[1] != 0x8b {
		t.Fatalf("compressDetail() output does not look gzip-framed: %x", out[:2])
	}
}
