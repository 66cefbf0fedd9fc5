package adminserver

import (
	"testing"

	"crashline/internal/engine"
	"crashline/internal/wire"
)

func TestRoundRingCapsAtCapacity(t *testing.T) {
	r := newRoundRing(3)
	for i := 1; i <= 5; i++ {
		r.add(engine.RoundRecord{Sequence: i})
	}

	got := r.recent()
	if len(got) != 3 {
		t.Fatalf("recent() len = %d, want 3", len(got))
	}
	if got[0].Sequence != 3 || got[2].Sequence != 5 {
		t.Fatalf("recent() = %+v, want sequences 3,4,5", got)
	}
}

func TestRoundRingExplosionValues(t *testing.T) {
	r := newRoundRing(10)
	r.add(engine.RoundRecord{Sequence: 1, Explosion: 1.5})
	r.add(engine.RoundRecord{Sequence: 2, Explosion: 3.25})

	got := r.explosionValues()
	if len(got) != 2 || got[0] != 1.5 || got[1] != 3.25 {
		t.Fatalf("explosionValues() = %v, want [1.5 3.25]", got)
	}
}

func TestRoundRingPublishDeliversToSubscribers(t *testing.T) {
	r := newRoundRing(10)
	ch := r.subscribe()
	defer r.unsubscribe(ch)

	r.publish(wire.Frame{Type: wire.TypeMultiplier, Value: 1.23})

	select {
	case f := <-ch:
		if f.Value != 1.23 {
			t.Fatalf("received Value = %v, want 1.23", f.Value)
		}
	default:
		t.Fatal("expected a frame to be delivered to the subscriber channel")
	}
}

func TestRoundRingPublishDropsOnFullSubscriberChannel(t *testing.T) {
	r := newRoundRing(10)
	ch := r.subscribe()
	defer r.unsubscribe(ch)

	for i := 0; i < 40; i++ {
		r.publish(wire.Frame{Type: wire.TypeMultiplier, Value: float32(i)})
	}

	if r.droppedCount() == 0 {
		t.Fatal("expected droppedCount() > 0 once the subscriber channel saturates")
	}
}
