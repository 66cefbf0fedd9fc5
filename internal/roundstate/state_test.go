package roundstate

import (
	"math"
	"testing"
)

func TestExplosionPointZeroBets(t *testing.T) {
	me := explosionPoint(0, 0)
	if me != 1.0 {
		t.Errorf("explosionPoint(0, 0) = %v, want 1.0", me)
	}
}

func TestCloseBettingMatchesSpecFormula(t *testing.T) {
	s := New()
	s.BeginBetting([]int{1, 2})
	s.RecordBet(1, 50)
	s.RecordBet(2, 50)

	n, v, me := s.CloseBetting()
	if n != 2 {
		t.Errorf("n = %d, want 2", n)
	}
	if v != 100 {
		t.Errorf("v = %v, want 100", v)
	}
	want := float32(math.Sqrt(1 + 2 + 0.01*100))
	if me != want {
		t.Errorf("me = %v, want %v", me, want)
	}
	if s.Phase() != Flight {
		t.Errorf("phase = %v, want Flight", s.Phase())
	}
}

func TestRecordBetRejectsOutsideBetting(t *testing.T) {
	s := New()
	s.BeginBetting([]int{1})
	s.CloseBetting() // now Flight

	if err := s.RecordBet(1, 10); err == nil {
		t.Fatal("RecordBet() outside Betting = nil error, want rejection")
	}
}

func TestRecordBetRejectsDuplicateNonPositiveNonFinite(t *testing.T) {
	s := New()
	s.BeginBetting([]int{1})

	if err := s.RecordBet(1, 0); err == nil {
		t.Error("RecordBet(amount=0) = nil error, want rejection")
	}
	if err := s.RecordBet(1, -5); err == nil {
		t.Error("RecordBet(amount=-5) = nil error, want rejection")
	}
	if err := s.RecordBet(1, math.NaN()); err == nil {
		t.Error("RecordBet(NaN) = nil error, want rejection")
	}
	if err := s.RecordBet(1, math.Inf(1)); err == nil {
		t.Error("RecordBet(+Inf) = nil error, want rejection")
	}

	if err := s.RecordBet(1, 10); err != nil {
		t.Fatalf("RecordBet(10) error = %v, want nil", err)
	}
	if err := s.RecordBet(1, 10); err == nil {
		t.Error("second RecordBet() for same id this round = nil error, want rejection")
	}
}

func TestTickMonotonicAndExplodes(t *testing.T) {
	s := New()
	s.BeginBetting(nil)
	s.CloseBetting() // N=0,V=0 -> me=1.0, explodes on first tick

	m, exploded := s.Tick()
	if !exploded {
		t.Fatal("Tick() with me=1.0 did not report explosion on first tick")
	}
	if m < StartMultiplier {
		t.Errorf("m = %v, want >= %v", m, StartMultiplier)
	}
	if s.Phase() != Exploding {
		t.Errorf("phase = %v, want Exploding", s.Phase())
	}
}

func TestTickIsMonotonicUntilExplosion(t *testing.T) {
	s := New()
	s.BeginBetting([]int{1})
	s.RecordBet(1, 10000) // large V -> large me, several ticks before explosion
	s.CloseBetting()

	prev := float32(0)
	for i := 0; i < 5; i++ {
		m, exploded := s.Tick()
		if m < prev {
			t.Fatalf("multiplier decreased: %v -> %v", prev, m)
		}
		prev = m
		if exploded {
			break
		}
	}
}

func TestRecordCashoutValidWindow(t *testing.T) {
	s := New()
	s.BeginBetting([]int{1})
	s.RecordBet(1, 100)
	s.CloseBetting()

	m, err := s.RecordCashout(1)
	if err != nil {
		t.Fatalf("RecordCashout() error = %v", err)
	}
	if m != StartMultiplier {
		t.Errorf("cashout multiplier = %v, want %v", m, StartMultiplier)
	}

	if _, err := s.RecordCashout(1); err == nil {
		t.Error("second RecordCashout() = nil error, want rejection (already cashed out)")
	}
}

func TestRecordCashoutRejectsWithoutBet(t *testing.T) {
	s := New()
	s.BeginBetting([]int{1})
	s.CloseBetting()

	if _, err := s.RecordCashout(1); err == nil {
		t.Error("RecordCashout() without a bet = nil error, want rejection")
	}
}

func TestRecordCashoutRejectsAtOrPastExplosion(t *testing.T) {
	s := New()
	s.BeginBetting([]int{1})
	s.RecordBet(1, 1) // small V -> small me, likely to explode within a tick or two
	s.CloseBetting()

	for {
		_, exploded := s.Tick()
		if exploded {
			break
		}
	}

	if _, err := s.RecordCashout(1); err == nil {
		t.Error("RecordCashout() after explosion = nil error, want rejection")
	}
}

func TestApplyCashoutSettlementIsZeroSumAndSkippedBySettle(t *testing.T) {
	s := New()
	s.RegisterPlayer(1)
	s.RegisterPlayer(2)
	s.BeginBetting([]int{1, 2})
	s.RecordBet(1, 50)
	s.RecordBet(2, 50)
	s.CloseBetting() // me = sqrt(1+2+1) = 2.0

	s.Tick() // m = 1.01
	if _, err := s.RecordCashout(1); err != nil {
		t.Fatalf("RecordCashout() error = %v", err)
	}
	payout, deltaPlayer, deltaHouse, _, _, err := s.ApplyCashoutSettlement(1)
	if err != nil {
		t.Fatalf("ApplyCashoutSettlement() error = %v", err)
	}
	if payout != 50*1.01 {
		t.Errorf("payout = %v, want %v", payout, 50*1.01)
	}
	if deltaPlayer+deltaHouse != 0 {
		t.Errorf("deltaPlayer+deltaHouse = %v, want 0", deltaPlayer+deltaHouse)
	}

	// Ride player 2 to explosion.
	for {
		_, exploded := s.Tick()
		if exploded {
			break
		}
	}

	results := s.Settle()
	var sawCashed, sawLost bool
	var sumDeltas float64
	for _, r := range results {
		if r.ID == 1 {
			sawCashed = true
			if !r.AlreadySettled {
				t.Error("player 1 settlement should report AlreadySettled=true")
			}
		}
		if r.ID == 2 {
			sawLost = true
			if r.AlreadySettled {
				t.Error("player 2 settlement should not be AlreadySettled")
			}
			if r.Payout != 0 {
				t.Errorf("player 2 payout = %v, want 0 (lost)", r.Payout)
			}
		}
		sumDeltas += r.DeltaPlayer + r.DeltaHouse
	}
	if !sawCashed || !sawLost {
		t.Fatalf("results missing expected players: %+v", results)
	}
	if sumDeltas != 0 {
		t.Errorf("sum of all deltas = %v, want 0 (zero-sum round)", sumDeltas)
	}

	total := s.HouseProfit() + s.LifetimeProfit(1) + s.LifetimeProfit(2)
	if total != 0 {
		t.Errorf("house profit + player profits = %v, want 0", total)
	}
}

func TestSettleTreatsNonCashedOutBetAsLoss(t *testing.T) {
	s := New()
	s.RegisterPlayer(1)
	s.BeginBetting([]int{1})
	s.RecordBet(1, 25)
	s.CloseBetting()

	for {
		_, exploded := s.Tick()
		if exploded {
			break
		}
	}

	results := s.Settle()
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	r := results[0]
	if r.Payout != 0 {
		t.Errorf("payout = %v, want 0", r.Payout)
	}
	if r.DeltaPlayer != -25 {
		t.Errorf("DeltaPlayer = %v, want -25", r.DeltaPlayer)
	}
	if r.DeltaHouse != 25 {
		t.Errorf("DeltaHouse = %v, want 25", r.DeltaHouse)
	}
}

func TestFinishSettlingReturnsToIdle(t *testing.T) {
	s := New()
	s.BeginBetting(nil)
	s.CloseBetting()
	s.Tick()
	s.Settle()
	s.FinishSettling()

	if s.Phase() != Idle {
		t.Errorf("phase = %v, want Idle", s.Phase())
	}
}
