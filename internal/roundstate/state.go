// Package roundstate holds the shared game state: the round's phase, its
// ascending multiplier, the fixed explosion point, per-player bet/cashout
// bookkeeping, and the persistent (within the process lifetime) profit
// ledger. It is guarded by two mutexes — state_mtx for phase/multiplier/
// per-round fields and a logically distinct profit_mtx for the profit
// ledger — matching the three-named-mutex model the round manager and
// connection handlers are built against (clients_mtx lives in
// internal/players).
package roundstate

import (
	"errors"
	"math"
	"sync"
)

// Phase is a position in the round lifecycle.
type Phase int

const (
	Idle Phase = iota
	Betting
	Flight
	Exploding
	Settling
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Betting:
		return "betting"
	case Flight:
		return "flight"
	case Exploding:
		return "exploding"
	case Settling:
		return "settling"
	default:
		return "unknown"
	}
}

// MultiplierStep is the per-tick increment to the multiplier during Flight.
const MultiplierStep = 0.01

// StartMultiplier is the multiplier at the instant Betting closes.
const StartMultiplier float32 = 1.00

// RejectKind explains why a bet or cashout request was not accepted. The
// spec's error policy is to discard rejections silently on the wire; a
// RejectKind exists only so callers can log why, never to emit a response
// frame.
type RejectKind string

const (
	RejectWrongPhase    RejectKind = "wrong_phase"
	RejectNonPositive   RejectKind = "non_positive_amount"
	RejectNonFinite     RejectKind = "non_finite_amount"
	RejectDuplicateBet  RejectKind = "duplicate_bet"
	RejectNoBet         RejectKind = "no_bet"
	RejectAlreadyCashed RejectKind = "already_cashed_out"
	RejectTooLate       RejectKind = "too_late"
)

// RejectedError carries the reason a bet or cashout was turned down.
type RejectedError struct {
	Kind RejectKind
}

func (e *RejectedError) Error() string { return "roundstate: rejected (" + string(e.Kind) + ")" }

func rejected(kind RejectKind) error { return &RejectedError{Kind: kind} }

// playerRound is the per-player, per-round bookkeeping the spec's data model
// calls the slot's "per-round fields." It is keyed by player id and reset
// every time a new round begins.
type playerRound struct {
	hasBet      bool
	bet         float64
	cashedOut   bool
	cashoutMult float32
	settled     bool
}

// SettlementResult is one line of the per-round settlement: the payout and
// profit deltas applied (or, for a slot already settled by its own cashout,
// already applied earlier) for one player.
type SettlementResult struct {
	ID             int
	HadBet         bool
	AlreadySettled bool
	Bet            float64
	Payout         float64
	DeltaPlayer    float64
	DeltaHouse     float64
	PlayerProfit   float64
	HouseProfit    float64
}

// State is the shared round object. The zero value is not usable; use New.
type State struct {
	mu   sync.Mutex
	cond *sync.Cond

	phase Phase
	m     float32
	me    float32
	n     int
	v     float64

	perRound map[int]*playerRound

	profitMu       sync.Mutex
	houseProfit    float64
	lifetimeProfit map[int]float64
}

// New creates a State starting at Idle with zeroed accumulators.
func New() *State {
	s := &State{
		perRound:       make(map[int]*playerRound),
		lifetimeProfit: make(map[int]float64),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// RegisterPlayer initializes a fresh lifetime-profit entry for a newly
// admitted slot id, if one does not already exist. Called by the acceptor
// on Admit; safe to call again for a player already registered (a no-op),
// since lifetime profit persists across rounds for as long as the
// connection is held.
func (s *State) RegisterPlayer(id int) {
	s.profitMu.Lock()
	defer s.profitMu.Unlock()
	if _, ok := s.lifetimeProfit[id]; !ok {
		s.lifetimeProfit[id] = 0
	}
}

// UnregisterPlayer drops the lifetime-profit entry for a released slot id.
func (s *State) UnregisterPlayer(id int) {
	s.profitMu.Lock()
	defer s.profitMu.Unlock()
	delete(s.lifetimeProfit, id)
}

// Phase returns the current phase.
func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// WaitForPhase blocks until the round reaches target.
func (s *State) WaitForPhase(target Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.phase != target {
		s.cond.Wait()
	}
}

// Snapshot is a read-only view of the round used for /metrics and logging.
type Snapshot struct {
	Phase       Phase
	Multiplier  float32
	Explosion   float32
	BetCount    int
	BetSum      float64
	HouseProfit float64
}

// Snapshot returns the current phase/multiplier/aggregates without letting
// the caller hold either mutex.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Phase:      s.phase,
		Multiplier: s.m,
		Explosion:  s.me,
		BetCount:   s.n,
		BetSum:     s.v,
	}
	s.mu.Unlock()

	s.profitMu.Lock()
	snap.HouseProfit = s.houseProfit
	s.profitMu.Unlock()
	return snap
}

// LifetimeProfit returns a player's cumulative profit.
func (s *State) LifetimeProfit(id int) float64 {
	s.profitMu.Lock()
	defer s.profitMu.Unlock()
	return s.lifetimeProfit[id]
}

// HouseProfit returns the cumulative house profit.
func (s *State) HouseProfit() float64 {
	s.profitMu.Lock()
	defer s.profitMu.Unlock()
	return s.houseProfit
}

// BeginBetting opens a new round for exactly the given occupied player ids,
// resetting every per-round field.
func (s *State) BeginBetting(ids []int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.phase = Betting
	s.m = 0
	s.me = 0
	s.n = 0
	s.v = 0
	s.perRound = make(map[int]*playerRound, len(ids))
	for _, id := range ids {
		s.perRound[id] = &playerRound{}
	}
	s.cond.Broadcast()
}

// RecordBet accepts id's bet if the round is Betting, id is one of the
// players BeginBetting opened the round for, amount is positive and finite,
// and id has no prior accepted bet this round. A player admitted after
// BeginBetting is rejected with RejectWrongPhase until the next round opens.
func (s *State) RecordBet(id int, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Betting {
		return rejected(RejectWrongPhase)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return rejected(RejectNonFinite)
	}
	if amount <= 0 {
		return rejected(RejectNonPositive)
	}

	pr, ok := s.perRound[id]
	if !ok {
		return rejected(RejectWrongPhase)
	}
	if pr.hasBet {
		return rejected(RejectDuplicateBet)
	}

	pr.hasBet = true
	pr.bet = amount
	return nil
}

// CloseBetting freezes N and V, computes the explosion point, and moves the
// round into Flight at the starting multiplier.
func (s *State) CloseBetting() (n int, v float64, me float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n = 0
	v = 0
	for _, pr := range s.perRound {
		if pr.hasBet {
			n++
			v += pr.bet
		}
	}

	me = explosionPoint(n, v)

	s.n = n
	s.v = v
	s.me = me
	s.m = StartMultiplier
	s.phase = Flight
	s.cond.Broadcast()
	return n, v, me
}

// explosionPoint computes me = sqrt(1 + N + 0.01*V) in single precision, as
// specified: with no bets the round explodes on the very first tick.
func explosionPoint(n int, v float64) float32 {
	return float32(math.Sqrt(1 + float64(n) + 0.01*v))
}

// Tick advances the multiplier by one step. It returns the new multiplier
// and whether this tick crossed the explosion point, moving the round to
// Exploding.
func (s *State) Tick() (m float32, exploded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Flight {
		return s.m, false
	}

	s.m += MultiplierStep
	if s.m >= s.me {
		s.phase = Exploding
		s.cond.Broadcast()
		return s.m, true
	}
	return s.m, false
}

// RecordCashout accepts id's cashout if the round is in Flight, id has an
// unsettled bet, and the current multiplier has not yet reached me. On
// success it returns the multiplier stamped at receipt.
func (s *State) RecordCashout(id int) (float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Flight {
		return 0, rejected(RejectWrongPhase)
	}

	pr, ok := s.perRound[id]
	if !ok || !pr.hasBet {
		return 0, rejected(RejectNoBet)
	}
	if pr.cashedOut {
		return 0, rejected(RejectAlreadyCashed)
	}
	if s.m >= s.me {
		return 0, rejected(RejectTooLate)
	}

	pr.cashedOut = true
	pr.cashoutMult = s.m
	return s.m, nil
}

// ApplyCashoutSettlement settles an already-recorded cashout immediately,
// crediting the player and debiting the house under profit_mtx, and marks
// the slot settled so the end-of-round Settle pass skips it. Called by the
// connection handler right after a successful RecordCashout.
func (s *State) ApplyCashoutSettlement(id int) (payout, deltaPlayer, deltaHouse, playerProfit, houseProfit float64, err error) {
	s.mu.Lock()
	pr, ok := s.perRound[id]
	if !ok || !pr.cashedOut || pr.settled {
		s.mu.Unlock()
		return 0, 0, 0, 0, 0, errors.New("roundstate: no pending cashout to settle")
	}
	bet := pr.bet
	mult := pr.cashoutMult
	pr.settled = true
	s.mu.Unlock()

	payout = bet * float64(mult)
	deltaPlayer = payout - bet
	deltaHouse = bet - payout

	s.profitMu.Lock()
	s.lifetimeProfit[id] += deltaPlayer
	s.houseProfit += deltaHouse
	playerProfit = s.lifetimeProfit[id]
	houseProfit = s.houseProfit
	s.profitMu.Unlock()

	return payout, deltaPlayer, deltaHouse, playerProfit, houseProfit, nil
}

// Settle finalizes every slot that placed a bet this round. Slots already
// settled by their own cashout (ApplyCashoutSettlement) are reported with
// AlreadySettled=true and zero fresh deltas. A bet whose cashout was
// recorded but not yet settled is paid bet times its stamped multiplier;
// every other bet is treated as a loss (payout 0) since it rode the round to
// explosion.
func (s *State) Settle() []SettlementResult {
	s.mu.Lock()
	s.phase = Settling
	type pending struct {
		id  int
		pr  playerRound
	}
	var toSettle []pending
	for id, pr := range s.perRound {
		if pr.hasBet {
			toSettle = append(toSettle, pending{id: id, pr: *pr})
		}
	}
	for _, p := range toSettle {
		if !p.pr.settled {
			s.perRound[p.id].settled = true
		}
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	results := make([]SettlementResult, 0, len(toSettle))
	for _, p := range toSettle {
		if p.pr.settled {
			s.profitMu.Lock()
			playerProfit := s.lifetimeProfit[p.id]
			houseProfit := s.houseProfit
			s.profitMu.Unlock()
			results = append(results, SettlementResult{
				ID:             p.id,
				HadBet:         true,
				AlreadySettled: true,
				Bet:            p.pr.bet,
				PlayerProfit:   playerProfit,
				HouseProfit:    houseProfit,
			})
			continue
		}

		payout := 0.0
		if p.pr.cashedOut {
			payout = p.pr.bet * float64(p.pr.cashoutMult)
		}
		deltaPlayer := payout - p.pr.bet
		deltaHouse := p.pr.bet - payout

		s.profitMu.Lock()
		s.lifetimeProfit[p.id] += deltaPlayer
		s.houseProfit += deltaHouse
		playerProfit := s.lifetimeProfit[p.id]
		houseProfit := s.houseProfit
		s.profitMu.Unlock()

		results = append(results, SettlementResult{
			ID:           p.id,
			HadBet:       true,
			Bet:          p.pr.bet,
			Payout:       payout,
			DeltaPlayer:  deltaPlayer,
			DeltaHouse:   deltaHouse,
			PlayerProfit: playerProfit,
			HouseProfit:  houseProfit,
		})
	}
	return results
}

// FinishSettling returns the round to Idle, ready for BeginBetting.
func (s *State) FinishSettling() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = Idle
	s.cond.Broadcast()
}
