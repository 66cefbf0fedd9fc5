package engine

import (
	"time"

	"crashline/internal/players"
	"crashline/internal/roundstate"
	"crashline/internal/wire"
)

// Run drives the round lifecycle forever: Idle -> Betting -> Flight ->
// Exploding -> Settling -> (Betting again, if players remain, or Idle).
// It is meant to run in its own goroutine for the life of the process.
func (e *Engine) Run() {
	for {
		e.table.WaitForOccupant()
		e.runRound()
	}
}

func (e *Engine) runRound() {
	e.sequence++
	started := timeNow()

	ids := idsOf(e.table.Snapshot())
	e.state.BeginBetting(ids)
	e.broadcast(wire.Frame{Type: wire.TypeStart})
	logEvent("start", "*", 0, 0, 0, 0, 0, 0, 0, 0)

	sleepAbsolute(e.cfg.BettingWindow)

	n, v, me := e.state.CloseBetting()
	closed := timeNow()
	e.broadcast(wire.Frame{Type: wire.TypeClosed, Value: me})
	logEvent("closed", "*", roundstate.StartMultiplier, me, n, v, 0, 0, 0, 0)

	e.runFlight(n, v, me)
	exploded := timeNow()

	results := e.state.Settle()
	e.settleResults(results, started, closed, exploded, n, v, me)

	e.state.FinishSettling()
	for _, id := range ids {
		if !e.table.WithSlot(id, func(*players.Slot) {}) {
			e.state.UnregisterPlayer(id)
		}
	}
}

func (e *Engine) runFlight(n int, v float64, me float32) {
	next := time.Now()
	for {
		next = next.Add(e.cfg.TickInterval)
		if d := time.Until(next); d > 0 {
			time.Sleep(d)
		}

		m, exploded := e.state.Tick()
		if exploded {
			e.broadcast(wire.Frame{Type: wire.TypeExplode, Value: me})
			logEvent("explode", "*", me, me, n, v, 0, 0, 0, 0)
			return
		}
		e.broadcast(wire.Frame{Type: wire.TypeMultiplier, Value: m})
	}
}

func (e *Engine) settleResults(results []roundstate.SettlementResult, started, closed, exploded time.Time, n int, v float64, me float32) {
	rec := RoundRecord{
		Sequence:  e.sequence,
		Explosion: me,
		BetCount:  n,
		BetSum:    v,
		Started:   started,
		Closed:    closed,
		Exploded:  exploded,
	}

	for _, r := range results {
		if r.AlreadySettled {
			// Already paid out and logged at cashout time; just fold into the record.
			rec.Players = append(rec.Players, PlayerRecord{
				ID:          r.ID,
				Bet:         r.Bet,
				CashedOut:   true,
				ProfitDelta: 0,
			})
			e.sendProfit(r.ID, r.PlayerProfit, r.HouseProfit)
			logEvent("profit", idTag(r.ID), me, me, n, v, r.Bet, 0, r.PlayerProfit, r.HouseProfit)
			continue
		}

		if conn, ok := e.table.Conn(r.ID); ok {
			wire.SendAll(conn, wire.Frame{
				PlayerID:     int32(r.ID),
				Value:        float32(r.Payout),
				Type:         wire.TypePayout,
				PlayerProfit: float32(r.PlayerProfit),
				HouseProfit:  float32(r.HouseProfit),
			})
		}
		logEvent("payout", idTag(r.ID), me, me, n, v, r.Bet, r.Payout, r.PlayerProfit, r.HouseProfit)
		rec.HouseProfitDelta += r.DeltaHouse
		rec.Players = append(rec.Players, PlayerRecord{
			ID:          r.ID,
			Bet:         r.Bet,
			CashedOut:   false,
			Payout:      r.Payout,
			ProfitDelta: r.DeltaPlayer,
		})

		e.sendProfit(r.ID, r.PlayerProfit, r.HouseProfit)
		logEvent("profit", idTag(r.ID), me, me, n, v, r.Bet, r.Payout, r.PlayerProfit, r.HouseProfit)
	}

	e.sink.RecordRound(rec)
}

// sendProfit addresses a profit frame to a single settled slot, carrying its
// own updated lifetime profit alongside the current house profit. Sent once
// per bet-carrying slot at settlement, in addition to (and after) that
// slot's payout frame, per the round manager's Exploding-phase broadcast
// sequence. The connection is copied out under the table lock and released
// before the write, so a slow peer here cannot stall clients_mtx.
func (e *Engine) sendProfit(id int, playerProfit, houseProfit float64) {
	if conn, ok := e.table.Conn(id); ok {
		wire.SendAll(conn, wire.Frame{
			PlayerID:     int32(id),
			Type:         wire.TypeProfit,
			PlayerProfit: float32(playerProfit),
			HouseProfit:  float32(houseProfit),
		})
	}
}

// broadcast sends f, addressed with the broadcast sentinel id, to every
// currently occupied slot, then hands it to the event sink. Disconnected
// peers are left for their own handler goroutine to notice and release.
// Writes go to each connection in turn with no write deadline set, so a
// peer that stops reading delays the broadcast; no table or round-state
// lock is held while writing.
func (e *Engine) broadcast(f wire.Frame) {
	f.PlayerID = wire.BroadcastID
	for _, s := range e.table.Snapshot() {
		wire.SendAll(s.Conn, f)
	}
	e.sink.PublishFrame(f)
}

func idsOf(slots []players.Slot) []int {
	ids := make([]int, len(slots))
	for i, s := range slots {
		ids[i] = s.ID
	}
	return ids
}

func sleepAbsolute(d time.Duration) {
	deadline := time.Now().Add(d)
	if rem := time.Until(deadline); rem > 0 {
		time.Sleep(rem)
	}
}

func timeNow() time.Time { return time.Now() }
