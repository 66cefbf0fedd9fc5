package engine

import (
	"errors"
	"log"
	"net"
	"strconv"

	"crashline/internal/wire"
)

// handleConnection is the per-player receive loop (C4). It owns the socket
// from admission until disconnect: it decodes frames, dispatches by type,
// and releases the slot on any terminal condition. It never blocks other
// players' handlers or the round manager — all shared-state calls are
// short, lock-scoped operations on players.Table / roundstate.State.
func (e *Engine) handleConnection(id int, conn net.Conn) {
	defer e.releasePlayer(id, conn)

	for {
		frame, err := wire.RecvAll(conn)
		if err != nil {
			if errors.Is(err, wire.ErrPeerGone) {
				logEvent("disconnect", idTag(id), 0, 0, 0, 0, 0, 0, 0, 0)
			} else {
				log.Printf("event=ioerror | id=%d | error=%v", id, err)
			}
			return
		}

		switch frame.Type {
		case wire.TypeBet:
			e.handleBet(id, frame)
		case wire.TypeCashout:
			e.handleCashout(id, conn)
		case wire.TypeBye:
			wire.SendAll(conn, wire.Frame{PlayerID: int32(id), Type: wire.TypeBye})
			return
		default:
			// A known tag that only the server sends: protocol error.
			// (Unknown tags are already rejected by wire.Decode.)
			log.Printf("event=malformed | id=%d | type=%q", id, frame.Type)
			return
		}
	}
}

func (e *Engine) handleBet(id int, frame wire.Frame) {
	err := e.state.RecordBet(id, float64(frame.Value))
	if err != nil {
		return // Rejected: silently discard, no response frame defined.
	}
	logEvent("bet", idTag(id), 0, 0, 0, 0, float64(frame.Value), 0, 0, 0)
	e.sink.PublishFrame(wire.Frame{PlayerID: int32(id), Value: frame.Value, Type: wire.TypeBet})
}

// handleCashout writes directly to conn, the socket this handler goroutine
// already owns — no table lookup or lock needed, so a slow write here can
// never hold clients_mtx.
func (e *Engine) handleCashout(id int, conn net.Conn) {
	m, err := e.state.RecordCashout(id)
	if err != nil {
		return // Rejected: silently discard.
	}

	payout, _, _, playerProfit, houseProfit, err := e.state.ApplyCashoutSettlement(id)
	if err != nil {
		// Lost the race with the manager's own Settle pass; nothing to send.
		return
	}

	wire.SendAll(conn, wire.Frame{
		PlayerID:     int32(id),
		Value:        float32(payout),
		Type:         wire.TypePayout,
		PlayerProfit: float32(playerProfit),
		HouseProfit:  float32(houseProfit),
	})

	logEvent("payout", idTag(id), m, 0, 0, 0, 0, payout, playerProfit, houseProfit)
	e.sink.PublishFrame(wire.Frame{PlayerID: int32(id), Value: m, Type: wire.TypeCashout})
}

func (e *Engine) releasePlayer(id int, conn net.Conn) {
	conn.Close()
	e.table.Release(id)
	e.state.UnregisterPlayer(id)
}

func idTag(id int) string {
	if id <= 0 {
		return "*"
	}
	return strconv.Itoa(id)
}
