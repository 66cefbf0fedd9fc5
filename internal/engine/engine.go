// Package engine wires the player table and round state together into the
// running game: the connection handler (C4), the round manager (C5), and
// the TCP acceptor (C6). It is the concurrent core the rest of the server
// is built around.
package engine

import (
	"time"

	"crashline/internal/players"
	"crashline/internal/roundstate"
)

// Config controls round pacing and player capacity. Zero values are not
// usable; build one from internal/config.ServerConfig.
type Config struct {
	Capacity      int
	BettingWindow time.Duration
	TickInterval  time.Duration
}

// Engine owns the player table and round state and runs the round manager
// loop. A single Engine instance exists per server process.
type Engine struct {
	cfg   Config
	table *players.Table
	state *roundstate.State
	sink  EventSink

	sequence int
}

// New builds an Engine with a fresh player table and round state. Pass nil
// for sink to discard audit events (tests and standalone runs do this).
func New(cfg Config, sink EventSink) *Engine {
	if sink == nil {
		sink = noopSink{}
	}
	return &Engine{
		cfg:   cfg,
		table: players.New(cfg.Capacity),
		state: roundstate.New(),
		sink:  sink,
	}
}

// Table exposes the player table, mainly for the acceptor and admin plane.
func (e *Engine) Table() *players.Table { return e.table }

// State exposes the round state, mainly for the admin plane.
func (e *Engine) State() *roundstate.State { return e.state }

// SetSink replaces the event sink. It must be called before Run and Serve
// start — typically right after constructing any sink that itself needs a
// reference to the Engine (the admin plane's ring-buffer sink does) — since
// it is not safe to call concurrently with a running round.
func (e *Engine) SetSink(sink EventSink) {
	if sink == nil {
		sink = noopSink{}
	}
	e.sink = sink
}
