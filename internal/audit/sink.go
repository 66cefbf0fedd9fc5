// Package audit implements the engine.EventSink used to persist settled
// rounds to Postgres and fan broadcast frames out to Redis pub/sub for
// out-of-process consumers. The admin plane's spectate endpoint does not
// read from Redis; it is fed in-process through its own EventSink. The
// sink is strictly observational: a slow or unreachable backend
// degrades audit coverage, never gameplay.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/gzip"

	"crashline/internal/cache"
	"crashline/internal/engine"
	"crashline/internal/wire"
)

// frameQueueDepth bounds how many broadcast frames can be buffered for
// publish before the sink starts dropping the oldest one, matching the
// ring-buffer behavior a slow downstream consumer should see rather than a
// stall that leaks into the round manager.
const frameQueueDepth = 64

// Sink persists RoundRecords to Postgres and republishes wire.Frames to
// Redis (via cache.Service.Publish, over cache.EventChannel). The zero
// value is not usable; use New.
type Sink struct {
	pool  *pgxpool.Pool
	cache cache.Service

	frames  chan wire.Frame
	rounds  chan engine.RoundRecord
	stop    chan struct{}
	dropped int64
}

var _ engine.EventSink = (*Sink)(nil)

// New starts a Sink backed by pool and cacheSvc. Both may be nil, in which
// case the corresponding half of the sink (Postgres persistence or Redis
// republish) is skipped silently.
func New(pool *pgxpool.Pool, cacheSvc cache.Service) *Sink {
	s := &Sink{
		pool:   pool,
		cache:  cacheSvc,
		frames: make(chan wire.Frame, frameQueueDepth),
		rounds: make(chan engine.RoundRecord, 8),
		stop:   make(chan struct{}),
	}
	go s.run()
	return s
}

// PublishFrame queues f for republish to Redis. Non-blocking: if the queue
// is full, the oldest buffered frame is dropped in favor of f.
func (s *Sink) PublishFrame(f wire.Frame) {
	select {
	case s.frames <- f:
		return
	default:
	}
	select {
	case <-s.frames:
		atomic.AddInt64(&s.dropped, 1)
	default:
	}
	select {
	case s.frames <- f:
	default:
	}
}

// RecordRound queues rec for insertion into Postgres. Blocks briefly if the
// round channel is full; rounds only arrive one at a time from the manager,
// so this only matters if Postgres has fallen far behind.
func (s *Sink) RecordRound(rec engine.RoundRecord) {
	select {
	case s.rounds <- rec:
	case <-time.After(time.Second):
		log.Printf("audit: dropping round %d, writer backed up", rec.Sequence)
	}
}

// Close stops the background writer. Buffered work is abandoned.
func (s *Sink) Close() {
	close(s.stop)
}

func (s *Sink) run() {
	for {
		select {
		case <-s.stop:
			return
		case f := <-s.frames:
			s.publishFrame(f)
		case rec := <-s.rounds:
			s.insertRound(rec)
		}
	}
}

func (s *Sink) publishFrame(f wire.Frame) {
	if s.cache == nil {
		return
	}
	body, err := json.Marshal(struct {
		PlayerID int32   `json:"player_id"`
		Value    float32 `json:"value"`
		Type     string  `json:"type"`
	}{f.PlayerID, f.Value, f.Type})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.cache.Publish(ctx, cache.EventChannel, body); err != nil {
		log.Printf("audit: redis publish failed: %v", err)
	}
}

func (s *Sink) insertRound(rec engine.RoundRecord) {
	if s.pool == nil {
		return
	}

	detail, err := compressDetail(rec)
	if err != nil {
		log.Printf("audit: compress round %d detail failed: %v", rec.Sequence, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		log.Printf("audit: begin tx for round %d failed: %v", rec.Sequence, err)
		return
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO rounds (sequence, explosion, bet_count, bet_sum, house_profit_delta, started_at, closed_at, exploded_at, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (sequence) DO NOTHING`,
		rec.Sequence, rec.Explosion, rec.BetCount, rec.BetSum, rec.HouseProfitDelta,
		rec.Started, rec.Closed, rec.Exploded, detail)
	if err != nil {
		log.Printf("audit: insert round %d failed: %v", rec.Sequence, err)
		return
	}

	for _, p := range rec.Players {
		_, err = tx.Exec(ctx, `
			INSERT INTO round_bets (round_sequence, player_id, bet, cashed_out, cashout_multiplier, payout, profit_delta)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rec.Sequence, p.ID, p.Bet, p.CashedOut, p.CashoutMultiplier, p.Payout, p.ProfitDelta)
		if err != nil {
			log.Printf("audit: insert bet for round %d player %d failed: %v", rec.Sequence, p.ID, err)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("audit: commit round %d failed: %v", rec.Sequence, err)
	}
}

// compressDetail gzip-compresses the full round record as JSON for the
// rounds.detail column, keeping the per-player breakdown out of the hot
// indexed columns above.
func compressDetail(rec engine.RoundRecord) ([]byte, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
