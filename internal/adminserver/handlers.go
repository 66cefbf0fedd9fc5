package adminserver

import (
	"sort"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"gonum.org/v1/gonum/stat"
)

func (s *Server) metricsHandler(c *fiber.Ctx) error {
	snap := s.eng.State().Snapshot()
	return c.JSON(fiber.Map{
		"phase":          snap.Phase.String(),
		"occupied":       s.eng.Table().Count(),
		"multiplier":     snap.Multiplier,
		"explosion":      snap.Explosion,
		"bet_count":      snap.BetCount,
		"bet_sum":        snap.BetSum,
		"house_profit":   snap.HouseProfit,
		"dropped_events": s.ring.droppedCount(),
	})
}

func (s *Server) recentRoundsHandler(c *fiber.Ctx) error {
	return c.JSON(s.ring.recent())
}

// multiplierStatsHandler summarizes the explosion points of recently
// recorded rounds (mean, standard deviation, and selected percentiles) with
// gonum/stat, the numeric-summary library the broader example pack reaches
// for rather than hand-rolling the same arithmetic.
func (s *Server) multiplierStatsHandler(c *fiber.Ctx) error {
	values := s.ring.explosionValues()
	if len(values) == 0 {
		return c.JSON(fiber.Map{"count": 0})
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	return c.JSON(fiber.Map{
		"count":  len(sorted),
		"mean":   mean,
		"stddev": std,
		"p50":    stat.Quantile(0.50, stat.Empirical, sorted, nil),
		"p90":    stat.Quantile(0.90, stat.Empirical, sorted, nil),
		"p99":    stat.Quantile(0.99, stat.Empirical, sorted, nil),
	})
}

// spectateHandler mirrors every broadcast frame to a read-only WebSocket
// spectator as JSON. Any inbound message is read and discarded; spectators
// cannot place bets or cash out through this connection.
func (s *Server) spectateHandler(conn *websocket.Conn) {
	ch := s.ring.subscribe()
	defer s.ring.unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
