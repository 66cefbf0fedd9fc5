package engine

import "log"

// logEvent emits one line per event in the fixed field order the spec
// requires. id is either a player id or "*" for a broadcast / unattributable
// event; unused numeric fields are passed as zero.
func logEvent(event string, id string, m, me float32, n int, v, bet, payout, playerProfit, houseProfit float64) {
	log.Printf(
		"event=%s | id=%s | m=%.2f | me=%.2f | N=%d | V=%.2f | bet=%.2f | payout=%.2f | player_profit=%.2f | house_profit=%.2f",
		event, id, m, me, n, v, bet, payout, playerProfit, houseProfit,
	)
}
