// Command client is the terminal front-end for crashline: it connects to a
// running server, lets the player place bets and cash out from stdin, and
// renders the broadcast round state to stdout. It carries no game logic of
// its own — every decision (accept/reject a bet, compute a payout) is made
// server-side; the client only encodes/decodes wire.Frame and displays what
// it is told.
package main

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/mattn/go-runewidth"

	"crashline/internal/wire"
)

// maxNickWidth is the display budget for -nick, measured in graphical
// columns (East-Asian-width aware) rather than byte or rune count.
const maxNickWidth = 13

func main() {
	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}

	ip := os.Args[1]
	port := os.Args[2]
	nick := normalizeNick(getFlag("-nick", "player"))

	conn, err := net.Dial("tcp", net.JoinHostPort(ip, port))
	if err != nil {
		log.Fatalf("client: dial %s:%s: %v", ip, port, err)
	}
	defer conn.Close()

	fmt.Printf("connected as %q to %s — type \"bet <amount>\", \"cashout\", or \"quit\"\n", nick, conn.RemoteAddr())

	done := make(chan struct{})
	go readLoop(conn, nick, done)
	writeLoop(conn, os.Stdin)

	<-done
}

// normalizeNick truncates name to maxNickWidth graphical columns, the way
// the pack's runewidth-consuming example measures display width rather
// than rune or byte count. The nickname is never sent on the wire; it is
// purely local display.
func normalizeNick(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "player"
	}
	if runewidth.StringWidth(name) <= maxNickWidth {
		return name
	}
	return runewidth.Truncate(name, maxNickWidth, "")
}

// writeLoop reads commands from in until EOF or a quit command, translating
// each into a wire.Frame sent to conn. It owns no state the reader depends
// on, so it can return independently of the connection's lifetime.
func writeLoop(conn net.Conn, in *os.File) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		frame, quit, err := parseCommand(line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		if err := wire.SendAll(conn, frame); err != nil {
			fmt.Printf("send failed: %v\n", err)
			return
		}
		if quit {
			return
		}
	}
}

// parseCommand turns one line of stdin into the frame it produces. Returns
// quit=true for "quit"/"exit", after which the caller should stop reading.
func parseCommand(line string) (frame wire.Frame, quit bool, err error) {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "bet":
		if len(fields) != 2 {
			return wire.Frame{}, false, fmt.Errorf("usage: bet <amount>")
		}
		amount, perr := strconv.ParseFloat(fields[1], 32)
		if perr != nil || amount <= 0 {
			return wire.Frame{}, false, fmt.Errorf("invalid bet amount %q", fields[1])
		}
		return wire.Frame{Type: wire.TypeBet, Value: float32(amount)}, false, nil
	case "cashout":
		return wire.Frame{Type: wire.TypeCashout}, false, nil
	case "quit", "exit":
		return wire.Frame{Type: wire.TypeBye}, true, nil
	default:
		return wire.Frame{}, false, fmt.Errorf("unrecognized command %q", fields[0])
	}
}

// readLoop renders every frame broadcast or addressed to this connection
// until the peer disconnects, then closes done.
func readLoop(conn net.Conn, nick string, done chan struct{}) {
	defer close(done)

	var bar *pb.ProgressBar
	for {
		frame, err := wire.RecvAll(conn)
		if err != nil {
			fmt.Printf("%s: disconnected (%v)\n", nick, err)
			return
		}

		switch frame.Type {
		case wire.TypeStart:
			fmt.Println("--- betting window open ---")
		case wire.TypeClosed:
			fmt.Printf("betting closed, this round explodes at %.2fx\n", frame.Value)
		case wire.TypeMultiplier:
			if bar == nil {
				bar = pb.StartNew(100)
				bar.SetTemplateString(`{{ "flight:" }} {{counters . }} {{ etime . }}`)
			}
			cur := int64(frame.Value * 100)
			if cur > bar.Total() {
				bar.SetTotal(cur + 100)
			}
			bar.SetCurrent(cur)
		case wire.TypeExplode:
			if bar != nil {
				bar.Finish()
				bar = nil
			}
			fmt.Printf("--- exploded at %.2fx ---\n", frame.Value)
		case wire.TypePayout:
			fmt.Printf("cashed out for %.2f (profit %.2f, house %.2f)\n", frame.Value, frame.PlayerProfit, frame.HouseProfit)
		case wire.TypeProfit:
			fmt.Printf("your profit now %.2f (house %.2f)\n", frame.PlayerProfit, frame.HouseProfit)
		case wire.TypeBye:
			fmt.Println("server closed the connection")
			if bar != nil {
				bar.Finish()
			}
			return
		default:
			fmt.Printf("unrecognized frame type %q\n", frame.Type)
		}
	}
}

func getFlag(name, defaultVal string) string {
	for i, arg := range os.Args {
		if arg == name && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
	}
	return defaultVal
}

func printUsage() {
	fmt.Println("crashline client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  client <ip> <port> [-nick <name>]")
}
