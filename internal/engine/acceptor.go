package engine

import (
	"fmt"
	"net"
	"time"

	"crashline/internal/wire"
)

// keepAlivePeriod matches the interval the la2go gameserver's accept loop
// uses to detect half-open peers before the OS does.
const keepAlivePeriod = 30 * time.Second

// Listen binds a TCP listener on network ("v6" selects tcp6, anything else
// tcp4) and port, ready for Serve.
func Listen(network string, port int) (net.Listener, error) {
	proto := "tcp4"
	if network == "v6" {
		proto = "tcp6"
	}
	return net.Listen(proto, fmt.Sprintf(":%d", port))
}

// Serve accepts connections on ln until it is closed, admitting each into
// the engine's player table and spawning its handler goroutine. A
// connection arriving when the table is full is told bye and closed
// immediately, never counted as a player.
func (e *Engine) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go e.admit(conn)
	}
}

func (e *Engine) admit(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetKeepAlive(true)
		tcp.SetKeepAlivePeriod(keepAlivePeriod)
	}

	id, err := e.table.Admit(conn, "")
	if err != nil {
		wire.SendAll(conn, wire.Frame{Type: wire.TypeBye})
		conn.Close()
		return
	}

	e.state.RegisterPlayer(id)
	logEvent("connect", idTag(id), 0, 0, 0, 0, 0, 0, 0, 0)
	e.handleConnection(id, conn)
}
