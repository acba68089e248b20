package session

import (
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// stripFrameHeader removes a leading 8-byte stream-multiplex header when
// one is present: data longer than 8 bytes whose first byte is 0, 1, or 2
// (stdin/stdout/stderr) is assumed to carry one, matching the exec
// transport's framing convention.
func stripFrameHeader(data []byte) []byte {
	if len(data) > 8 && (data[0] == 0 || data[0] == 1 || data[0] == 2) {
		return data[8:]
	}
	return data
}

// pumpPair runs two goroutines bridging a WebSocket connection and a
// duplex byte stream (the console's PTY-attached exec; the VNC proxy
// runs its own pair of loops) and waits for either direction to end. A shared done channel,
// closed exactly once, is how either side signals the other to stop —
// the Go equivalent of the shared "alive" flag flipped by either pump.
type pumpPair struct {
	done     chan struct{}
	closeOne sync.Once
}

func newPumpPair() *pumpPair {
	return &pumpPair{done: make(chan struct{})}
}

func (p *pumpPair) stop() {
	p.closeOne.Do(func() { close(p.done) })
}

// pumpStreamToWS copies r's output to conn as text frames until r errs,
// the pair is stopped, or the connection write fails.
func (p *pumpPair) pumpStreamToWS(conn *websocket.Conn, r io.Reader) {
	defer p.stop()
	buf := make([]byte, 4096)
	for {
		select {
		case <-p.done:
			return
		default:
		}
		n, err := r.Read(buf)
		if n > 0 {
			chunk := stripFrameHeader(buf[:n])
			if len(chunk) > 0 {
				if werr := conn.WriteMessage(websocket.TextMessage, chunk); werr != nil {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// pumpWSToStream copies conn's incoming frames to w until the connection
// errs/closes or the pair is stopped.
func (p *pumpPair) pumpWSToStream(conn *websocket.Conn, w io.Writer) {
	defer p.stop()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if _, err := w.Write(data); err != nil {
			return
		}
		select {
		case <-p.done:
			return
		default:
		}
	}
}
