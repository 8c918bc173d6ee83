package plug

import (
	"io"

	"github.com/gorilla/websocket"
)

// websocketStream adapts a gorilla websocket connection to the duplex byte
// stream the rest of the package consumes. Each Write sends one binary
// message; Read consumes binary messages in order, ignoring message
// boundaries.
type websocketStream struct {
	ws *websocket.Conn
	r  io.Reader // current message reader, nil between messages
}

// NewWebsocketStream wraps ws so it can be used with Channel.Seize, NewConn
// or Strip.Attach. The websocket connection must not be used directly
// afterwards. A clean websocket close surfaces as io.EOF.
func NewWebsocketStream(ws *websocket.Conn) io.ReadWriteCloser {
	return &websocketStream{ws: ws}
}

func (s *websocketStream) Read(p []byte) (int, error) {
	for {
		if s.r == nil {
			mt, r, err := s.ws.NextReader()
			if err != nil {
				if websocket.IsCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseNoStatusReceived) {
					err = io.EOF
				}
				return 0, err
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			s.r = r
		}
		n, err := s.r.Read(p)
		if err == io.EOF {
			s.r = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (s *websocketStream) Write(p []byte) (int, error) {
	if err := s.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *websocketStream) Close() error {
	return s.ws.Close()
}
