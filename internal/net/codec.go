package net

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/planetilt/host/internal/net/packet"
)

const maxFrameSize = 64 << 10

// readFrame reads one websocket message. Control frames are handled by the
// connection; only text and binary messages are returned.
func readFrame(conn *websocket.Conn, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("set read deadline: %w", err)
		}
	}
	kind, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
		return nil, fmt.Errorf("unexpected frame kind %d", kind)
	}
	return data, nil
}

// writeFrame writes one message using the frame kind of enc.
func writeFrame(conn *websocket.Conn, enc packet.Encoding, data []byte, timeout time.Duration) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(frameKind(enc), data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func frameKind(enc packet.Encoding) int {
	if enc == packet.EncodingMsgpack {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
