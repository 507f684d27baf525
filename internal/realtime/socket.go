package realtime

import (
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// ServeSocket pumps hub frames to conn until the client goes away or the subscription ends.
// The first frame announces the socket id clients echo back as X-Socket-ID.
func ServeSocket(conn *websocket.Conn, sub *Subscriber, writeTimeout time.Duration, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	hello := Frame{Event: EventConnectionEstablished, Channel: sub.Channel, SocketID: sub.SocketID}
	if err := writeFrame(conn, hello, writeTimeout); err != nil {
		logger.Debug("socket handshake write failed", zap.String("socket_id", sub.SocketID), zap.Error(err))
		return
	}

	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-readErr:
			return
		case frame, ok := <-sub.Frames():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closed"),
					time.Now().Add(writeTimeout))
				return
			}
			if err := writeFrame(conn, frame, writeTimeout); err != nil {
				logger.Debug("socket write failed", zap.String("socket_id", sub.SocketID), zap.Error(err))
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, frame Frame, timeout time.Duration) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}
