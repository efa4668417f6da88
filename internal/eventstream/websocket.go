package eventstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/muurk/fleetsync/internal/codec"
	"github.com/muurk/fleetsync/internal/fleetapi"
	"github.com/muurk/fleetsync/internal/logging"
	"github.com/muurk/fleetsync/internal/reconcile"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// Message types.
const (
	TypeSnapshot = "snapshot"
	TypeEvent    = "event"
)

// Message is one websocket text frame. Data keeps large identifiers as
// bare integers, so decode it with the codec package.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EventPayload is the data of an event message. Kind is set on warning and
// rolled_back events.
type EventPayload struct {
	reconcile.Event
	Kind string `json:"kind,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// read-only stream
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", c.Request.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	remoteAddr := conn.RemoteAddr().String()
	s.wg.Add(1)
	defer s.wg.Done()
	s.track(remoteAddr, conn)
	logging.LogConnection(remoteAddr, "websocket_upgraded")

	events, unsubscribe := s.source.Subscribe(s.config.Buffer)
	defer func() {
		unsubscribe()
		s.untrack(remoteAddr)
		_ = conn.Close()
		logging.LogConnection(remoteAddr, "websocket_closed")
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go readUntilClosed(conn, remoteAddr, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	messageNum := 0
	send := func(msgType string, data any) error {
		messageNum++
		return s.writeMessage(conn, remoteAddr, messageNum, msgType, data)
	}

	if err := send(TypeSnapshot, s.source.Snapshot()); err != nil {
		logging.Info("Initial snapshot write failed",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logging.Info("Ping failed", zap.String("remote_addr", remoteAddr), zap.Error(err))
				return
			}
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "engine closed"),
					time.Now().Add(writeWait))
				return
			}
			if err := send(TypeEvent, NewEventPayload(ev)); err != nil {
				logging.Info("Event write failed", zap.String("remote_addr", remoteAddr), zap.Error(err))
				return
			}
		}
	}
}

// NewEventPayload adds the failure kind to ev.
func NewEventPayload(ev reconcile.Event) EventPayload {
	p := EventPayload{Event: ev}
	if ev.Err != nil {
		p.Kind = ev.Err.Kind.String()
	}
	return p
}

// readUntilClosed drains client frames so control frames are processed and
// a disconnect is noticed.
func readUntilClosed(conn *websocket.Conn, remoteAddr string, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			logging.Debug("Client read loop ended",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			return
		}
	}
}

func (s *Server) writeMessage(conn *websocket.Conn, remoteAddr string, messageNum int, msgType string, data any) error {
	payload, err := codec.Encode(data, nil)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}
	frame, err := codec.Encode(Message{Type: msgType, Data: payload}, nil)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	logging.Debug("Sent event stream message",
		zap.String("remote_addr", remoteAddr),
		zap.Int("message_num", messageNum),
		zap.String("type", msgType),
		zap.Int("length", len(frame)),
	)
	SaveMessageToCapture(remoteAddr, messageNum, msgType, frame, s.config.CaptureDir)
	return nil
}

// CapturedMessage is one line of a capture file.
type CapturedMessage struct {
	Timestamp  time.Time       `json:"timestamp"`
	MessageNum int             `json:"message_num"`
	RemoteAddr string          `json:"remote_addr"`
	Type       string          `json:"type"`
	Frame      json.RawMessage `json:"frame"`
}

var captureMu sync.Mutex

// SaveMessageToCapture appends a sent frame to a daily JSONL file in
// captureDir. It does nothing when captureDir is empty.
func SaveMessageToCapture(remoteAddr string, messageNum int, msgType string, frame []byte, captureDir string) {
	if captureDir == "" {
		return
	}

	timestamp := time.Now()
	filename := filepath.Join(captureDir, fmt.Sprintf("events-%s.jsonl", timestamp.Format("20060102")))

	line, err := json.Marshal(CapturedMessage{
		Timestamp:  timestamp,
		MessageNum: messageNum,
		RemoteAddr: remoteAddr,
		Type:       msgType,
		Frame:      frame,
	})
	if err != nil {
		logging.Error("Failed to marshal captured message", zap.Error(err))
		return
	}

	captureMu.Lock()
	defer captureMu.Unlock()

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logging.Error("Failed to open capture file",
			zap.String("filename", filename),
			zap.Error(err),
		)
		return
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		logging.Error("Failed to write to capture file",
			zap.String("filename", filename),
			zap.Error(err),
		)
	}
}

// Client reads an event stream.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to a stream URL such as ws://127.0.0.1:8090/events.
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})
	return &Client{conn: conn}, nil
}

// Next blocks for the next message.
func (c *Client) Next() (Message, error) {
	var msg Message
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := codec.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}

// Snapshot decodes the data of a snapshot message.
func (m Message) Snapshot() ([]fleetapi.Device, error) {
	var devices []fleetapi.Device
	err := codec.Unmarshal(m.Data, &devices)
	return devices, err
}

// Event decodes the data of an event message.
func (m Message) Event() (EventPayload, error) {
	var p EventPayload
	err := codec.Unmarshal(m.Data, &p)
	return p, err
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return c.conn.Close()
}

// Watch calls fn for every message until ctx is done, the server closes the
// stream, or fn returns an error.
func Watch(ctx context.Context, url string, fn func(Message) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client, err := Dial(ctx, url)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = client.Close()
	}()

	for {
		msg, err := client.Next()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}
