package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/canny86/FilaCore/internal/auth"
	"github.com/canny86/FilaCore/internal/command"
)

// Stream frame types.
const (
	StreamTypeReport = "report"
	StreamTypeError  = "error"
	StreamTypeEnd    = "end"

	// streamSendBufferSize is the outbound frame buffer of one stream.
	streamSendBufferSize = 64

	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

// StreamMessage is one frame sent on the report stream.
type StreamMessage struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// streamTracker counts open report streams.
type streamTracker struct {
	active atomic.Int64
}

func (t *streamTracker) add(delta int64) { t.active.Add(delta) }

func (t *streamTracker) count() int { return int(t.active.Load()) }

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// handleStream relays device reports of the active printer over a WebSocket
// for the configured stream duration, then sends an end frame and closes.
//
// With authentication enabled the caller presents a ticket from
// POST /auth/ws-ticket as the ticket query parameter.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.authEnabled() {
		ticket := r.URL.Query().Get("ticket")
		if ticket == "" {
			writeUnauthorized(w, "ticket query parameter is required")
			return
		}
		entry, ok := s.tickets.consume(ticket)
		if !ok {
			writeUnauthorized(w, "invalid or expired ticket")
			return
		}
		if !auth.HasPermission(entry.role, auth.PermPrinterOperate) {
			writeError(w, http.StatusForbidden, ErrCodeForbidden, "insufficient permissions")
			return
		}
	}

	// Fail before the upgrade while a plain HTTP error is still possible.
	if _, err := s.printers.Active(); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.streams.add(1)
	defer s.streams.add(-1)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	send := make(chan []byte, streamSendBufferSize)
	writerDone := make(chan struct{})
	go s.streamWritePump(conn, send, writerDone)
	go s.streamReadPump(conn, cancel)

	s.logger.Debug("report stream opened", "remote", r.RemoteAddr)

	err = s.commands.StreamActive(ctx, func(reply command.Reply) error {
		s.enqueue(send, StreamMessage{Type: StreamTypeReport, Payload: reply})
		return nil
	})

	switch {
	case err == nil:
		s.enqueue(send, StreamMessage{Type: StreamTypeEnd})
	case errors.Is(err, context.Canceled):
		s.logger.Debug("report stream cancelled", "remote", r.RemoteAddr)
	default:
		_, code, ok := classifyError(err)
		if !ok {
			code = ErrCodeInternal
		}
		s.logger.Warn("report stream failed", "error", err)
		s.enqueue(send, StreamMessage{Type: StreamTypeError, Code: code, Message: err.Error()})
	}

	close(send)
	<-writerDone
	conn.Close() //nolint:errcheck // reader exits on close
}

// enqueue hands a frame to the write pump. Frames are dropped when the
// client falls behind.
func (s *Server) enqueue(send chan<- []byte, msg StreamMessage) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal stream frame", "error", err)
		return
	}

	select {
	case send <- data:
	default:
		s.logger.Debug("stream client lagging, dropping frame", "type", msg.Type)
	}
}

// streamWritePump owns all writes to conn. It drains send until it is
// closed, pinging the client in between, then sends a close frame.
func (s *Server) streamWritePump(conn *websocket.Conn, send <-chan []byte, done chan<- struct{}) {
	defer close(done)

	pingInterval, pongWait := s.keepalive()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	broken := false
	for {
		select {
		case message, ok := <-send:
			if !ok {
				if !broken {
					//nolint:errcheck // Best-effort close message
					conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(pongWait))
				}
				return
			}
			if broken {
				continue
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				broken = true
			}
		case <-ticker.C:
			if broken {
				continue
			}
			//nolint:errcheck // Best-effort deadline; ping error caught below
			conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				broken = true
			}
		}
	}
}

// streamReadPump discards client frames and cancels the stream when the
// client disconnects or stops answering pings.
func (s *Server) streamReadPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	if s.wsCfg.MaxMessageSize > 0 {
		conn.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	}
	pingInterval, pongWait := s.keepalive()
	//nolint:errcheck // Best-effort deadline on connection setup
	conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("stream read error", "error", err)
			}
			return
		}
	}
}

func (s *Server) keepalive() (pingInterval, pongWait time.Duration) {
	pingInterval = time.Duration(s.wsCfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	pongWait = time.Duration(s.wsCfg.PongTimeout) * time.Second
	if pongWait <= 0 {
		pongWait = defaultPongTimeout
	}
	return pingInterval, pongWait
}
