package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tt-analysis/internal/analysis"
	"tt-analysis/internal/observability"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsIdleTimeout  = 5 * time.Minute
)

// handleStream upgrades to a WebSocket and analyzes each AnalyzeRequest the
// client sends. For every request the server replies with one "row" message
// per scenario, in order, then a "done" or "error" message.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		observability.RecordHTTPRequest("/ws/analyze", http.StatusBadRequest)
		return
	}
	defer conn.Close()

	observability.RecordHTTPRequest("/ws/analyze", http.StatusSwitchingProtocols)
	observability.WSSessionStarted()
	defer observability.WSSessionEnded()

	conn.SetReadLimit(maxRequestBytes)

	for {
		conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Printf("ws read: %v", err)
			}
			return
		}

		var req AnalyzeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			// Malformed request: report it and keep the session open
			if err := s.send(conn, StreamMessage{Type: "error", Error: &ErrorResponse{Error: "decode request: " + err.Error()}}); err != nil {
				return
			}
			continue
		}

		var writeErr error
		result, err := s.analyze(r.Context(), "ws", &req, func(o analysis.RowOutcome) {
			if writeErr != nil {
				return
			}
			row := newRowJSON(o)
			writeErr = s.send(conn, StreamMessage{Type: "row", Row: &row})
		})
		if writeErr != nil {
			s.logger.Printf("ws write: %v", writeErr)
			return
		}

		msg := StreamMessage{Type: "done"}
		if err != nil {
			_, resp := errorResponse(err)
			msg = StreamMessage{Type: "error", Error: &resp}
		} else {
			msg.RunID = result.RunID
			msg.Solved = len(result.Results)
			msg.Failed = len(result.Failures)
		}
		if err := s.send(conn, msg); err != nil {
			s.logger.Printf("ws write: %v", err)
			return
		}
	}
}

// send writes msg as one text frame. A message that cannot be encoded is
// replaced by an "error" message so the client never sees an empty frame.
func (s *Server) send(conn *websocket.Conn, msg StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Printf("ws encode %s message: %v", msg.Type, err)
		data, err = json.Marshal(StreamMessage{
			Type:  "error",
			Error: &ErrorResponse{Error: "failed to encode " + msg.Type + " message"},
		})
		if err != nil {
			return fmt.Errorf("encode error message: %w", err)
		}
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}
