package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/satya-2810/AI-Voice-Agent/internal/agent"
	"github.com/satya-2810/AI-Voice-Agent/internal/stt"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEvent is the JSON frame sent back over the /media socket. "partial"
// carries advisory transcript progress, "turn" carries one completed
// turn, "error" reports a failed turn without closing the socket.
type wsEvent struct {
	Type       string            `json:"type"`
	SessionID  string            `json:"session_id"`
	Text       string            `json:"text,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	Turn       *agent.TurnResult `json:"turn,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// mediaSession manages a single streaming conversation over one
// WebSocket connection. Inbound binary frames carry raw PCM audio;
// outbound frames are JSON events.
type mediaSession struct {
	sessionID string

	conn   *websocket.Conn
	connMu sync.Mutex

	sttClient stt.StreamClient
	agent     *agent.Orchestrator
	logger    *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func (r *Router) handleMediaWS(w http.ResponseWriter, req *http.Request) {
	if r.cfg.AssemblyAIAPIKey == "" {
		r.logger.Printf("media_ws: missing AssemblyAI API key")
		captureError(req, errors.New("streaming transcription not configured"), "media_ws: configuration error")
		http.Error(w, "streaming transcription not configured", http.StatusServiceUnavailable)
		return
	}

	if !r.registry.Add() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer r.registry.Done()

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("media_ws: upgrade failed: %v", err)
		return
	}

	sessionID := req.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(req.Context())

	sttClient, err := r.dialStream(ctx, stt.RealtimeConfig{
		APIKey:      r.cfg.AssemblyAIAPIKey,
		URL:         r.cfg.RealtimeURL,
		SampleRate:  r.cfg.SampleRate,
		Encoding:    r.cfg.AudioEncoding,
		FormatTurns: true,
	})
	if err != nil {
		r.logger.Printf("media_ws: failed to connect to transcription backend: %v", err)
		captureError(req, err, "media_ws: STT connect failed")
		_ = conn.WriteJSON(wsEvent{Type: "error", SessionID: sessionID, Error: "transcription backend unavailable"})
		conn.Close()
		cancel()
		return
	}

	session := &mediaSession{
		sessionID: sessionID,
		conn:      conn,
		sttClient: sttClient,
		agent:     r.agent,
		logger:    r.logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	r.logger.Printf("media_ws: session %s connected", sessionID)
	session.run()
}

func (s *mediaSession) run() {
	defer s.cleanup()

	go s.processResults()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Printf("media_ws: session %s closed", s.sessionID)
			} else {
				s.logger.Printf("media_ws: session %s read error: %v", s.sessionID, err)
			}
			return
		}

		if msgType != websocket.BinaryMessage {
			// Text frames from the client are ignored; the inbound
			// protocol is audio only.
			continue
		}

		if err := s.sttClient.SendAudio(msg); err != nil {
			if errors.Is(err, stt.ErrChannelClosed) {
				return
			}
			s.logger.Printf("media_ws: session %s audio forward error: %v", s.sessionID, err)
		}
	}
}

// processResults consumes transcription events and drives turns. Each
// final transcript triggers one full generate+synthesize turn whose
// result is pushed back over the socket.
func (s *mediaSession) processResults() {
	for {
		select {
		case <-s.ctx.Done():
			return

		case err, ok := <-s.sttClient.Errors():
			if !ok {
				return
			}
			s.logger.Printf("media_ws: session %s STT error: %v", s.sessionID, err)
			s.writeEvent(wsEvent{Type: "error", SessionID: s.sessionID, Error: "transcription failed"})
			// Terminal: unblock the connection reader so run() can clean up.
			s.cancel()
			s.conn.Close()
			return

		case result, ok := <-s.sttClient.Results():
			if !ok {
				return
			}
			if result.Text == "" {
				continue
			}

			if !result.IsFinal {
				s.writeEvent(wsEvent{
					Type:       "partial",
					SessionID:  s.sessionID,
					Text:       result.Text,
					Confidence: result.Confidence,
				})
				continue
			}

			s.logger.Printf("media_ws: session %s utterance: %s", s.sessionID, result.Text)

			turn, err := s.agent.RunTranscribedTurn(s.ctx, s.sessionID, result.Text)
			if err != nil {
				if errors.Is(err, agent.ErrSessionBusy) {
					s.logger.Printf("media_ws: session %s dropped utterance, turn in progress", s.sessionID)
					s.writeEvent(wsEvent{Type: "error", SessionID: s.sessionID, Error: "turn already in progress"})
					continue
				}
				s.logger.Printf("media_ws: session %s turn failed: %v", s.sessionID, err)
				s.writeEvent(wsEvent{Type: "error", SessionID: s.sessionID, Error: "turn failed"})
				continue
			}

			s.writeEvent(wsEvent{Type: "turn", SessionID: s.sessionID, Turn: turn})
		}
	}
}

func (s *mediaSession) writeEvent(ev wsEvent) {
	s.connMu.Lock()
	err := s.conn.WriteJSON(ev)
	s.connMu.Unlock()
	if err != nil {
		s.logger.Printf("media_ws: session %s write error: %v", s.sessionID, err)
	}
}

func (s *mediaSession) cleanup() {
	s.cancel()

	if s.sttClient != nil {
		_ = s.sttClient.Close()
	}

	s.connMu.Lock()
	s.conn.Close()
	s.connMu.Unlock()

	s.logger.Printf("media_ws: session %s cleaned up", s.sessionID)
}
