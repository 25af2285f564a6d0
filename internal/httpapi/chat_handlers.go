package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/satya-2810/AI-Voice-Agent/internal/agent"
	"github.com/satya-2810/AI-Voice-Agent/internal/convstore"
)

// handleAgentChat runs a full batch voice turn: the uploaded audio is
// spooled to a temp file, transcribed, answered and synthesized.
func (r *Router) handleAgentChat(w http.ResponseWriter, req *http.Request) {
	sessionID := req.PathValue("sessionID")
	if strings.TrimSpace(sessionID) == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	req.Body = http.MaxBytesReader(w, req.Body, r.cfg.MaxUploadBytes)
	if err := req.ParseMultipartForm(r.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, header, err := req.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing audio file")
		return
	}
	defer file.Close()

	// Spool to a temp file scoped to this request. The file is removed
	// on every exit path, success or failure.
	tmp, err := os.CreateTemp(r.cfg.TempDir, "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		captureError(req, err, "chat: failed to create temp file")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		captureError(req, err, "chat: failed to write upload")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if err := tmp.Close(); err != nil {
		captureError(req, err, "chat: failed to close temp file")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	r.logger.Printf("chat: session %s received %s (%d bytes)", sessionID, header.Filename, header.Size)

	result, err := r.agent.RunAudioTurn(req.Context(), sessionID, tmpPath)
	if err != nil {
		if errors.Is(err, agent.ErrSessionBusy) {
			writeError(w, http.StatusTooManyRequests, "a turn is already in progress for this session")
			return
		}
		captureError(req, err, fmt.Sprintf("chat: turn failed for session %s", sessionID))
		writeError(w, http.StatusInternalServerError, "turn failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type llmQueryRequest struct {
	Text string `json:"text"`
}

type llmQueryResponse struct {
	Text        string `json:"text"`
	AudioBase64 string `json:"audio_base64"`
}

// handleLLMQuery answers raw text with no session history attached.
func (r *Router) handleLLMQuery(w http.ResponseWriter, req *http.Request) {
	var body llmQueryRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reply, err := r.agent.GenerateOnly(req.Context(), body.Text)
	if err != nil {
		if errors.Is(err, convstore.ErrEmptyContent) {
			writeError(w, http.StatusBadRequest, "text must not be empty")
			return
		}
		captureError(req, err, "llm: query failed")
		writeError(w, http.StatusBadGateway, "generation failed")
		return
	}

	writeJSON(w, http.StatusOK, llmQueryResponse{Text: reply})
}

type historyResponse struct {
	SessionID string              `json:"session_id"`
	Messages  []convstore.Message `json:"messages"`
	Count     int                 `json:"count"`
}

func (r *Router) handleAgentHistory(w http.ResponseWriter, req *http.Request) {
	sessionID := req.PathValue("sessionID")
	if strings.TrimSpace(sessionID) == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	messages := r.agent.History(sessionID)
	if messages == nil {
		messages = []convstore.Message{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		SessionID: sessionID,
		Messages:  messages,
		Count:     len(messages),
	})
}

func (r *Router) handleAgentClear(w http.ResponseWriter, req *http.Request) {
	sessionID := req.PathValue("sessionID")
	if strings.TrimSpace(sessionID) == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	r.agent.ClearSession(sessionID)
	r.logger.Printf("chat: session %s history cleared", sessionID)
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"status":     "cleared",
	})
}

func (r *Router) handleAgentSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"active_sessions": r.agent.SessionCount(),
	})
}
