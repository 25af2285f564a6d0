// Package agent ties transcription, generation and synthesis together
// into one turn pipeline per session, with single-flight turn
// processing and fail-soft degradation.
package agent

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/satya-2810/AI-Voice-Agent/internal/convstore"
	"github.com/satya-2810/AI-Voice-Agent/internal/llm"
	"github.com/satya-2810/AI-Voice-Agent/internal/stt"
	"github.com/satya-2810/AI-Voice-Agent/internal/tts"
)

// ErrSessionBusy is returned when a turn is requested for a session
// that already has one in flight.
var ErrSessionBusy = errors.New("agent: session busy")

// Turn statuses reported to clients.
const (
	StatusSuccess   = "success"
	StatusTTSFailed = "tts_failed"
	StatusError     = "error"
)

// Turn pipeline states. A session not present in the active map is
// Idle; Completed and Failed are terminal and clear the entry.
type turnState string

const (
	stateListening    turnState = "listening"
	stateTranscribing turnState = "transcribing"
	stateGenerating   turnState = "generating"
	stateSynthesizing turnState = "synthesizing"
)

// Fallback texts for degraded turns.
const (
	sttApology = "Sorry, I couldn't make out any speech in that audio. Could you try again?"
	llmApology = "Sorry, I'm having trouble coming up with a reply right now."
)

// TurnResult is the combined outcome of one turn, always well-formed
// even for degraded outcomes.
type TurnResult struct {
	SessionID     string `json:"session_id"`
	Transcription string `json:"transcription"`
	Reply         string `json:"ai_response"`
	AudioBase64   string `json:"audio_base64"`
	Status        string `json:"status"`
}

// Config holds the orchestrator's collaborators and policy knobs.
type Config struct {
	Store         *convstore.Store
	Transcriber   stt.Transcriber
	Generator     llm.Client
	Synthesizer   tts.Client
	Logger        *log.Logger
	HistoryWindow int    // Messages included in the prompt window (default 5)
	VoiceID       string // Default synthesis voice
}

// Orchestrator drives the per-session turn state machine.
type Orchestrator struct {
	store         *convstore.Store
	transcriber   stt.Transcriber
	generator     llm.Client
	synthesizer   tts.Client
	logger        *log.Logger
	historyWindow int
	voiceID       string

	mu     sync.Mutex
	active map[string]turnState
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	window := cfg.HistoryWindow
	if window <= 0 {
		window = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		store:         cfg.Store,
		transcriber:   cfg.Transcriber,
		generator:     cfg.Generator,
		synthesizer:   cfg.Synthesizer,
		logger:        logger,
		historyWindow: window,
		voiceID:       cfg.VoiceID,
		active:        make(map[string]turnState),
	}
}

// beginTurn claims the session's turn lock. A session already past
// Idle rejects the new turn rather than interleaving.
func (o *Orchestrator) beginTurn(sessionID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.active[sessionID]; busy {
		return ErrSessionBusy
	}
	o.active[sessionID] = stateListening
	return nil
}

func (o *Orchestrator) setState(sessionID string, state turnState) {
	o.mu.Lock()
	o.active[sessionID] = state
	o.mu.Unlock()
	o.logger.Printf("agent: session %s -> %s", sessionID, state)
}

// endTurn releases the turn lock, returning the session to Idle.
func (o *Orchestrator) endTurn(sessionID string) {
	o.mu.Lock()
	delete(o.active, sessionID)
	o.mu.Unlock()
}

// RunAudioTurn executes a full batch turn: transcribe the uploaded
// audio, generate a reply from the session's recent history, then
// synthesize it. Only ErrSessionBusy is returned as an error; every
// other failure mode yields a well-formed degraded TurnResult.
func (o *Orchestrator) RunAudioTurn(ctx context.Context, sessionID, audioPath string) (*TurnResult, error) {
	if err := o.beginTurn(sessionID); err != nil {
		return nil, err
	}
	defer o.endTurn(sessionID)

	o.setState(sessionID, stateTranscribing)
	transcript, err := o.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		// Strict policy: a failed transcription aborts the turn before
		// any history write.
		o.logger.Printf("agent: session %s transcription failed: %v", sessionID, err)
		return &TurnResult{
			SessionID: sessionID,
			Reply:     sttApology,
			Status:    StatusError,
		}, nil
	}
	if strings.TrimSpace(transcript) == "" {
		o.logger.Printf("agent: session %s produced an empty transcript", sessionID)
		return &TurnResult{
			SessionID: sessionID,
			Reply:     sttApology,
			Status:    StatusError,
		}, nil
	}

	return o.completeTurn(ctx, sessionID, transcript), nil
}

// RunTranscribedTurn executes the generate+synthesize tail of a turn
// for a transcript obtained elsewhere (the streaming path).
func (o *Orchestrator) RunTranscribedTurn(ctx context.Context, sessionID, transcript string) (*TurnResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, convstore.ErrEmptyContent
	}
	if err := o.beginTurn(sessionID); err != nil {
		return nil, err
	}
	defer o.endTurn(sessionID)

	return o.completeTurn(ctx, sessionID, transcript), nil
}

// completeTurn runs Generating and Synthesizing for a final transcript.
// The caller holds the session's turn lock.
func (o *Orchestrator) completeTurn(ctx context.Context, sessionID, transcript string) *TurnResult {
	if err := o.store.Append(sessionID, convstore.RoleUser, transcript); err != nil {
		o.logger.Printf("agent: session %s failed to record transcript: %v", sessionID, err)
		return &TurnResult{SessionID: sessionID, Reply: sttApology, Status: StatusError}
	}

	o.setState(sessionID, stateGenerating)
	window := o.promptWindow(sessionID)
	reply, err := o.generator.Generate(ctx, window)
	if err != nil {
		// An aborted turn must not fabricate an assistant reply: the
		// caller is gone and a fallback recorded here would be replayed
		// by later prompt windows.
		if ctx.Err() != nil {
			o.logger.Printf("agent: session %s turn cancelled during generation: %v", sessionID, ctx.Err())
			return &TurnResult{
				SessionID:     sessionID,
				Transcription: transcript,
				Status:        StatusError,
			}
		}
		// Fail-soft: substitute the apology and keep going so the user
		// still hears something. The fallback is recorded in history.
		o.logger.Printf("agent: session %s generation failed: %v", sessionID, err)
		reply = llmApology
	}

	// The textual turn is valid even if synthesis fails below.
	if err := o.store.Append(sessionID, convstore.RoleAssistant, reply); err != nil {
		o.logger.Printf("agent: session %s failed to record reply: %v", sessionID, err)
	}

	o.setState(sessionID, stateSynthesizing)
	result := &TurnResult{
		SessionID:     sessionID,
		Transcription: transcript,
		Reply:         reply,
		Status:        StatusSuccess,
	}

	audio, err := o.synthesizer.Synthesize(ctx, reply, o.voiceID)
	if err != nil {
		// Synthesis failure must never discard the transcript or the
		// reply; the client gets a text-only result.
		o.logger.Printf("agent: session %s synthesis failed: %v", sessionID, err)
		result.Status = StatusTTSFailed
		return result
	}

	result.AudioBase64 = base64.StdEncoding.EncodeToString(audio)
	return result
}

// promptWindow renders the bounded recent history for the generator.
func (o *Orchestrator) promptWindow(sessionID string) []llm.Message {
	messages := o.store.RecentWindow(sessionID, o.historyWindow)
	window := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		window = append(window, llm.Message{Role: m.Role, Content: m.Content})
	}
	return window
}

// GenerateOnly answers raw text with no session history, for the
// text-only ingress.
func (o *Orchestrator) GenerateOnly(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", convstore.ErrEmptyContent
	}
	return o.generator.Generate(ctx, []llm.Message{{Role: convstore.RoleUser, Content: text}})
}

// History returns the session's full recorded history, oldest first.
func (o *Orchestrator) History(sessionID string) []convstore.Message {
	// The store caps windows, not full reads; a large limit returns
	// everything recorded for the session.
	return o.store.RecentWindow(sessionID, 1<<20)
}

// ClearSession drops the session's history. Idempotent.
func (o *Orchestrator) ClearSession(sessionID string) {
	o.store.Clear(sessionID)
}

// SessionCount reports how many sessions currently hold history.
func (o *Orchestrator) SessionCount() int {
	return o.store.SessionCount()
}
