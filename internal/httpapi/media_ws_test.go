package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/satya-2810/AI-Voice-Agent/internal/agent"
	"github.com/satya-2810/AI-Voice-Agent/internal/convstore"
	"github.com/satya-2810/AI-Voice-Agent/internal/llm"
	"github.com/satya-2810/AI-Voice-Agent/internal/stt"
	"github.com/satya-2810/AI-Voice-Agent/internal/tts"
)

// fakeStream is a scriptable stand-in for the realtime transcription
// client. Tests push results into the channels directly.
type fakeStream struct {
	mu      sync.Mutex
	audio   [][]byte
	closed  bool
	results chan stt.TranscriptResult
	errs    chan error
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		results: make(chan stt.TranscriptResult, 16),
		errs:    make(chan error, 4),
	}
}

func (f *fakeStream) SendAudio(audio []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return stt.ErrChannelClosed
	}
	f.audio = append(f.audio, audio)
	return nil
}

func (f *fakeStream) Results() <-chan stt.TranscriptResult { return f.results }
func (f *fakeStream) Errors() <-chan error                 { return f.errs }

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.results)
		close(f.errs)
	}
	return nil
}

func (f *fakeStream) audioCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.audio)
}

var _ stt.StreamClient = (*fakeStream)(nil)

// newMediaTestServer builds a router whose stream dialer hands out the
// given fake, served over httptest.
func newMediaTestServer(t *testing.T, dial streamDialer, registry *agent.StreamRegistry) *httptest.Server {
	t.Helper()

	orch := agent.New(agent.Config{
		Store:       convstore.New(),
		Transcriber: &stt.MockTranscriber{},
		Generator:   &llm.MockClient{},
		Synthesizer: &tts.MockClient{},
		Logger:      testLogger(),
	})

	if registry == nil {
		registry = agent.NewStreamRegistry()
	}

	r := &Router{
		cfg: RouterConfig{
			AssemblyAIAPIKey: "test-key",
			SampleRate:       16000,
			AudioEncoding:    "pcm_s16le",
		},
		logger:     testLogger(),
		agent:      orch,
		registry:   registry,
		dialStream: dial,
		mux:        http.NewServeMux(),
	}
	r.routes()

	srv := httptest.NewServer(withSentryRecovery(withCORS(r.mux)))
	t.Cleanup(srv.Close)
	return srv
}

func dialMedia(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/media" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev wsEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestMediaWSPartialAndTurnEvents(t *testing.T) {
	stream := newFakeStream()
	srv := newMediaTestServer(t, func(ctx context.Context, cfg stt.RealtimeConfig) (stt.StreamClient, error) {
		return stream, nil
	}, nil)

	conn := dialMedia(t, srv, "?session_id=stream-1")

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02, 0x03}); err != nil {
		t.Fatalf("send audio: %v", err)
	}

	// Audio frames must reach the transcription stream.
	deadline := time.Now().Add(2 * time.Second)
	for stream.audioCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("audio frame never reached the stream client")
		}
		time.Sleep(5 * time.Millisecond)
	}

	stream.results <- stt.TranscriptResult{Text: "what is", IsFinal: false, Confidence: 0.4}
	ev := readEvent(t, conn)
	if ev.Type != "partial" {
		t.Fatalf("event type = %q, want partial", ev.Type)
	}
	if ev.SessionID != "stream-1" || ev.Text != "what is" {
		t.Errorf("unexpected partial event: %+v", ev)
	}

	stream.results <- stt.TranscriptResult{Text: "What is the capital of France?", IsFinal: true, Confidence: 0.93}
	ev = readEvent(t, conn)
	if ev.Type != "turn" {
		t.Fatalf("event type = %q, want turn", ev.Type)
	}
	if ev.Turn == nil {
		t.Fatal("turn event carries no result")
	}
	if ev.Turn.Transcription != "What is the capital of France?" {
		t.Errorf("transcription = %q", ev.Turn.Transcription)
	}
	if ev.Turn.Reply != "mock reply" {
		t.Errorf("ai_response = %q, want mock reply", ev.Turn.Reply)
	}
	if ev.Turn.Status != agent.StatusSuccess {
		t.Errorf("status = %q, want success", ev.Turn.Status)
	}
}

func TestMediaWSAssignsSessionID(t *testing.T) {
	stream := newFakeStream()
	srv := newMediaTestServer(t, func(ctx context.Context, cfg stt.RealtimeConfig) (stt.StreamClient, error) {
		return stream, nil
	}, nil)

	conn := dialMedia(t, srv, "")

	stream.results <- stt.TranscriptResult{Text: "hello", IsFinal: false, Confidence: 0.5}
	ev := readEvent(t, conn)
	if ev.SessionID == "" {
		t.Error("server should assign a session id when none is given")
	}
}

func TestMediaWSSTTErrorClosesSession(t *testing.T) {
	stream := newFakeStream()
	srv := newMediaTestServer(t, func(ctx context.Context, cfg stt.RealtimeConfig) (stt.StreamClient, error) {
		return stream, nil
	}, nil)

	conn := dialMedia(t, srv, "?session_id=err-1")

	stream.errs <- stt.ErrUpstreamUnavailable
	ev := readEvent(t, conn)
	if ev.Type != "error" {
		t.Fatalf("event type = %q, want error", ev.Type)
	}
}

func TestMediaWSDialFailure(t *testing.T) {
	srv := newMediaTestServer(t, func(ctx context.Context, cfg stt.RealtimeConfig) (stt.StreamClient, error) {
		return nil, stt.ErrUpstreamUnavailable
	}, nil)

	conn := dialMedia(t, srv, "")

	ev := readEvent(t, conn)
	if ev.Type != "error" {
		t.Fatalf("event type = %q, want error", ev.Type)
	}
	if ev.Error == "" {
		t.Error("error event should carry a message")
	}
}

func TestMediaWSRejectsWhileDraining(t *testing.T) {
	registry := agent.NewStreamRegistry()
	registry.StartDraining()

	srv := newMediaTestServer(t, func(ctx context.Context, cfg stt.RealtimeConfig) (stt.StreamClient, error) {
		t.Fatal("dial should not be reached while draining")
		return nil, nil
	}, registry)

	resp, err := http.Get(srv.URL + "/media")
	if err != nil {
		t.Fatalf("GET /media: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestMediaWSRequiresAPIKey(t *testing.T) {
	orch := agent.New(agent.Config{
		Store:       convstore.New(),
		Transcriber: &stt.MockTranscriber{},
		Generator:   &llm.MockClient{},
		Synthesizer: &tts.MockClient{},
		Logger:      testLogger(),
	})
	handler := NewRouter(RouterConfig{}, testLogger(), orch, agent.NewStreamRegistry())
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/media")
	if err != nil {
		t.Fatalf("GET /media: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}
