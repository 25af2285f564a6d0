package stt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// echoTranscriptServer upgrades the connection, answers every binary
// audio frame with a partial Turn and, once terminated, a final Turn.
func echoTranscriptServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "test-key" {
			t.Errorf("Authorization header = %q, want %q", got, "test-key")
		}
		if got := r.URL.Query().Get("sample_rate"); got != "16000" {
			t.Errorf("sample_rate = %q, want 16000", got)
		}

		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(map[string]any{"type": "Begin", "id": "sess"})

		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}

			if msgType == websocket.BinaryMessage {
				_ = conn.WriteJSON(map[string]any{
					"type":        "Turn",
					"transcript":  "partial words",
					"end_of_turn": false,
				})
				continue
			}

			var m map[string]string
			if err := json.Unmarshal(msg, &m); err == nil && m["type"] == "Terminate" {
				_ = conn.WriteJSON(map[string]any{
					"type":                  "Turn",
					"transcript":            "final words",
					"end_of_turn":           true,
					"turn_is_formatted":     true,
					"end_of_turn_confidence": 0.91,
				})
				_ = conn.WriteJSON(map[string]any{"type": "Termination"})
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newRealtimeTestClient(t *testing.T, srv *httptest.Server) *RealtimeClient {
	t.Helper()
	client, err := NewRealtimeClient(context.Background(), RealtimeConfig{
		APIKey:      "test-key",
		URL:         wsURL(srv),
		SampleRate:  16000,
		FormatTurns: true,
	})
	if err != nil {
		t.Fatalf("NewRealtimeClient() error = %v", err)
	}
	return client
}

func TestRealtimePartialAndFinal(t *testing.T) {
	srv := echoTranscriptServer(t)
	defer srv.Close()

	client := newRealtimeTestClient(t, srv)

	if err := client.SendAudio(make([]byte, 320)); err != nil {
		t.Fatalf("SendAudio() error = %v", err)
	}

	// Partial event arrives first
	select {
	case result := <-client.Results():
		if result.IsFinal {
			t.Error("first result should be partial")
		}
		if result.Text != "partial words" {
			t.Errorf("partial text = %q, want %q", result.Text, "partial words")
		}
	case err := <-client.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for partial result")
	}

	// Close flushes and terminates; the final event is emitted before
	// the results channel closes.
	closed := make(chan struct{})
	go func() {
		// Give the server a beat to push the final Turn before the
		// client tears the connection down.
		time.Sleep(100 * time.Millisecond)
		_ = client.Close()
		close(closed)
	}()

	select {
	case result := <-client.Results():
		if !result.IsFinal {
			t.Errorf("expected final result, got %+v", result)
		}
		if result.Text != "final words" {
			t.Errorf("final text = %q, want %q", result.Text, "final words")
		}
		if result.Confidence != 0.91 {
			t.Errorf("confidence = %v, want 0.91", result.Confidence)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for final result")
	}

	<-closed
}

func TestRealtimeSendAfterClose(t *testing.T) {
	srv := echoTranscriptServer(t)
	defer srv.Close()

	client := newRealtimeTestClient(t, srv)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.SendAudio([]byte{0x00}); err != ErrChannelClosed {
		t.Errorf("SendAudio() after close = %v, want ErrChannelClosed", err)
	}
	// Close must be idempotent
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestRealtimeQueueDropsOldest(t *testing.T) {
	// Server that never reads, so the queue fills up
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	client := newRealtimeTestClient(t, srv)
	defer client.Close()

	// Overfill the queue; SendAudio must never block or fail
	for i := 0; i < audioQueueSize*3; i++ {
		if err := client.SendAudio([]byte{byte(i)}); err != nil {
			t.Fatalf("SendAudio() error = %v on chunk %d", err, i)
		}
	}
}

func TestRealtimeConnectFailure(t *testing.T) {
	_, err := NewRealtimeClient(context.Background(), RealtimeConfig{
		APIKey:         "test-key",
		URL:            "ws://127.0.0.1:1",
		ConnectTimeout: 200 * time.Millisecond,
	})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("NewRealtimeClient() error = %v, want ErrUpstreamUnavailable", err)
	}
}
