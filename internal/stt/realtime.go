package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultRealtimeURL = "wss://streaming.assemblyai.com/v3/ws"

// audioQueueSize bounds the outbound audio queue. At 100ms chunks this
// buffers several seconds of backend latency before chunks are dropped.
const audioQueueSize = 64

// RealtimeClient implements the StreamClient interface using
// AssemblyAI's streaming API. One client wraps one websocket connection
// for the lifetime of a single utterance stream; it does not reconnect.
type RealtimeClient struct {
	conn    *websocket.Conn
	results chan TranscriptResult
	errors  chan error

	sendCh     chan []byte
	done       chan struct{}
	closeOnce  sync.Once
	writerDone chan struct{}
	readerDone chan struct{}
}

// closeDrainTimeout bounds how long Close waits for the backend to
// deliver the final transcript after the terminate message.
const closeDrainTimeout = 5 * time.Second

// RealtimeConfig holds configuration for the streaming client.
type RealtimeConfig struct {
	APIKey         string
	URL            string        // Override for tests; defaults to the public endpoint
	SampleRate     int           // e.g. 16000
	Encoding       string        // e.g. "pcm_s16le"
	FormatTurns    bool          // Request formatted final transcripts
	ConnectTimeout time.Duration // Default 10s
}

// realtimeMessage covers the message types the streaming API emits.
// Begin and Termination are session lifecycle markers; Turn carries
// transcripts.
type realtimeMessage struct {
	Type                string  `json:"type"` // Begin, Turn, Termination
	Transcript          string  `json:"transcript"`
	EndOfTurn           bool    `json:"end_of_turn"`
	TurnIsFormatted     bool    `json:"turn_is_formatted"`
	EndOfTurnConfidence float64 `json:"end_of_turn_confidence"`
	Error               string  `json:"error"`
}

// NewRealtimeClient opens a streaming recognition connection.
func NewRealtimeClient(ctx context.Context, cfg RealtimeConfig) (*RealtimeClient, error) {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = defaultRealtimeURL
	}
	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}
	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "pcm_s16le"
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}

	url := fmt.Sprintf("%s?sample_rate=%d&encoding=%s&format_turns=%t",
		baseURL, sampleRate, encoding, cfg.FormatTurns)

	headers := http.Header{}
	headers.Set("Authorization", cfg.APIKey)

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrUpstreamUnavailable, err)
	}

	client := &RealtimeClient{
		conn:       conn,
		results:    make(chan TranscriptResult, 100),
		errors:     make(chan error, 10),
		sendCh:     make(chan []byte, audioQueueSize),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
		readerDone: make(chan struct{}),
	}

	go client.writeLoop()
	go client.readLoop()

	return client, nil
}

// SendAudio enqueues an audio chunk for the backend. It never blocks on
// backend latency: when the queue is full the oldest chunk is dropped,
// which for live audio beats stalling the caller.
func (c *RealtimeClient) SendAudio(audio []byte) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}

	select {
	case c.sendCh <- audio:
		return nil
	default:
	}

	// Queue full: drop the oldest chunk to make room.
	select {
	case <-c.sendCh:
	default:
	}
	select {
	case c.sendCh <- audio:
	case <-c.done:
		return ErrChannelClosed
	}
	return nil
}

// Results returns the channel for receiving transcription results.
func (c *RealtimeClient) Results() <-chan TranscriptResult {
	return c.results
}

// Errors returns the channel for receiving terminal errors.
func (c *RealtimeClient) Errors() <-chan error {
	return c.errors
}

// Close flushes remaining buffered audio, sends the terminate message
// and releases the connection. Idempotent and safe after errors.
func (c *RealtimeClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		// Wait for the writer to flush the queue and send Terminate.
		<-c.writerDone

		// Give the backend a bounded window to deliver the final
		// transcript and the termination marker.
		select {
		case <-c.readerDone:
		case <-time.After(closeDrainTimeout):
		}

		err = c.conn.Close()

		// Closing the connection forces any still-blocked read to
		// error out; wait for readLoop before closing channels.
		<-c.readerDone
		close(c.results)
		close(c.errors)
	})
	return err
}

// writeLoop is the sole writer on the connection's binary side. It
// drains the audio queue and, on shutdown, flushes what is left before
// signalling end-of-stream.
func (c *RealtimeClient) writeLoop() {
	defer close(c.writerDone)

	for {
		select {
		case chunk := <-c.sendCh:
			if err := c.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				c.reportError(fmt.Errorf("write error: %w", err))
				return
			}
		case <-c.done:
			c.flush()
			terminateMsg := []byte(`{"type": "Terminate"}`)
			_ = c.conn.WriteMessage(websocket.TextMessage, terminateMsg)
			return
		}
	}
}

func (c *RealtimeClient) flush() {
	for {
		select {
		case chunk := <-c.sendCh:
			if err := c.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readLoop reads backend messages and forwards transcript events. It
// runs until the backend sends Termination or the connection drops, so
// final transcripts arriving during shutdown are still delivered.
func (c *RealtimeClient) readLoop() {
	defer close(c.readerDone)

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			case c.errors <- fmt.Errorf("read error: %w", err):
			default:
			}
			return
		}

		var resp realtimeMessage
		if err := json.Unmarshal(msg, &resp); err != nil {
			log.Printf("assemblyai: failed to parse message: %v", err)
			continue
		}

		switch resp.Type {
		case "Begin":
			continue
		case "Termination":
			return
		case "Turn":
			// Emitted below.
		default:
			if resp.Error != "" {
				c.reportError(fmt.Errorf("stt: backend error: %s", resp.Error))
				return
			}
			continue
		}

		if resp.Transcript == "" {
			continue
		}

		result := TranscriptResult{
			Text:       resp.Transcript,
			Confidence: resp.EndOfTurnConfidence,
			IsFinal:    resp.EndOfTurn,
		}

		select {
		case c.results <- result:
		default:
			// Buffer full means the consumer is gone; stop reading.
			return
		}
	}
}

func (c *RealtimeClient) reportError(err error) {
	select {
	case <-c.done:
	case c.errors <- err:
	default:
	}
}
