package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultMurfBaseURL = "https://api.murf.ai/v1"

// MurfClient implements the Client interface using the Murf speech
// generation API.
type MurfClient struct {
	apiKey         string
	baseURL        string
	defaultVoiceID string
	format         string
	sampleRate     float64
	bitRate        int
	timeout        time.Duration
	httpClient     *http.Client
}

// MurfConfig holds configuration for the Murf client.
type MurfConfig struct {
	APIKey         string
	BaseURL        string        // Override for tests; defaults to the public API
	DefaultVoiceID string        // e.g. "en-IN-rohan"
	Format         string        // e.g. "MP3"
	SampleRate     float64       // Zero means the default 24000
	BitRate        int           // e.g. 128
	Timeout        time.Duration // Per-request timeout, default 30s
	HTTPClient     *http.Client  // Optional shared client
}

// NewMurfClient creates a new Murf client.
func NewMurfClient(cfg MurfConfig) *MurfClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultMurfBaseURL
	}
	voiceID := cfg.DefaultVoiceID
	if voiceID == "" {
		voiceID = "en-IN-rohan"
	}
	format := cfg.Format
	if format == "" {
		format = "MP3"
	}
	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 24000
	}
	bitRate := cfg.BitRate
	if bitRate == 0 {
		bitRate = 128
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &MurfClient{
		apiKey:         cfg.APIKey,
		baseURL:        baseURL,
		defaultVoiceID: voiceID,
		format:         format,
		sampleRate:     sampleRate,
		bitRate:        bitRate,
		timeout:        timeout,
		httpClient:     httpClient,
	}
}

// synthesizeRequest represents a Murf speech generation request.
type synthesizeRequest struct {
	VoiceID    string  `json:"voiceId"`
	Text       string  `json:"text"`
	Format     string  `json:"format"`
	SampleRate float64 `json:"sampleRate"`
	BitRate    int     `json:"bitRate"`
}

// synthesizeResponse covers the response shapes Murf has been observed
// to return: inline audio under several keys, or a URL requiring a
// secondary download.
type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
	Audio        string `json:"audio"`
	Data         string `json:"data"`
	AudioFile    string `json:"audioFile"`
	AudioURL     string `json:"audioUrl"`
	URL          string `json:"url"`
}

// payloadKind tags the audio payload variants.
type payloadKind int

const (
	payloadInlineBase64 payloadKind = iota
	payloadInlineBytes
	payloadRemoteURL
)

// audioPayload is the tagged variant resolved out of a synthesis
// response before normalization into raw bytes.
type audioPayload struct {
	kind payloadKind
	b64  string
	raw  []byte
	url  string
}

// Synthesize converts text to speech. All backend response shapes are
// normalized into raw audio bytes; callers never see the difference.
func (c *MurfClient) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if voiceID == "" {
		voiceID = c.defaultVoiceID
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := synthesizeRequest{
		VoiceID:    voiceID,
		Text:       strings.TrimSpace(text),
		Format:     c.format,
		SampleRate: c.sampleRate,
		BitRate:    c.bitRate,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/speech/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	payload, err := resolvePayload(resp)
	if err != nil {
		return nil, err
	}
	return c.normalize(ctx, payload)
}

// resolvePayload classifies a successful response into one of the
// payload variants.
func resolvePayload(resp *http.Response) (audioPayload, error) {
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "json") {
		// Non-JSON success: the body is the audio itself.
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return audioPayload{}, fmt.Errorf("failed to read audio body: %w", err)
		}
		return audioPayload{kind: payloadInlineBytes, raw: raw}, nil
	}

	var sr synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return audioPayload{}, fmt.Errorf("failed to decode response: %w", err)
	}

	switch {
	case sr.AudioContent != "":
		return audioPayload{kind: payloadInlineBase64, b64: sr.AudioContent}, nil
	case sr.Audio != "":
		return audioPayload{kind: payloadInlineBase64, b64: sr.Audio}, nil
	case sr.Data != "":
		return audioPayload{kind: payloadInlineBase64, b64: sr.Data}, nil
	case sr.AudioFile != "":
		return audioPayload{kind: payloadRemoteURL, url: sr.AudioFile}, nil
	case sr.AudioURL != "":
		return audioPayload{kind: payloadRemoteURL, url: sr.AudioURL}, nil
	case sr.URL != "":
		return audioPayload{kind: payloadRemoteURL, url: sr.URL}, nil
	}
	return audioPayload{}, ErrNoAudio
}

// normalize turns any payload variant into raw audio bytes.
func (c *MurfClient) normalize(ctx context.Context, payload audioPayload) ([]byte, error) {
	switch payload.kind {
	case payloadInlineBytes:
		if len(payload.raw) == 0 {
			return nil, ErrNoAudio
		}
		return payload.raw, nil

	case payloadInlineBase64:
		raw, err := base64.StdEncoding.DecodeString(payload.b64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode inline audio: %w", err)
		}
		return raw, nil

	case payloadRemoteURL:
		return c.download(ctx, payload.url)
	}
	return nil, ErrNoAudio
}

// download fetches audio from the follow-up URL the backend returned.
func (c *MurfClient) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audio download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "audio download failed"}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read downloaded audio: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNoAudio
	}
	return raw, nil
}

// Voice describes one entry of the provider's voice catalogue.
type Voice struct {
	VoiceID     string `json:"voiceId"`
	DisplayName string `json:"displayName"`
	Locale      string `json:"locale"`
	Gender      string `json:"gender"`
}

// Voices lists the voices available for synthesis.
func (c *MurfClient) Voices(ctx context.Context) ([]Voice, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/speech/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voices request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var parsed struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode voices response: %w", err)
	}
	return parsed.Voices, nil
}
