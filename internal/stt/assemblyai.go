package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultAssemblyAIBaseURL = "https://api.assemblyai.com/v2"

// AssemblyAIClient implements the Transcriber interface using
// AssemblyAI's asynchronous transcription API: upload the audio, create
// a transcript job, then poll until the job completes or fails.
type AssemblyAIClient struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	pollTimeout  time.Duration
	httpClient   *http.Client
}

// AssemblyAIConfig holds configuration for the AssemblyAI client.
type AssemblyAIConfig struct {
	APIKey       string
	BaseURL      string        // Override for tests; defaults to the public API
	PollInterval time.Duration // Delay between job status polls (default 2s)
	PollTimeout  time.Duration // Max total wait for job completion (default 2m)
	HTTPClient   *http.Client  // Optional shared client
}

// NewAssemblyAIClient creates a new batch transcription client.
func NewAssemblyAIClient(cfg AssemblyAIConfig) *AssemblyAIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAssemblyAIBaseURL
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 2 * time.Minute
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &AssemblyAIClient{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		httpClient:   httpClient,
	}
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL string `json:"audio_url"`
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"` // queued, processing, completed, error
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// Transcribe uploads the audio file at path, creates a transcript job
// and polls until the job reaches a terminal status. The poll is
// bounded by the configured poll timeout.
func (c *AssemblyAIClient) Transcribe(ctx context.Context, path string) (string, error) {
	audioURL, err := c.upload(ctx, path)
	if err != nil {
		return "", err
	}

	jobID, err := c.createJob(ctx, audioURL)
	if err != nil {
		return "", err
	}

	return c.pollJob(ctx, jobID)
}

// upload sends the raw audio bytes and returns the hosted audio URL.
func (c *AssemblyAIClient) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", f)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: upload: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: upload returned %s - %s", ErrUpstreamUnavailable, resp.Status, string(respBody))
	}

	var up uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&up); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if up.UploadURL == "" {
		return "", fmt.Errorf("%w: upload response missing upload_url", ErrUpstreamUnavailable)
	}
	return up.UploadURL, nil
}

// createJob submits a transcript job for the uploaded audio.
func (c *AssemblyAIClient) createJob(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(transcriptRequest{AudioURL: audioURL})
	if err != nil {
		return "", fmt.Errorf("failed to marshal transcript request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create transcript request: %w", err)
	}
	req.Header.Set("authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: transcript: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: transcript returned %s - %s", ErrUpstreamUnavailable, resp.Status, string(respBody))
	}

	var tr transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode transcript response: %w", err)
	}
	if tr.ID == "" {
		return "", fmt.Errorf("%w: transcript response missing id", ErrUpstreamUnavailable)
	}
	return tr.ID, nil
}

// pollJob waits for the transcript job to complete. The wait is a
// suspending ticker loop bounded by pollTimeout, not a busy loop.
func (c *AssemblyAIClient) pollJob(ctx context.Context, jobID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		tr, err := c.getJob(ctx, jobID)
		if err != nil {
			return "", err
		}

		switch tr.Status {
		case "completed":
			return tr.Text, nil
		case "error":
			return "", fmt.Errorf("stt: transcription failed: %s", tr.Error)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: polling transcript %s: %v", ErrUpstreamUnavailable, jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *AssemblyAIClient) getJob(ctx context.Context, jobID string) (*transcriptResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll request: %w", err)
	}
	req.Header.Set("authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: poll: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: poll returned %s - %s", ErrUpstreamUnavailable, resp.Status, string(respBody))
	}

	var tr transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode poll response: %w", err)
	}
	return &tr, nil
}
