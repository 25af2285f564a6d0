package app

import (
	"log"
	"net"
	"net/http"
	"time"

	"github.com/satya-2810/AI-Voice-Agent/internal/agent"
	"github.com/satya-2810/AI-Voice-Agent/internal/convstore"
	"github.com/satya-2810/AI-Voice-Agent/internal/httpapi"
	"github.com/satya-2810/AI-Voice-Agent/internal/llm"
	"github.com/satya-2810/AI-Voice-Agent/internal/stt"
	"github.com/satya-2810/AI-Voice-Agent/internal/tts"
)

type App struct {
	cfg        Config
	logger     *log.Logger
	store      *convstore.Store
	agent      *agent.Orchestrator
	httpClient *http.Client // Shared pooled client for all provider calls
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	// Shared HTTP client with connection pooling. Turns hit the same
	// three provider hosts repeatedly; keeping connections alive cuts
	// per-turn latency.
	httpClient := &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	store := convstore.New()

	transcriber := stt.NewAssemblyAIClient(stt.AssemblyAIConfig{
		APIKey:       cfg.AssemblyAIAPIKey,
		BaseURL:      cfg.AssemblyAIBaseURL,
		PollInterval: cfg.STTPollingInterval,
		PollTimeout:  cfg.STTPollTimeout,
		HTTPClient:   httpClient,
	})

	generator := llm.NewGeminiClient(llm.GeminiConfig{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		Timeout:    cfg.RequestTimeout,
		HTTPClient: httpClient,
	})

	synthesizer := tts.NewMurfClient(tts.MurfConfig{
		APIKey:         cfg.MurfAPIKey,
		BaseURL:        cfg.MurfBaseURL,
		DefaultVoiceID: cfg.DefaultVoiceID,
		Format:         cfg.AudioFormat,
		SampleRate:     cfg.TTSSampleRate,
		BitRate:        cfg.BitRate,
		Timeout:        cfg.TTSTimeout,
		HTTPClient:     httpClient,
	})

	orch := agent.New(agent.Config{
		Store:         store,
		Transcriber:   transcriber,
		Generator:     generator,
		Synthesizer:   synthesizer,
		Logger:        logger,
		HistoryWindow: cfg.MaxConversationHistory,
		VoiceID:       cfg.DefaultVoiceID,
	})

	return &App{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		agent:      orch,
		httpClient: httpClient,
	}, nil
}

func (a *App) Router(streams *agent.StreamRegistry) http.Handler {
	routerCfg := httpapi.RouterConfig{
		AssemblyAIAPIKey: a.cfg.AssemblyAIAPIKey,
		RealtimeURL:      a.cfg.AssemblyAIStreamURL,
		SampleRate:       a.cfg.SampleRate,
		TempDir:          a.cfg.TempDir,
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.agent, streams)
}

func (a *App) Close() error {
	a.httpClient.CloseIdleConnections()
	return nil
}
