package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr  string
	SentryDSN string
	LogLevel  string

	// Provider API keys
	AssemblyAIAPIKey string
	GeminiAPIKey     string
	MurfAPIKey       string

	// Provider endpoint overrides (empty means the public endpoints)
	AssemblyAIBaseURL   string
	AssemblyAIStreamURL string
	GeminiBaseURL       string
	MurfBaseURL         string

	// Generation settings
	GeminiModel string

	// Voice settings
	DefaultVoiceID string
	AudioFormat    string // Murf output container, e.g. "MP3"
	SampleRate     int    // PCM rate on the streaming ingress
	TTSSampleRate  float64
	BitRate        int

	// Timeouts and polling
	RequestTimeout     time.Duration // LLM per-request budget
	TTSTimeout         time.Duration
	STTPollingInterval time.Duration
	STTPollTimeout     time.Duration

	// Conversation settings
	MaxConversationHistory int

	// Upload handling
	TempDir string
}

func LoadConfigFromEnv() Config {
	return Config{
		HTTPAddr:  getenv("HTTP_ADDR", ":8080"),
		SentryDSN: getenv("SENTRY_DSN", ""),
		LogLevel:  getenv("LOG_LEVEL", "info"),

		AssemblyAIAPIKey: getenv("ASSEMBLYAI_API_KEY", ""),
		GeminiAPIKey:     getenv("GEMINI_API_KEY", ""),
		MurfAPIKey:       getenv("MURF_API_KEY", ""),

		AssemblyAIBaseURL:   getenv("ASSEMBLYAI_BASE_URL", ""),
		AssemblyAIStreamURL: getenv("ASSEMBLYAI_REALTIME_URL", ""),
		GeminiBaseURL:       getenv("GEMINI_BASE_URL", ""),
		MurfBaseURL:         getenv("MURF_BASE_URL", ""),

		GeminiModel: getenv("GEMINI_MODEL", "gemini-pro"),

		DefaultVoiceID: getenv("DEFAULT_VOICE_ID", "en-IN-rohan"),
		AudioFormat:    getenv("AUDIO_FORMAT", "MP3"),
		SampleRate:     getenvInt("SAMPLE_RATE", 16000),
		TTSSampleRate:  float64(getenvInt("TTS_SAMPLE_RATE", 24000)),
		BitRate:        getenvInt("BIT_RATE", 128),

		RequestTimeout:     getenvDuration("REQUEST_TIMEOUT", 60*time.Second),
		TTSTimeout:         getenvDuration("TTS_TIMEOUT", 30*time.Second),
		STTPollingInterval: getenvDuration("STT_POLLING_INTERVAL", 2*time.Second),
		STTPollTimeout:     getenvDuration("STT_POLL_TIMEOUT", 2*time.Minute),

		MaxConversationHistory: getenvInt("MAX_CONVERSATION_HISTORY", 5),

		TempDir: getenv("TEMP_DIR", ""),
	}
}

// MissingKeys lists the provider credentials that are not set. The
// server still starts without them; the affected provider degrades at
// request time instead.
func (c Config) MissingKeys() []string {
	var missing []string
	if c.AssemblyAIAPIKey == "" {
		missing = append(missing, "ASSEMBLYAI_API_KEY")
	}
	if c.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.MurfAPIKey == "" {
		missing = append(missing, "MURF_API_KEY")
	}
	return missing
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
