package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the runtime configuration for the processing backend.
// Everything comes from environment variables so the same binary runs
// locally (sqlite store, local media engines) and hosted (Supabase store).
type Config struct {
	Port         string
	StoreBackend string // "sqlite" or "supabase"
	SQLitePath   string
	UploadDir    string

	SupabaseURL string
	SupabaseKey string

	// Ordered provider priority list, e.g. "openai,anthropic,gemini".
	LLMProviders   []string
	OpenAIKey      string
	OpenAIModel    string
	AnthropicKey   string
	AnthropicModel string
	GoogleKey      string
	GeminiModel    string

	// Per-provider request budgets; zero disables the window.
	OpenAIRPM    int
	OpenAIRPD    int
	AnthropicRPM int
	AnthropicRPD int
	GeminiRPM    int
	GeminiRPD    int

	ExtractionTimeout time.Duration
	AnalysisTimeout   time.Duration

	WhisperModel  string
	FFmpegPath    string
	WhisperPath   string
	TesseractPath string
	OCRLanguage   string

	WorkerCount  int
	JobQueueSize int
}

// Load reads configuration from the environment, applying defaults
// suitable for local development. Rate-limit defaults follow the
// providers' free tiers (Gemini is the tight one).
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		StoreBackend:   getEnv("STORE_BACKEND", "sqlite"),
		SQLitePath:     getEnv("SQLITE_PATH", "paranote.db"),
		UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
		SupabaseURL:    os.Getenv("SUPABASE_URL"),
		SupabaseKey:    os.Getenv("SUPABASE_SERVICE_KEY"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		GoogleKey:      os.Getenv("GOOGLE_API_KEY"),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		WhisperModel:   getEnv("WHISPER_MODEL", "base"),
		FFmpegPath:     getEnv("FFMPEG_PATH", "ffmpeg"),
		WhisperPath:    getEnv("WHISPER_PATH", "whisper-cli"),
		TesseractPath:  getEnv("TESSERACT_PATH", "tesseract"),
		OCRLanguage:    getEnv("OCR_LANG", "eng"),
	}

	cfg.LLMProviders = splitList(getEnv("LLM_PROVIDERS", "openai,anthropic,gemini"))

	var err error
	if cfg.ExtractionTimeout, err = getDuration("EXTRACTION_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AnalysisTimeout, err = getDuration("ANALYSIS_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.WorkerCount, err = getInt("WORKER_COUNT", 5); err != nil {
		return nil, err
	}
	if cfg.JobQueueSize, err = getInt("JOB_QUEUE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.OpenAIRPM, err = getInt("OPENAI_RPM_LIMIT", 60); err != nil {
		return nil, err
	}
	if cfg.OpenAIRPD, err = getInt("OPENAI_RPD_LIMIT", 10000); err != nil {
		return nil, err
	}
	if cfg.AnthropicRPM, err = getInt("ANTHROPIC_RPM_LIMIT", 50); err != nil {
		return nil, err
	}
	if cfg.AnthropicRPD, err = getInt("ANTHROPIC_RPD_LIMIT", 10000); err != nil {
		return nil, err
	}
	if cfg.GeminiRPM, err = getInt("GEMINI_RPM_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.GeminiRPD, err = getInt("GEMINI_RPD_LIMIT", 4000); err != nil {
		return nil, err
	}

	if cfg.StoreBackend == "supabase" && (cfg.SupabaseURL == "" || cfg.SupabaseKey == "") {
		return nil, fmt.Errorf("STORE_BACKEND=supabase requires SUPABASE_URL and SUPABASE_SERVICE_KEY")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func splitList(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
