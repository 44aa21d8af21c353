package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	AssemblyAIKey string

	CerebrasKey     string
	CerebrasModelID string

	// TTSProvider selects the synthesizer strategy for the whole process:
	// "deepgram" (streaming) or "elevenlabs" (batch).
	TTSProvider       string
	DeepgramKey       string
	DeepgramModel     string
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	SupabaseURL        string
	SupabaseServiceKey string
	NotifyWebhookURL   string

	// DebounceWindow is the quiet period after the last final transcript
	// before an utterance is treated as complete.
	DebounceWindow time.Duration
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it: %v", err)
	}

	addr := getEnv("HTTP_ADDRESS", ":8080")

	assemblyAIKey := os.Getenv("ASSEMBLYAI_API_KEY")
	if assemblyAIKey == "" {
		log.Println("Warning: ASSEMBLYAI_API_KEY not set - transcription will not work")
	}

	cerebrasKey := os.Getenv("CEREBRAS_API_KEY")
	if cerebrasKey == "" {
		log.Println("Warning: CEREBRAS_API_KEY not set - interviewer replies will not work")
	}
	cerebrasModel := getEnv("CEREBRAS_MODEL_ID", "gpt-oss-120b")

	ttsProvider := getEnv("TTS_PROVIDER", "deepgram")
	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	elevenKey := os.Getenv("ELEVENLABS_API_KEY")
	switch ttsProvider {
	case "deepgram":
		if deepgramKey == "" {
			log.Println("Warning: DEEPGRAM_API_KEY not set - TTS will not work")
		}
	case "elevenlabs":
		if elevenKey == "" {
			log.Println("Warning: ELEVENLABS_API_KEY not set - TTS will not work")
		}
	}

	supabaseURL := os.Getenv("SUPABASE_URL")
	supabaseKey := os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	if supabaseURL == "" || supabaseKey == "" {
		log.Println("Warning: SUPABASE_URL or SUPABASE_SERVICE_ROLE_KEY not set - interview store will not work")
	}

	debounceMS, err := strconv.Atoi(getEnv("DEBOUNCE_MS", "1000"))
	if err != nil || debounceMS <= 0 {
		debounceMS = 1000
	}

	log.Printf("config: HTTP_ADDRESS=%s TTS_PROVIDER=%s DEBOUNCE_MS=%d", addr, ttsProvider, debounceMS)
	return Config{
		HTTPAddress:        addr,
		AssemblyAIKey:      assemblyAIKey,
		CerebrasKey:        cerebrasKey,
		CerebrasModelID:    cerebrasModel,
		TTSProvider:        ttsProvider,
		DeepgramKey:        deepgramKey,
		DeepgramModel:      getEnv("DEEPGRAM_TTS_MODEL", "aura-2-thalia-en"),
		ElevenLabsKey:      elevenKey,
		ElevenLabsVoiceID:  os.Getenv("ELEVENLABS_VOICE_ID"),
		SupabaseURL:        supabaseURL,
		SupabaseServiceKey: supabaseKey,
		NotifyWebhookURL:   os.Getenv("NOTIFY_WEBHOOK_URL"),
		DebounceWindow:     time.Duration(debounceMS) * time.Millisecond,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
