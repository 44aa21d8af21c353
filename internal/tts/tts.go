package tts

import (
	"context"
	"fmt"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub000/internal/config"
)

// Synthesizer converts one utterance into an ordered sequence of audio
// frames. The frame channel closing is the completion signal; both provider
// strategies report failures on the error channel so callers stay
// provider-agnostic.
type Synthesizer interface {
	Speak(ctx context.Context, text string) (<-chan []byte, <-chan error)
	Close() error
}

// FromConfig picks the active provider strategy. The choice is made once per
// process; sessions receive their own handle of the configured strategy.
func FromConfig(cfg config.Config) (Synthesizer, error) {
	switch cfg.TTSProvider {
	case "deepgram":
		return NewDeepgramSpeaker(cfg.DeepgramKey, cfg.DeepgramModel), nil
	case "elevenlabs":
		return NewElevenLabsSpeaker(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID), nil
	default:
		return nil, fmt.Errorf("tts: unknown provider %q", cfg.TTSProvider)
	}
}
