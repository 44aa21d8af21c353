package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// ElevenLabsSpeaker is the batch strategy: one request per utterance, the
// whole audio delivered as a single frame followed by completion. Simpler
// than the streaming strategy, higher latency to first audio.
type ElevenLabsSpeaker struct {
	APIKey     string
	VoiceID    string
	HTTPClient *http.Client

	mu     sync.Mutex
	closed bool
}

func NewElevenLabsSpeaker(apiKey, voiceID string) *ElevenLabsSpeaker {
	return &ElevenLabsSpeaker{
		APIKey:     apiKey,
		VoiceID:    voiceID,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *ElevenLabsSpeaker) Speak(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	frames := make(chan []byte, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(frames)
		defer close(errCh)
		if e.APIKey == "" || e.VoiceID == "" {
			errCh <- fmt.Errorf("elevenlabs: api key or voice id missing")
			return
		}
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			errCh <- fmt.Errorf("elevenlabs: synthesizer closed")
			return
		}
		e.mu.Unlock()
		if text == "" {
			return
		}
		audio, err := e.synthesize(ctx, text)
		if err != nil {
			errCh <- err
			return
		}
		select {
		case frames <- audio:
		case <-ctx.Done():
		}
	}()
	return frames, errCh
}

func (e *ElevenLabsSpeaker) synthesize(ctx context.Context, text string) ([]byte, error) {
	u := url.URL{
		Scheme: "https",
		Host:   "api.elevenlabs.io",
		Path:   "/v1/text-to-speech/" + e.VoiceID,
	}
	q := u.Query()
	q.Set("output_format", "pcm_48000")
	u.RawQuery = q.Encode()

	body := map[string]any{
		"model_id": "eleven_flash_v2_5",
		"text":     text,
		"voice_settings": map[string]any{
			"stability":         0.4,
			"similarity_boost":  0.7,
			"style":             0.0,
			"use_speaker_boost": true,
		},
	}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", e.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("elevenlabs: status=%d body=%s", resp.StatusCode, string(b))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	return audio, nil
}

// Close marks the speaker unusable. There is no long-lived connection in the
// batch strategy, so this only has to be idempotent.
func (e *ElevenLabsSpeaker) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}
