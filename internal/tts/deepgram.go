package tts

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
)

// DeepgramSpeaker is the streaming strategy: one duplex socket per
// utterance, binary audio frames interleaved with provider control events.
// The Flushed control event marks end of audio for the utterance.
type DeepgramSpeaker struct {
	apiKey     string
	model      string
	sampleRate int
	encoding   string

	mu     sync.Mutex
	closed bool
	stop   func()
}

func NewDeepgramSpeaker(apiKey, model string) *DeepgramSpeaker {
	if model == "" {
		model = "aura-2-thalia-en"
	}
	return &DeepgramSpeaker{apiKey: apiKey, model: model, sampleRate: 48000, encoding: "linear16"}
}

func (d *DeepgramSpeaker) Speak(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	frames := make(chan []byte, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(frames)
		defer close(errCh)

		if d.apiKey == "" {
			errCh <- fmt.Errorf("deepgram: API key missing")
			return
		}
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			errCh <- fmt.Errorf("deepgram: synthesizer closed")
			return
		}
		d.mu.Unlock()
		if text == "" {
			return
		}

		options := &clientinterfaces.WSSpeakOptions{
			Model:      d.model,
			Encoding:   d.encoding,
			SampleRate: d.sampleRate,
		}

		flushed := make(chan struct{}, 1)
		cb := &speakCallback{
			onBinary: func(data []byte) error {
				if len(data) == 0 {
					return nil
				}
				b := make([]byte, len(data))
				copy(b, data)
				select {
				case frames <- b:
				case <-ctx.Done():
				}
				return nil
			},
			onFlush: func() {
				select {
				case flushed <- struct{}{}:
				default:
				}
			},
		}

		dg, err := speak.NewWSUsingCallback(ctx, d.apiKey, &clientinterfaces.ClientOptions{}, options, cb)
		if err != nil {
			errCh <- fmt.Errorf("deepgram: create ws client: %w", err)
			return
		}

		var stopOnce sync.Once
		stopClient := func() { stopOnce.Do(dg.Stop) }
		defer stopClient()

		d.mu.Lock()
		d.stop = stopClient
		d.mu.Unlock()
		defer func() {
			d.mu.Lock()
			d.stop = nil
			d.mu.Unlock()
		}()

		if ok := dg.Connect(); !ok {
			errCh <- fmt.Errorf("deepgram: connect failed")
			return
		}
		if err := dg.SpeakWithText(text); err != nil {
			errCh <- fmt.Errorf("deepgram: speak text: %w", err)
			return
		}
		if err := dg.Flush(); err != nil {
			log.Printf("deepgram: flush error: %v", err)
		}

		// Flushed is the provider's completion marker. The deadline is a
		// backstop for a provider that never sends it.
		deadline := time.NewTimer(12 * time.Second)
		defer deadline.Stop()
		select {
		case <-flushed:
		case <-ctx.Done():
		case <-deadline.C:
			log.Printf("deepgram: no completion marker within deadline, abandoning utterance")
		}
	}()

	return frames, errCh
}

// Close stops any in-flight synthesis. Safe to call more than once.
func (d *DeepgramSpeaker) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	stop := d.stop
	d.mu.Unlock()
	if stop != nil {
		stop()
	}
	return nil
}

type speakCallback struct {
	onBinary func([]byte) error
	onFlush  func()
}

func (s *speakCallback) Open(*msginterfaces.OpenResponse) error         { return nil }
func (s *speakCallback) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (s *speakCallback) Flush(*msginterfaces.FlushedResponse) error {
	if s.onFlush != nil {
		s.onFlush()
	}
	return nil
}
func (s *speakCallback) Clear(*msginterfaces.ClearedResponse) error   { return nil }
func (s *speakCallback) Close(*msginterfaces.CloseResponse) error     { return nil }
func (s *speakCallback) Warning(*msginterfaces.WarningResponse) error { return nil }
func (s *speakCallback) Error(*msginterfaces.ErrorResponse) error     { return nil }
func (s *speakCallback) UnhandledEvent([]byte) error                  { return nil }
func (s *speakCallback) Binary(byMsg []byte) error {
	if s.onBinary != nil {
		return s.onBinary(byMsg)
	}
	return nil
}
