package session

import (
	"context"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub000/internal/interview"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub000/internal/stt"
)

// Recognizer is the minimal interface for realtime STT. One connection per
// session; Close must be idempotent.
type Recognizer interface {
	Connect(ctx context.Context) error
	SendAudio(frame []byte) error
	Events() <-chan stt.Event
	Close() error
}

// Generator produces the interviewer's next utterance. It is stateless per
// call; the session passes the full history every time.
type Generator interface {
	OpeningLine(ctx context.Context, details interview.Details) (string, error)
	Generate(ctx context.Context, history []interview.Turn, details interview.Details) (string, error)
}

// Synthesizer converts text into ordered audio frames; the frame channel
// closing signals completion. Close must be idempotent.
type Synthesizer interface {
	Speak(ctx context.Context, text string) (<-chan []byte, <-chan error)
	Close() error
}

// Transport delivers control messages and audio frames to the client.
// Implementations must be safe for concurrent use.
type Transport interface {
	SendControl(msg ServerMessage) error
	SendAudio(frame []byte) error
	Close() error
}
