package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrUnavailable marks a failure to establish the streaming connection.
// Callers treat it as fatal to the owning session.
var ErrUnavailable = errors.New("speech recognizer unavailable")

// keepAliveInterval is how often an idle control frame is sent so the
// provider does not drop the socket between candidate answers.
const keepAliveInterval = 15 * time.Second

// Word carries provider word-level timing for a transcript.
type Word struct {
	Text       string
	StartMS    int64
	EndMS      int64
	Confidence float64
}

// Event is one transcript update. IsFinal reflects the provider's own
// endpointing; non-final events are advisory and frequent.
type Event struct {
	Text       string
	IsFinal    bool
	Confidence float64
	Words      []Word
}

// AssemblyAIClient streams candidate audio to AssemblyAI's v3 realtime API
// over a single duplex WebSocket and emits transcript events.
type AssemblyAIClient struct {
	apiKey     string
	sampleRate int

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool

	// wmu serializes socket writes across the audio, keep-alive and
	// shutdown paths.
	wmu sync.Mutex

	events chan Event
	audio  chan []byte
	stopCh chan struct{}
}

// AssemblyAI wire messages.
type beginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type turnMessage struct {
	Type                string     `json:"type"`
	Transcript          string     `json:"transcript"`
	EndOfTurn           bool       `json:"end_of_turn"`
	EndOfTurnConfidence float64    `json:"end_of_turn_confidence"`
	Words               []turnWord `json:"words,omitempty"`
}

type turnWord struct {
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Confidence float64 `json:"confidence"`
}

type terminationMessage struct {
	Type                   string  `json:"type"`
	AudioDurationSeconds   float64 `json:"audio_duration_seconds"`
	SessionDurationSeconds float64 `json:"session_duration_seconds"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewAssemblyAIClient creates a recognizer for 16kHz PCM mono input.
func NewAssemblyAIClient(apiKey string) *AssemblyAIClient {
	return &AssemblyAIClient{
		apiKey:     apiKey,
		sampleRate: 16000,
		events:     make(chan Event, 100),
		audio:      make(chan []byte, 1000),
		stopCh:     make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection. The wait is bounded by ctx
// and the dialer handshake timeout.
func (c *AssemblyAIClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("%w: client already closed", ErrUnavailable)
	}
	if c.connected {
		return nil
	}
	if c.apiKey == "" {
		return fmt.Errorf("%w: API key is empty", ErrUnavailable)
	}

	params := url.Values{}
	params.Set("sample_rate", fmt.Sprintf("%d", c.sampleRate))
	params.Set("encoding", "pcm_s16le")
	params.Set("format_turns", "true")
	wsURL := fmt.Sprintf("wss://streaming.assemblyai.com/v3/ws?%s", params.Encode())

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	headers := map[string][]string{"Authorization": {c.apiKey}}

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			log.Printf("assemblyai: connection failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.conn = conn
	c.connected = true

	go c.readLoop(conn)
	go c.writeLoop(conn)
	go c.keepAliveLoop()

	return nil
}

// SendAudio queues one raw audio frame for delivery. Frames arriving while
// the outbound buffer is full are dropped rather than blocking the caller.
func (c *AssemblyAIClient) SendAudio(frame []byte) error {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return fmt.Errorf("assemblyai: not connected")
	}
	select {
	case c.audio <- frame:
	default:
		log.Println("assemblyai: audio buffer full, dropping frame")
	}
	return nil
}

// Events returns the transcript event stream. The channel is closed when the
// connection ends.
func (c *AssemblyAIClient) Events() <-chan Event { return c.events }

// Close terminates the connection and stops the keep-alive timer. It is
// idempotent and safe to call on a never-opened client.
func (c *AssemblyAIClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.stopCh)
	if c.conn != nil {
		c.wmu.Lock()
		_ = c.conn.WriteJSON(map[string]string{"type": "Terminate"})
		c.wmu.Unlock()
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	return nil
}

func (c *AssemblyAIClient) writeBinary(conn *websocket.Conn, frame []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *AssemblyAIClient) writeControl(conn *websocket.Conn, v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return conn.WriteJSON(v)
}

func (c *AssemblyAIClient) readLoop(conn *websocket.Conn) {
	defer close(c.events)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.stopCh:
			default:
				log.Printf("assemblyai: read error: %v", err)
			}
			return
		}
		c.processMessage(message)
	}
}

func (c *AssemblyAIClient) processMessage(message []byte) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		log.Printf("assemblyai: unmarshal message: %v", err)
		return
	}
	switch base.Type {
	case "Begin":
		var msg beginMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		log.Printf("assemblyai: session began id=%s expires=%s", msg.ID, time.Unix(msg.ExpiresAt, 0).Format(time.RFC3339))
	case "Turn":
		var msg turnMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		if msg.Transcript == "" {
			return
		}
		ev := Event{
			Text:       msg.Transcript,
			IsFinal:    msg.EndOfTurn,
			Confidence: msg.EndOfTurnConfidence,
		}
		for _, w := range msg.Words {
			ev.Words = append(ev.Words, Word{Text: w.Text, StartMS: w.Start, EndMS: w.End, Confidence: w.Confidence})
		}
		c.emit(ev)
	case "Termination":
		var msg terminationMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		log.Printf("assemblyai: session terminated audio=%.2fs session=%.2fs", msg.AudioDurationSeconds, msg.SessionDurationSeconds)
	case "Error":
		var msg errorMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		log.Printf("assemblyai: provider error: %s", msg.Error)
	default:
		log.Printf("assemblyai: unknown message type: %s", base.Type)
	}
}

// emit delivers final events without dropping; interim events may be dropped
// under backpressure since they are display-only.
func (c *AssemblyAIClient) emit(ev Event) {
	if ev.IsFinal {
		select {
		case <-c.stopCh:
		case c.events <- ev:
		}
		return
	}
	select {
	case c.events <- ev:
	default:
	}
}

func (c *AssemblyAIClient) writeLoop(conn *websocket.Conn) {
	for {
		select {
		case <-c.stopCh:
			return
		case frame := <-c.audio:
			if err := c.writeBinary(conn, frame); err != nil {
				log.Printf("assemblyai: send audio: %v", err)
				return
			}
		}
	}
}

// keepAliveLoop sends a periodic control frame regardless of audio traffic
// so the provider's idle timeout never fires mid-interview.
func (c *AssemblyAIClient) keepAliveLoop() {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				return
			}
			if err := c.writeControl(conn, map[string]string{"type": "KeepAlive"}); err != nil {
				log.Printf("assemblyai: keep-alive: %v", err)
				return
			}
		}
	}
}
