package session

import "encoding/json"

// Client -> session control message types. Anything else inbound is ignored.
const (
	msgTypeEnd            = "end"
	msgTypePing           = "ping"
	msgTypeFinishSpeaking = "finish_speaking"
)

// ClientMessage is an inbound control frame. Unknown or malformed frames are
// dropped silently; client misbehavior must never take a session down.
type ClientMessage struct {
	Type string `json:"type"`
}

func parseClientMessage(raw []byte) (ClientMessage, bool) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
		return ClientMessage{}, false
	}
	return msg, true
}

// ServerMessage is an outbound control frame.
type ServerMessage struct {
	Type        string   `json:"type"`
	InterviewID string   `json:"interviewId,omitempty"`
	Text        string   `json:"text,omitempty"`
	IsFinal     *bool    `json:"isFinal,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Message     string   `json:"message,omitempty"`
}

func readyMessage(interviewID string) ServerMessage {
	return ServerMessage{Type: "ready", InterviewID: interviewID}
}

func transcriptMessage(text string, isFinal bool, confidence float64) ServerMessage {
	return ServerMessage{Type: "transcript", Text: text, IsFinal: &isFinal, Confidence: &confidence}
}

func processingMessage() ServerMessage {
	return ServerMessage{Type: "processing"}
}

func responseMessage(text string) ServerMessage {
	return ServerMessage{Type: "response", Text: text}
}

func audioCompleteMessage() ServerMessage {
	return ServerMessage{Type: "audio_complete"}
}

func endedMessage(interviewID string) ServerMessage {
	return ServerMessage{Type: "ended", InterviewID: interviewID}
}

func errorMessage(message string) ServerMessage {
	return ServerMessage{Type: "error", Message: message}
}

func pongMessage() ServerMessage {
	return ServerMessage{Type: "pong"}
}
