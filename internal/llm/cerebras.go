package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub000/internal/interview"
)

// maxReplyTokens bounds every reply. Replies are spoken aloud, so long
// output is a product defect, not a tuning knob.
const maxReplyTokens = 180

// APIError is returned when the provider answers with a non-2xx status.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cerebras error: status=%d body=%s", e.Status, e.Body)
}

// CerebrasClient generates interviewer utterances via the Cerebras
// chat-completions API. It is stateless: callers pass the full history on
// every call and decide retry policy themselves.
type CerebrasClient struct {
	HTTPClient *http.Client
	APIKey     string
	Model      string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Stream    bool          `json:"stream,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      chatMessage `json:"message"`
}

type chatCompletionsResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

const endpoint = "https://api.cerebras.ai/v1/chat/completions"

func NewCerebrasClient(apiKey, model string) *CerebrasClient {
	return &CerebrasClient{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		APIKey:     apiKey,
		Model:      model,
	}
}

// buildSystemPrompt assembles the fixed interviewer instructions from the
// interview context.
func buildSystemPrompt(details interview.Details) string {
	var b strings.Builder
	b.WriteString("You are a professional AI interviewer conducting a spoken voice interview")
	if details.Role != "" {
		b.WriteString(" for the role of ")
		b.WriteString(details.Role)
	}
	b.WriteString(".")
	if details.CandidateName != "" {
		b.WriteString(" The candidate's name is ")
		b.WriteString(details.CandidateName)
		b.WriteString(".")
	}
	if details.Description != "" {
		b.WriteString(" Job description: ")
		b.WriteString(details.Description)
	}
	b.WriteString(" Ask exactly one question at a time.")
	b.WriteString(" Mix technical and behavioral questions over the course of the interview.")
	b.WriteString(" Keep every reply to two or three short sentences, because your words are spoken aloud.")
	b.WriteString(" Maintain a professional and encouraging tone.")
	return b.String()
}

func (c *CerebrasClient) buildMessages(history []interview.Turn, details interview.Details) []chatMessage {
	messages := make([]chatMessage, 0, len(history)+1)
	messages = append(messages, chatMessage{Role: "system", Content: buildSystemPrompt(details)})
	for _, t := range history {
		role := "user"
		if t.Role == interview.RoleInterviewer {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: t.Text})
	}
	return messages
}

// OpeningLine produces the interviewer's greeting and first question. This is
// a deliberate operation rather than a generate-on-empty-history convention.
func (c *CerebrasClient) OpeningLine(ctx context.Context, details interview.Details) (string, error) {
	messages := []chatMessage{
		{Role: "system", Content: buildSystemPrompt(details)},
		{Role: "user", Content: "Greet the candidate, briefly introduce the interview, and ask your first question."},
	}
	return c.complete(ctx, messages)
}

// Generate returns the next interviewer utterance for the given history.
// The last history entry must be the candidate turn being answered.
func (c *CerebrasClient) Generate(ctx context.Context, history []interview.Turn, details interview.Details) (string, error) {
	return c.complete(ctx, c.buildMessages(history, details))
}

func (c *CerebrasClient) complete(ctx context.Context, messages []chatMessage) (string, error) {
	resp, err := c.post(ctx, chatCompletionsRequest{Model: c.Model, Messages: messages, MaxTokens: maxReplyTokens})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var cr chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("cerebras: decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("cerebras: empty choices")
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

// GenerateStream is the incremental variant of Generate: it yields text
// fragments as the provider produces them. Joining all fragments gives the
// same text Generate would have returned.
func (c *CerebrasClient) GenerateStream(ctx context.Context, history []interview.Turn, details interview.Details) (<-chan string, <-chan error) {
	fragments := make(chan string, 16)
	errCh := make(chan error, 1)
	go func() {
		defer close(fragments)
		defer close(errCh)
		resp, err := c.post(ctx, chatCompletionsRequest{Model: c.Model, Messages: c.buildMessages(history, details), MaxTokens: maxReplyTokens, Stream: true})
		if err != nil {
			errCh <- err
			return
		}
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}
			var chunk chatStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case fragments <- chunk.Choices[0].Delta.Content:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- fmt.Errorf("cerebras: stream read: %w", err)
		}
	}()
	return fragments, errCh
}

func (c *CerebrasClient) post(ctx context.Context, body chatCompletionsRequest) (*http.Response, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("cerebras api key missing")
	}
	reqBody, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, &APIError{Status: resp.StatusCode, Body: string(b)}
	}
	return resp, nil
}
