package interview

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// WebhookNotifier posts owner status events to a configured endpoint.
// Delivery is fire-and-forget: failures are logged, never surfaced.
type WebhookNotifier struct {
	Endpoint string
	Client   *http.Client
}

// NewWebhookNotifier constructs a notifier. An empty endpoint disables
// delivery entirely.
func NewWebhookNotifier(endpoint string) *WebhookNotifier {
	return &WebhookNotifier{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *WebhookNotifier) Notify(ownerID, event string, payload map[string]any) {
	if n.Endpoint == "" {
		return
	}
	body, err := json.Marshal(map[string]any{
		"owner_id": ownerID,
		"event":    event,
		"payload":  payload,
		"sent_at":  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("notifier: marshal %s event: %v", event, err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.Endpoint, bytes.NewReader(body))
		if err != nil {
			log.Printf("notifier: build request: %v", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := n.Client.Do(req)
		if err != nil {
			log.Printf("notifier: deliver %s: %v", event, err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			log.Printf("notifier: deliver %s: status=%d", event, resp.StatusCode)
		}
	}()
}
