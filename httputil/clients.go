package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Clients struct {
	Webhook *http.Client // escalation webhooks
	API     *http.Client // general outbound calls
}

func NewClients() *Clients {
	return &Clients{
		Webhook: &http.Client{Timeout: 10 * time.Second},
		API:     &http.Client{Timeout: 30 * time.Second},
	}
}

// WebhookMessage is the escalation payload: a human-readable text and
// a remote-intervention link for resolving the challenge by hand.
type WebhookMessage struct {
	Text string `json:"text"`
	Link string `json:"link"`
}

// SendWebhook posts the message as JSON. Callers fire it at most once
// per escalation.
func (c *Clients) SendWebhook(url string, msg WebhookMessage) error {
	if url == "" {
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := c.Webhook.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
