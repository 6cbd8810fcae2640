package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/wardenlabs/gamewarden/internal/config"
)

// WebhookPoster delivers messages to an outbound HTTP endpoint, typically
// the chat-platform bridge that owns the actual channels.
type WebhookPoster struct {
	url    string
	token  string
	client *http.Client
}

func NewWebhookPoster(cfg config.WebhookConfig) *WebhookPoster {
	return &WebhookPoster{
		url:    cfg.PostURL,
		token:  cfg.AuthToken,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *WebhookPoster) Post(ctx context.Context, msg *Message) error {
	if p.url == "" {
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
