// Package chatreply posts final answers back to the chat platform's reply
// endpoint.
package chatreply

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Poster implements the usecase.ReplyPoster interface using standard
// net/http.
type Poster struct {
	endpoint    string
	accessToken string
	client      *http.Client
	logger      *slog.Logger
}

// New creates a new reply Poster for the given reply endpoint.
func New(endpoint, accessToken string, client *http.Client, logger *slog.Logger) *Poster {
	if client == nil {
		client = http.DefaultClient
	}
	return &Poster{
		endpoint:    endpoint,
		accessToken: accessToken,
		client:      client,
		logger:      logger.With("component", "chat_reply"),
	}
}

type replyMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string         `json:"replyToken"`
	Messages   []replyMessage `json:"messages"`
}

// Post sends text as a single text message for replyToken. A non-2xx status
// is an error; the caller logs it and moves on, it is never re-queued.
func (p *Poster) Post(ctx context.Context, replyToken, text string) error {
	body, err := json.Marshal(replyRequest{
		ReplyToken: replyToken,
		Messages:   []replyMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("marshal reply body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post reply: status %s: %s", resp.Status, detail)
	}

	p.logger.Debug("Reply posted.", slog.Int("bytes", len(text)))
	return nil
}
