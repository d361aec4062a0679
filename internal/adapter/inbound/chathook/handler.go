// Package chathook is the ingestion front door: it authenticates inbound
// chat webhook events and hands the contained questions off to the
// dispatcher. The HTTP response never waits for an answer.
package chathook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/m3y/askdoc/internal/domain"
	"github.com/m3y/askdoc/internal/metrics"
)

// signatureHeader carries the HMAC-SHA256 signature of the raw request body,
// base64 encoded with the channel secret as key.
const signatureHeader = "X-Chat-Signature"

// maxBodySize caps webhook payloads. The platform batches at most a handful
// of events per delivery.
const maxBodySize = 1 << 20

// Enqueuer hands a question off for asynchronous answering. TryEnqueue
// returns false when the queue is full.
type Enqueuer interface {
	TryEnqueue(q domain.Question) bool
}

// Handler holds dependencies for the webhook endpoint.
type Handler struct {
	channelSecret []byte
	queue         Enqueuer
	logger        *slog.Logger
}

// NewHandler creates a new webhook Handler.
func NewHandler(channelSecret string, queue Enqueuer, logger *slog.Logger) *Handler {
	return &Handler{
		channelSecret: []byte(channelSecret),
		queue:         queue,
		logger:        logger.With("component", "chathook"),
	}
}

// RegisterRoutes sets up the webhook route on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook", h.handleWebhook)
}

type webhookMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type webhookEvent struct {
	Type       string         `json:"type"`
	ReplyToken string         `json:"replyToken"`
	Message    webhookMessage `json:"message"`
}

// webhookRequest is the platform's delivery envelope.
type webhookRequest struct {
	Events []webhookEvent `json:"events"`
}

// handleWebhook implements POST /webhook. The body is authenticated before
// it is parsed; an invalid signature means the payload is never looked at.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("Webhook body exceeds limit.", slog.Int64("limit", tooLarge.Limit))
			http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.Warn("Failed to read webhook body.", slog.Any("error", err))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !h.validSignature(body, r.Header.Get(signatureHeader)) {
		h.logger.Warn("Webhook signature mismatch.", slog.String("remote", r.RemoteAddr))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Warn("Failed to decode webhook body.", slog.Any("error", err))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	for _, ev := range req.Events {
		if ev.Type != "message" || ev.Message.Type != "text" || ev.Message.Text == "" {
			continue
		}
		q := domain.Question{
			Text:          ev.Message.Text,
			CorrelationID: uuid.NewString(),
			ReplyToken:    ev.ReplyToken,
		}
		if !h.queue.TryEnqueue(q) {
			// Still 200: the platform retries on non-2xx, and duplicate
			// answers are worse than a dropped question here.
			h.logger.Warn("Question queue full, dropping event.",
				slog.String("correlation_id", q.CorrelationID))
			metrics.DroppedEventsTotal.Inc()
			continue
		}
		h.logger.Info("Question accepted.", slog.String("correlation_id", q.CorrelationID))
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) validSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, h.channelSecret)
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
