package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wordle-hub/wordle-stats-bot/internal/infrastructure/external/telegram"
	"github.com/wordle-hub/wordle-stats-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// TELEGRAM WEBHOOK
// Telegram posts one Update per request. The secret is checked against the
// X-Telegram-Bot-Api-Secret-Token header or the {secret} path segment.
// ══════════════════════════════════════════════════════════════════════════════

// SecretTokenHeader is set by Telegram when the webhook has a secret token.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// maxUpdateBytes caps the request body. Updates are a few KB.
const maxUpdateBytes = 1 << 20

// UpdateHandler processes a decoded update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update *telegram.Update) error
}

// Webhook receives Telegram updates.
type Webhook struct {
	handler UpdateHandler
	secret  []byte
	timeout time.Duration
}

// NewWebhook creates the webhook handler. An empty secret disables the check.
func NewWebhook(handler UpdateHandler, secret string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Webhook{handler: handler, secret: []byte(secret), timeout: timeout}
}

// ServeHTTP implements http.Handler.
func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		WriteError(w, r, http.StatusUnauthorized, "invalid_secret", "invalid webhook secret")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBytes+1))
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "read_failed", "failed to read body")
		return
	}
	if len(body) > maxUpdateBytes {
		WriteError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "update too large")
		return
	}

	var update telegram.Update
	if err := json.Unmarshal(body, &update); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "malformed update")
		return
	}

	// Telegram retries non-2xx answers, so handler failures still get 200.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()
	if err := h.handler.HandleUpdate(ctx, &update); err != nil {
		logger.FromContext(r.Context()).WarnContext(ctx, "webhook update failed",
			logger.Err(err),
		)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Webhook) authorized(r *http.Request) bool {
	if len(h.secret) == 0 {
		return true
	}
	if tok := r.Header.Get(SecretTokenHeader); tok != "" &&
		subtle.ConstantTimeCompare([]byte(tok), h.secret) == 1 {
		return true
	}
	if seg := chi.URLParam(r, "secret"); seg != "" &&
		subtle.ConstantTimeCompare([]byte(seg), h.secret) == 1 {
		return true
	}
	return false
}
