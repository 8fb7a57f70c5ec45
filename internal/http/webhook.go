package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/PixStore/internal/apperr"
	"github.com/router-for-me/PixStore/internal/payment"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// WebhookProcessor applies a payment confirmation.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, hook payment.Webhook) (payment.WebhookResult, error)
}

// WebhookHandler receives PIX payment confirmations.
type WebhookHandler struct {
	payments WebhookProcessor
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(payments WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{payments: payments}
}

// webhookRequest defines the request body for POST /webhook-pix.
type webhookRequest struct {
	UserID         json.Number     `json:"userId"`
	Amount         decimal.Decimal `json:"valor"`
	Status         string          `json:"status"`
	ChargeID       string          `json:"chargeId"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

// Receive credits a confirmed payment.
func (h *WebhookHandler) Receive(c *gin.Context) {
	if h.payments == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payments unavailable"})
		return
	}

	var body webhookRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var userID int64
	if raw := strings.TrimSpace(body.UserID.String()); raw != "" {
		parsed, errParse := strconv.ParseInt(raw, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
			return
		}
		userID = parsed
	}

	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if key == "" {
		key = strings.TrimSpace(body.IdempotencyKey)
	}

	result, errHandle := h.payments.HandleWebhook(c.Request.Context(), payment.Webhook{
		UserID:         userID,
		Amount:         body.Amount,
		Status:         body.Status,
		ChargeID:       body.ChargeID,
		IdempotencyKey: key,
	})
	if errHandle != nil {
		status := statusForError(errHandle)
		entry := log.WithError(errHandle).WithFields(log.Fields{
			"request_id": c.GetString(requestIDKey),
			"user_id":    userID,
			"charge_id":  body.ChargeID,
		})
		if status >= http.StatusInternalServerError {
			entry.Error("webhook processing failed")
			c.JSON(status, gin.H{"error": "internal error"})
			return
		}
		entry.Warn("webhook rejected")
		c.JSON(status, gin.H{"error": errHandle.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// statusForError maps an error kind to an HTTP status.
func statusForError(err error) int {
	switch kind := apperr.Kind(err); {
	case errors.Is(kind, apperr.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(kind, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(kind, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(kind, apperr.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
