package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/router-for-me/PixStore/internal/apperr"
	log "github.com/sirupsen/logrus"
)

const (
	defaultRequestTimeout = 20 * time.Second
	maxErrorBodyBytes     = 512
)

// ErrProviderRejected classifies 4xx answers: the request or the credentials
// are wrong and retrying will not help.
var ErrProviderRejected = apperr.New(apperr.ErrInvalid, "payment provider rejected the request")

// ProviderError is a non-2xx answer from the provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider: status=%d body=%s", e.StatusCode, e.Body)
}

// Temporary reports whether the failure is on the provider side.
func (e *ProviderError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

// Unwrap classifies 5xx, 408 and 429 as upstream unavailability and any
// other status as a rejected request.
func (e *ProviderError) Unwrap() error {
	if e.Temporary() {
		return apperr.ErrUpstreamUnavailable
	}
	return ErrProviderRejected
}

// PagarmeProvider talks to the pagar.me core v5 orders API.
type PagarmeProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewPagarmeProvider constructs a PagarmeProvider. A nil client uses a 20s timeout client.
func NewPagarmeProvider(baseURL, apiKey string, client *http.Client) *PagarmeProvider {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &PagarmeProvider{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  client,
	}
}

type pagarmeOrderRequest struct {
	Code     string            `json:"code"`
	Items    []pagarmeItem     `json:"items"`
	Customer pagarmeCustomer   `json:"customer"`
	Payments []pagarmePayment  `json:"payments"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Closed   bool              `json:"closed"`
}

type pagarmeItem struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Code        string `json:"code"`
}

type pagarmeCustomer struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Code string `json:"code"`
}

type pagarmePayment struct {
	PaymentMethod string     `json:"payment_method"`
	Pix           pagarmePix `json:"pix"`
}

type pagarmePix struct {
	ExpiresIn int64 `json:"expires_in"`
}

type pagarmeOrder struct {
	ID      string          `json:"id"`
	Status  string          `json:"status"`
	Charges []pagarmeCharge `json:"charges"`
}

type pagarmeCharge struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	LastTransaction struct {
		QRCode    string     `json:"qr_code"`
		QRCodeURL string     `json:"qr_code_url"`
		ExpiresAt *time.Time `json:"expires_at"`
	} `json:"last_transaction"`
}

// CreateCharge implements Provider.
func (p *PagarmeProvider) CreateCharge(ctx context.Context, req ChargeRequest) (*ProviderCharge, error) {
	expiresIn := int64(req.ExpiresIn / time.Second)
	if expiresIn <= 0 {
		expiresIn = 7200
	}
	userCode := strconv.FormatInt(req.UserID, 10)
	body := pagarmeOrderRequest{
		Code: req.Reference,
		Items: []pagarmeItem{{
			Amount:      req.AmountCents,
			Description: req.Description,
			Quantity:    1,
			Code:        "balance-recharge",
		}},
		Customer: pagarmeCustomer{Name: "Telegram " + userCode, Type: "individual", Code: userCode},
		Payments: []pagarmePayment{{PaymentMethod: "pix", Pix: pagarmePix{ExpiresIn: expiresIn}}},
		Metadata: map[string]string{"charge_id": req.Reference, "user_id": userCode},
		Closed:   true,
	}

	var order pagarmeOrder
	if err := p.do(ctx, http.MethodPost, "/orders", body, &order); err != nil {
		return nil, err
	}
	out := &ProviderCharge{ID: order.ID, Status: mapPagarmeStatus(order.Status)}
	if len(order.Charges) > 0 {
		tx := order.Charges[0].LastTransaction
		out.Code = tx.QRCode
		out.QRCodeURL = tx.QRCodeURL
		out.ExpiresAt = tx.ExpiresAt
	}
	if out.ID == "" {
		return nil, fmt.Errorf("payment provider: order id missing: %w", apperr.ErrUpstreamUnavailable)
	}
	return out, nil
}

// GetStatus implements Provider.
func (p *PagarmeProvider) GetStatus(ctx context.Context, providerChargeID string) (ProviderStatus, error) {
	var order pagarmeOrder
	if err := p.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(providerChargeID), nil, &order); err != nil {
		return "", err
	}
	return mapPagarmeStatus(order.Status), nil
}

func (p *PagarmeProvider) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, errMarshal := json.Marshal(in)
		if errMarshal != nil {
			return fmt.Errorf("payment provider: encode request: %w", errMarshal)
		}
		reader = bytes.NewReader(payload)
	}
	req, errReq := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if errReq != nil {
		return fmt.Errorf("payment provider: build request: %w", errReq)
	}
	req.SetBasicAuth(p.apiKey, "")
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, errDo := p.client.Do(req)
	if errDo != nil {
		return fmt.Errorf("payment provider: %s %s: %w: %v", method, path, apperr.ErrUpstreamUnavailable, errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		providerErr := &ProviderError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		if !providerErr.Temporary() {
			log.WithFields(log.Fields{
				"method": method,
				"path":   path,
				"status": resp.StatusCode,
			}).Errorf("payment provider rejected request, check payment.api-key and payload: %s", providerErr.Body)
		}
		return providerErr
	}
	if out == nil {
		return nil
	}
	if errDecode := json.NewDecoder(resp.Body).Decode(out); errDecode != nil {
		return fmt.Errorf("payment provider: decode response: %w: %v", apperr.ErrUpstreamUnavailable, errDecode)
	}
	return nil
}

func mapPagarmeStatus(status string) ProviderStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid":
		return ProviderPaid
	case "canceled", "cancelled":
		return ProviderCanceled
	case "failed", "payment_failed":
		return ProviderFailed
	case "expired":
		return ProviderExpired
	default:
		return ProviderPending
	}
}
