package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/router-for-me/PixStore/internal/apperr"
	"github.com/shopspring/decimal"
)

func TestPagarmeCreateCharge(t *testing.T) {
	var got pagarmeOrderRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		if !ok || user != "sk_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPost || r.URL.Path != "/core/v5/orders" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"or_abc","status":"pending","charges":[{"id":"ch_1","status":"pending","last_transaction":{"qr_code":"000201pix","qr_code_url":"https://qr.example/abc.png","expires_at":"2026-01-01T12:00:00Z"}}]}`))
	}))
	defer server.Close()

	provider := NewPagarmeProvider(server.URL+"/core/v5/", "sk_test", server.Client())
	charge, err := provider.CreateCharge(context.Background(), ChargeRequest{
		Reference:   "local-1",
		AmountCents: ToMinorUnits(decimal.RequireFromString("12.345")),
		Description: "Balance recharge",
		UserID:      77,
		ExpiresIn:   30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("create charge: %v", err)
	}
	if charge.ID != "or_abc" || charge.Code != "000201pix" || charge.QRCodeURL == "" {
		t.Fatalf("unexpected charge %+v", charge)
	}
	if charge.ExpiresAt == nil || charge.ExpiresAt.Hour() != 12 {
		t.Fatalf("unexpected expiry %v", charge.ExpiresAt)
	}
	if got.Code != "local-1" || len(got.Items) != 1 || got.Items[0].Amount != 1235 {
		t.Fatalf("unexpected request %+v", got)
	}
	if len(got.Payments) != 1 || got.Payments[0].PaymentMethod != "pix" || got.Payments[0].Pix.ExpiresIn != 1800 {
		t.Fatalf("unexpected payments %+v", got.Payments)
	}
	if got.Customer.Code != "77" {
		t.Fatalf("unexpected customer %+v", got.Customer)
	}
}

func TestPagarmeGetStatus(t *testing.T) {
	statuses := map[string]ProviderStatus{
		"or_paid":     ProviderPaid,
		"or_pending":  ProviderPending,
		"or_canceled": ProviderCanceled,
		"or_failed":   ProviderFailed,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/orders/"):]
		status := id[len("or_"):]
		_, _ = w.Write([]byte(`{"id":"` + id + `","status":"` + status + `"}`))
	}))
	defer server.Close()

	provider := NewPagarmeProvider(server.URL, "sk_test", nil)
	for id, want := range statuses {
		got, err := provider.GetStatus(context.Background(), id)
		if err != nil {
			t.Fatalf("get status %s: %v", id, err)
		}
		if got != want {
			t.Fatalf("status %s: expected %s, got %s", id, want, got)
		}
	}
}

func TestPagarmeErrorIsUpstreamUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"gateway down"}`))
	}))
	defer server.Close()

	provider := NewPagarmeProvider(server.URL, "sk_test", nil)
	_, err := provider.GetStatus(context.Background(), "or_1")
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) || providerErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable kind, got %v", err)
	}
}

func TestPagarmeClientErrorIsRejected(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusUnprocessableEntity} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"invalid api key"}`))
		}))
		provider := NewPagarmeProvider(server.URL, "sk_bad", nil)
		_, err := provider.CreateCharge(context.Background(), ChargeRequest{Reference: "c1", AmountCents: 1000, UserID: 7})
		server.Close()

		if !errors.Is(err, ErrProviderRejected) || !errors.Is(err, apperr.ErrInvalid) {
			t.Fatalf("status %d: expected rejected request, got %v", status, err)
		}
		if errors.Is(err, apperr.ErrUpstreamUnavailable) {
			t.Fatalf("status %d: must not be classified as upstream unavailable", status)
		}
	}
}

func TestPagarmeRateLimitIsUpstreamUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewPagarmeProvider(server.URL, "sk_test", nil).GetStatus(context.Background(), "or_1")
	if !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable for 429, got %v", err)
	}
}

func TestToMinorUnits(t *testing.T) {
	cases := map[string]int64{
		"10":     1000,
		"10.5":   1050,
		"0.015":  2,
		"123.45": 12345,
	}
	for in, want := range cases {
		if got := ToMinorUnits(decimal.RequireFromString(in)); got != want {
			t.Fatalf("ToMinorUnits(%s) = %d, want %d", in, got, want)
		}
	}
}
