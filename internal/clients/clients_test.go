package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
)

func TestHTTPPaymentGatewayClient_CreateCheckoutSession(t *testing.T) {
	var received CheckoutSessionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/checkout/sessions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Expected bearer auth, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(CheckoutSession{ID: "cs_1", URL: "https://pay.example/cs_1"})
	}))
	defer server.Close()

	client := NewHTTPPaymentGatewayClient(config.ServiceConfig{
		BaseURL: server.URL,
		APIKey:  "secret",
		Timeout: time.Second,
	}, logging.NewNop())

	session, err := client.CreateCheckoutSession(context.Background(), &CheckoutSessionRequest{
		Mode:              "payment",
		ClientReferenceID: "Order #7 - Date 2025",
		LineItems: []LineItem{{
			PriceData: PriceData{UnitAmount: 1050, Currency: "usd", ProductData: ProductData{Name: "Mug"}},
			Quantity:  2,
		}},
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession() error = %v", err)
	}

	if session.URL != "https://pay.example/cs_1" {
		t.Errorf("Unexpected session URL %s", session.URL)
	}
	if len(received.LineItems) != 1 || received.LineItems[0].PriceData.UnitAmount != 1050 {
		t.Errorf("Unexpected line items %+v", received.LineItems)
	}
}

func TestHTTPPaymentGatewayClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name:    "gateway error status",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			wantErr: errors.ErrUnavailable,
		},
		{
			name: "missing url",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"id":"cs_1"}`))
			},
			wantErr: errors.ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewHTTPPaymentGatewayClient(config.ServiceConfig{BaseURL: server.URL, Timeout: time.Second}, logging.NewNop())
			_, err := client.CreateCheckoutSession(context.Background(), &CheckoutSessionRequest{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHTTPPaymentGatewayClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewHTTPPaymentGatewayClient(config.ServiceConfig{BaseURL: url, Timeout: time.Second}, logging.NewNop())
	_, err := client.CreateCheckoutSession(context.Background(), &CheckoutSessionRequest{})
	if !errors.Is(err, errors.ErrUnreachable) {
		t.Errorf("Expected ErrUnreachable, got %v", err)
	}
}

func TestHTTPNotificationClient_SendEmail(t *testing.T) {
	var received EmailRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/notifications/email" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewHTTPNotificationClient(config.ServiceConfig{BaseURL: server.URL, Timeout: time.Second}, logging.NewNop())
	err := client.SendEmail(context.Background(), &EmailRequest{
		To:      []string{"ada@example.com"},
		Subject: "Thanks for your purchase",
		Body:    "Your order num is Order #7 - Date 2025",
	})
	if err != nil {
		t.Fatalf("SendEmail() error = %v", err)
	}
	if len(received.To) != 1 || received.To[0] != "ada@example.com" {
		t.Errorf("Unexpected recipients %v", received.To)
	}
}

func TestHTTPNotificationClient_SendEmail_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPNotificationClient(config.ServiceConfig{BaseURL: server.URL, Timeout: time.Second}, logging.NewNop())
	err := client.SendEmail(context.Background(), &EmailRequest{To: []string{"a@example.com"}})
	if !errors.Is(err, errors.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}
