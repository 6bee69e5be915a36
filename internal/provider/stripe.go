// Package provider implements the payment-provider port against the
// external Stripe and PayPal HTTP APIs. Providers are black boxes: they
// take the authoritative total plus an item manifest and answer with a
// session handle; no pricing logic lives here.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/studykart/studykart/internal/port"
)

type Stripe struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewStripe(baseURL, secretKey string, client *http.Client) *Stripe {
	if client == nil {
		client = http.DefaultClient
	}

	return &Stripe{baseURL: baseURL, secretKey: secretKey, client: client}
}

func (s *Stripe) Name() string { return "stripe" }

type stripeSessionRequest struct {
	OrderID   string           `json:"order_id"`
	Amount    string           `json:"amount"`
	Currency  string           `json:"currency"`
	Email     string           `json:"customer_email,omitempty"`
	LineItems []stripeLineItem `json:"line_items"`
}

type stripeLineItem struct {
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type stripeSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (s *Stripe) CreateSession(ctx context.Context, req port.SessionRequest) (port.Session, error) {
	payload := stripeSessionRequest{
		OrderID:  req.OrderID.String(),
		Amount:   req.Total.Amount.StringFixed(2),
		Currency: req.Total.Currency.String(),
		Email:    req.Email,
	}
	for _, line := range req.Items {
		payload.LineItems = append(payload.LineItems, stripeLineItem{
			Name:      line.Title,
			UnitPrice: line.Price.Amount.StringFixed(2),
			Quantity:  line.Quantity,
		})
	}

	var resp stripeSessionResponse
	if err := s.post(ctx, "/v1/checkout/sessions", payload, &resp); err != nil {
		return port.Session{}, err
	}

	return port.Session{ID: resp.ID, RedirectURL: resp.URL}, nil
}

func (s *Stripe) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.secretKey)

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("client.Do: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return fmt.Errorf("stripe %s: unexpected status %d", path, httpResp.StatusCode)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("json.Decode: %w", err)
	}

	return nil
}
