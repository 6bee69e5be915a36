package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/studykart/studykart/internal/port"
)

// PayPal creates approval orders and verifies captures. Unlike Stripe,
// the flow ends with an explicit server-side verification step.
type PayPal struct {
	baseURL  string
	clientID string
	secret   string
	client   *http.Client
}

func NewPayPal(baseURL, clientID, secret string, client *http.Client) *PayPal {
	if client == nil {
		client = http.DefaultClient
	}

	return &PayPal{baseURL: baseURL, clientID: clientID, secret: secret, client: client}
}

func (p *PayPal) Name() string { return "paypal" }

// SDKConfig is what a browser needs to bootstrap the PayPal SDK.
type SDKConfig struct {
	ClientID    string `json:"clientId"`
	Currency    string `json:"currency"`
	Intent      string `json:"intent"`
	ClientToken string `json:"clientToken"`
}

func (p *PayPal) SDKConfig(currencyCode string) SDKConfig {
	return SDKConfig{
		ClientID: p.clientID,
		Currency: currencyCode,
		Intent:   "capture",
	}
}

type paypalOrderRequest struct {
	ReferenceID string       `json:"reference_id"`
	Amount      paypalAmount `json:"amount"`
	Email       string       `json:"payer_email,omitempty"`
}

type paypalAmount struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currency_code"`
}

type paypalOrderResponse struct {
	ID    string `json:"id"`
	Links []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

func (p *PayPal) CreateSession(ctx context.Context, req port.SessionRequest) (port.Session, error) {
	payload := paypalOrderRequest{
		ReferenceID: req.OrderID.String(),
		Amount: paypalAmount{
			Value:        req.Total.Amount.StringFixed(2),
			CurrencyCode: req.Total.Currency.String(),
		},
		Email: req.Email,
	}

	var resp paypalOrderResponse
	if err := p.post(ctx, "/v2/checkout/orders", payload, &resp); err != nil {
		return port.Session{}, err
	}

	session := port.Session{ID: resp.ID}
	for _, link := range resp.Links {
		if link.Rel == "approve" {
			session.RedirectURL = link.Href
			break
		}
	}

	return session, nil
}

type paypalCaptureResponse struct {
	Status string `json:"status"`
}

func (p *PayPal) VerifyPayment(ctx context.Context, providerOrderID string) error {
	var resp paypalCaptureResponse
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", providerOrderID)
	if err := p.post(ctx, path, struct{}{}, &resp); err != nil {
		return err
	}

	if resp.Status != "COMPLETED" {
		return fmt.Errorf("paypal capture not completed: %s", resp.Status)
	}

	return nil
}

func (p *PayPal) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(p.clientID, p.secret)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("client.Do: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return fmt.Errorf("paypal %s: unexpected status %d", path, httpResp.StatusCode)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("json.Decode: %w", err)
	}

	return nil
}
