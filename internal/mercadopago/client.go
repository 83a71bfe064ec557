// Package mercadopago is a small client for the MercadoPago checkout and
// payments APIs: it creates checkout preferences for orders and looks up
// payments announced by webhook notifications.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://api.mercadopago.com"

// StatusApproved is the payment status that settles an order.
const StatusApproved = "approved"

// ErrNotConfigured is returned by FetchPayment when no access token is set.
var ErrNotConfigured = errors.New("mercadopago: access token not configured")

// APIError is returned when MercadoPago answers with a non-2xx status.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago api: status %d: %s", e.Status, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	AccessToken string
	// WebhookURL is sent as notification_url on every preference.
	WebhookURL string
	HTTPClient *http.Client
}

// Client talks to the MercadoPago REST API.
type Client struct {
	baseURL    string
	token      string
	webhookURL string
	http       *http.Client
}

// New creates a client. A client without access token is valid: it runs in
// demo mode and never calls the API.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    base,
		token:      cfg.AccessToken,
		webhookURL: cfg.WebhookURL,
		http:       hc,
	}
}

// Configured reports whether an access token is set.
func (c *Client) Configured() bool {
	return c.token != ""
}

type preferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type preferenceRequest struct {
	Items             []preferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference"`
	NotificationURL   string           `json:"notification_url,omitempty"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// CreatePreference creates a single-item checkout preference for the order
// and returns its payment link. Without an access token it returns "" and
// no error: the caller falls back to manual confirmation.
func (c *Client) CreatePreference(ctx context.Context, orderID string, total decimal.Decimal) (string, error) {
	if !c.Configured() {
		return "", nil
	}

	req := preferenceRequest{
		Items: []preferenceItem{{
			Title:      "Pedido " + orderID,
			Quantity:   1,
			UnitPrice:  total.InexactFloat64(),
			CurrencyID: "ARS",
		}},
		ExternalReference: orderID,
		NotificationURL:   c.webhookURL,
	}

	var resp preferenceResponse
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", req, &resp); err != nil {
		return "", fmt.Errorf("create preference for %s: %w", orderID, err)
	}
	if resp.InitPoint != "" {
		return resp.InitPoint, nil
	}
	return resp.SandboxInitPoint, nil
}

// Payment is the part of a payment resource the reconciler needs.
type Payment struct {
	ID                string
	Status            string
	ExternalReference string
	Raw               json.RawMessage
}

// Approved reports whether the payment settles its order.
func (p Payment) Approved() bool {
	return p.Status == StatusApproved
}

type paymentResponse struct {
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
}

// FetchPayment looks a payment up by id.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (Payment, error) {
	if !c.Configured() {
		return Payment{}, ErrNotConfigured
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &raw); err != nil {
		return Payment{}, fmt.Errorf("fetch payment %s: %w", paymentID, err)
	}

	var resp paymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Payment{}, fmt.Errorf("fetch payment %s: decode: %w", paymentID, err)
	}
	return Payment{
		ID:                paymentID,
		Status:            resp.Status,
		ExternalReference: resp.ExternalReference,
		Raw:               raw,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
