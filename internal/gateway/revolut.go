package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"travelapp/internal/domain"
	"travelapp/internal/domain/models"
	"travelapp/internal/metrics"
	"travelapp/internal/utils"

	"github.com/shopspring/decimal"
)

const (
	SandboxBaseURL    = "https://sandbox-merchant.revolut.com/api"
	ProductionBaseURL = "https://merchant.revolut.com/api"
	APIVersion        = "2024-09-01"
)

// RevolutClient talks to the Revolut Merchant orders API.
type RevolutClient struct {
	BaseURL    string
	APIKey     string
	APIVersion string
	client     *http.Client
}

func NewRevolutClient(apiKey string, sandbox bool, timeout time.Duration) *RevolutClient {
	baseURL := ProductionBaseURL
	if sandbox {
		baseURL = SandboxBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RevolutClient{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		APIVersion: APIVersion,
		client:     &http.Client{Timeout: timeout},
	}
}

type CreateOrderRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	RedirectURL *string
	// MerchantRef is echoed back by the processor in webhooks and the dashboard.
	MerchantRef string
}

// Order is the processor's view of a checkout. Amount is in minor units.
type Order struct {
	ID          string `json:"id"`
	Token       string `json:"token,omitempty"`
	State       string `json:"state"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	CheckoutURL string `json:"checkout_url"`
}

// Total is the order amount in major units.
func (o Order) Total() decimal.Decimal {
	return utils.FromMinorUnits(o.Amount)
}

type createOrderBody struct {
	Amount              int64   `json:"amount"`
	Currency            string  `json:"currency"`
	Description         string  `json:"description,omitempty"`
	RedirectURL         *string `json:"redirect_url,omitempty"`
	MerchantOrderExtRef string  `json:"merchant_order_ext_ref,omitempty"`
}

func (c *RevolutClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	if !req.Amount.IsPositive() {
		return Order{}, domain.ValidationError{Field: "amount", Msg: "must be positive"}
	}
	body, err := json.Marshal(createOrderBody{
		Amount:              utils.ToMinorUnits(req.Amount),
		Currency:            strings.ToUpper(req.Currency),
		Description:         req.Description,
		RedirectURL:         req.RedirectURL,
		MerchantOrderExtRef: req.MerchantRef,
	})
	if err != nil {
		return Order{}, err
	}

	var out Order
	if err := c.do(ctx, http.MethodPost, "/orders", body, "create_order", &out); err != nil {
		return Order{}, err
	}
	return out, nil
}

func (c *RevolutClient) GetOrder(ctx context.Context, orderID string) (Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return Order{}, domain.ValidationError{Field: "order_id", Msg: "required"}
	}
	var out Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, "get_order", &out); err != nil {
		return Order{}, err
	}
	return out, nil
}

func (c *RevolutClient) do(ctx context.Context, method, path string, body []byte, op string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Revolut-Api-Version", c.APIVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues(op, metrics.OutcomeError).Inc()
		return fmt.Errorf("revolut %s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.GatewayRequests.WithLabelValues(op, metrics.OutcomeRejected).Inc()
		return domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("revolut %s: decode response: %w", op, err)
	}
	metrics.GatewayRequests.WithLabelValues(op, metrics.OutcomeOK).Inc()
	return nil
}

// MapOrderState folds processor order states into ledger statuses. States
// that are still in flight map to pending.
func MapOrderState(state string) models.ExternalStatus {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "completed":
		return models.ExternalCompleted
	case "cancelled":
		return models.ExternalCancelled
	case "failed":
		return models.ExternalFailed
	default:
		return models.ExternalPending
	}
}
