// Package paypal talks to the PayPal REST API (Orders v2 and webhook verification).
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/config"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/shopspring/decimal"
)

// tokenSafetyMargin renews the access token this long before PayPal expires it.
const tokenSafetyMargin = time.Minute

// ObserveFunc receives the duration and outcome of every PayPal call.
type ObserveFunc func(operation, outcome string, elapsed time.Duration)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithObserver(fn ObserveFunc) Option {
	return func(c *Client) { c.observe = fn }
}

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	webhookID    string
	httpClient   *http.Client
	logger       *slog.Logger
	observe      ObserveFunc
	now          func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg config.PayPalConfig, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		webhookID:    cfg.WebhookID,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		logger:       logger,
		observe:      func(string, string, time.Duration) {},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateOrder(ctx context.Context, req application.CreateOrderRequest) (*application.GatewayOrder, error) {
	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnitRequest{{
			ReferenceID: req.ReferenceID,
			Description: req.Description,
			Amount: money{
				CurrencyCode: string(req.Currency),
				Value:        req.Amount.StringFixed(2),
			},
		}},
	}
	body.PaymentSource.PayPal.ExperienceContext = experienceContext{
		BrandName:          req.BrandName,
		UserAction:         "PAY_NOW",
		ShippingPreference: "NO_SHIPPING",
		ReturnURL:          req.ReturnURL,
		CancelURL:          req.CancelURL,
	}

	order, err := sendRequest[createOrderRequest, orderResponse](c, ctx, "create_order",
		http.MethodPost, "/v2/checkout/orders", &body, "create-"+req.ReferenceID)
	if err != nil {
		return nil, err
	}

	return &application.GatewayOrder{
		ID:     order.ID,
		Status: order.Status,
		Links:  toLinks(order.Links),
	}, nil
}

// CaptureOrder captures an approved order. The order id doubles as PayPal-Request-Id,
// so a retried capture is answered with the original result.
func (c *Client) CaptureOrder(ctx context.Context, gatewayOrderID string) (*application.CaptureResult, error) {
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", url.PathEscape(gatewayOrderID))
	empty := struct{}{}
	order, err := sendRequest[struct{}, orderResponse](c, ctx, "capture_order",
		http.MethodPost, path, &empty, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	return toCaptureResult(order), nil
}

func (c *Client) GetOrder(ctx context.Context, gatewayOrderID string) (*application.CaptureResult, error) {
	path := fmt.Sprintf("/v2/checkout/orders/%s", url.PathEscape(gatewayOrderID))
	order, err := sendRequest[any, orderResponse](c, ctx, "get_order", http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	return toCaptureResult(order), nil
}

// VerifyWebhookSignature asks PayPal whether a delivery was signed for the configured webhook.
func (c *Client) VerifyWebhookSignature(ctx context.Context, v application.WebhookVerification) (bool, error) {
	if c.webhookID == "" {
		return false, errors.New("paypal webhook id is not configured")
	}

	body := verifySignatureRequest{
		AuthAlgo:         v.AuthAlgo,
		CertURL:          v.CertURL,
		TransmissionID:   v.TransmissionID,
		TransmissionSig:  v.TransmissionSig,
		TransmissionTime: v.TransmissionTime,
		WebhookID:        c.webhookID,
		WebhookEvent:     json.RawMessage(v.Body),
	}

	resp, err := sendRequest[verifySignatureRequest, verifySignatureResponse](c, ctx, "verify_webhook",
		http.MethodPost, "/v1/notifications/verify-webhook-signature", &body, "")
	if err != nil {
		return false, err
	}
	return resp.VerificationStatus == "SUCCESS", nil
}

func sendRequest[Req any, Resp any](
	c *Client,
	ctx context.Context,
	operation, method, path string,
	reqBody *Req,
	requestID string,
) (*Resp, error) {
	start := c.now()
	resp, err := doRequest[Req, Resp](c, ctx, method, path, reqBody, requestID)

	// an expired token is renewed once
	if gwErr, ok := application.IsGatewayError(err); ok && gwErr.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
		resp, err = doRequest[Req, Resp](c, ctx, method, path, reqBody, requestID)
	}

	c.observe(operation, outcomeOf(err), c.now().Sub(start))
	if err != nil {
		c.logger.Warn("paypal request failed",
			"operation", operation,
			"error", err,
		)
	}
	return resp, err
}

func doRequest[Req any, Resp any](
	c *Client,
	ctx context.Context,
	method, path string,
	reqBody *Req,
	requestID string,
) (*Resp, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Prefer", "return=representation")
	}
	if requestID != "" {
		httpReq.Header.Set("PayPal-Request-Id", requestID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, parseError(resp.StatusCode, body)
	}

	var out Resp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}
	return &out, nil
}

// accessToken returns the cached OAuth token, fetching a new one when it is about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("error creating token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error requesting access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", parseError(resp.StatusCode, body)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("error decoding token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("paypal returned an empty access token")
	}

	c.token = tok.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSafetyMargin)
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}

func toLinks(links []link) []domain.Link {
	out := make([]domain.Link, len(links))
	for i, l := range links {
		out[i] = domain.Link{Href: l.Href, Rel: l.Rel, Method: l.Method}
	}
	return out
}

// toCaptureResult flattens an order into its first capture, if any.
func toCaptureResult(order *orderResponse) *application.CaptureResult {
	result := &application.CaptureResult{
		OrderID:     order.ID,
		OrderStatus: order.Status,
	}

	for _, unit := range order.PurchaseUnits {
		if unit.Payments == nil || len(unit.Payments.Captures) == 0 {
			continue
		}
		cp := unit.Payments.Captures[0]
		result.CaptureID = cp.ID
		result.CaptureStatus = strings.ToUpper(cp.Status)
		if cp.StatusDetails != nil {
			result.StatusReason = cp.StatusDetails.Reason
		}
		if amount, err := decimal.NewFromString(cp.Amount.Value); err == nil {
			result.Amount = amount
		}
		if currency, err := domain.ParseCurrency(cp.Amount.CurrencyCode); err == nil {
			result.Currency = currency
		}
		break
	}

	if order.Payer != nil {
		info := &domain.PayerInfo{
			PayerID: order.Payer.PayerID,
			Email:   order.Payer.EmailAddress,
		}
		if order.Payer.Name != nil {
			info.GivenName = order.Payer.Name.GivenName
			info.Surname = order.Payer.Name.Surname
		}
		result.Payer = info
	}

	return result
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	if gwErr, ok := application.IsGatewayError(err); ok {
		if gwErr.IsRetryable() {
			return "upstream_unavailable"
		}
		return "rejected"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
