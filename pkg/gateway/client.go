package gateway

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

	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
)

const (
	defaultBaseURL              = "https://api.paystack.co"
	defaultTimeout              = 10 * time.Second
	defaultVerifyDeadline       = 20 * time.Second
	defaultMaxRetries    uint64 = 3
	defaultBackoffBase          = 200 * time.Millisecond
	maxBackoffStep              = 2 * time.Second
	responseReadLimit    int64  = 1 << 20
	errorBodyReadLimit   int64  = 1024
)

var errSecretRequired = errors.New("gateway secret key is required")

// Client talks to the card gateway's transaction API. It never touches local
// state.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	secretKey      string
	maxRetries     uint64
	backoffBase    time.Duration
	verifyDeadline time.Duration
	metrics        *metrics.SettlementMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the gateway API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithRetry sets how many times Verify retries transient failures and the
// base delay of the exponential backoff.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		if base > 0 {
			c.backoffBase = base
		}
	}
}

// WithVerifyDeadline bounds the total time Verify may spend across retries.
func WithVerifyDeadline(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.verifyDeadline = d
		}
	}
}

// WithMetrics records call latency on m.
func WithMetrics(m *metrics.SettlementMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds the gateway client given the secret key.
func NewClient(secretKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(secretKey)
	if trimmedKey == "" {
		return nil, errSecretRequired
	}

	client := &Client{
		secretKey:      trimmedKey,
		baseURL:        defaultBaseURL,
		httpClient:     &http.Client{Timeout: defaultTimeout},
		maxRetries:     defaultMaxRetries,
		backoffBase:    defaultBackoffBase,
		verifyDeadline: defaultVerifyDeadline,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// NewFromConfig wires the client from environment configuration.
func NewFromConfig(cfg config.GatewayConfig, m *metrics.SettlementMetrics) (*Client, error) {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return NewClient(cfg.SecretKey,
		WithBaseURL(cfg.BaseURL),
		WithHTTPClient(&http.Client{Timeout: timeout}),
		WithRetry(cfg.MaxRetries, defaultBackoffBase),
		WithVerifyDeadline(cfg.VerifyDeadline),
		WithMetrics(m),
	)
}

// InitializeRequest describes a checkout to open at the gateway.
type InitializeRequest struct {
	Reference   string
	Email       string
	AmountMinor int64
	Currency    enums.Currency
	CallbackURL string
	Metadata    map[string]string
}

// InitializeResult carries the hosted payment page for the buyer.
type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize opens a transaction at the gateway. It is not retried: a second
// attempt with the same reference is rejected by the gateway.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway client not configured")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	if req.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	body := map[string]any{
		"reference": req.Reference,
		"email":     req.Email,
		"amount":    req.AmountMinor,
		"currency":  string(req.Currency),
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal initialize request")
	}

	start := time.Now()
	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	err = c.do(ctx, http.MethodPost, c.buildURL("transaction/initialize"), payload, &data)
	c.observe("initialize", start, err)
	if err != nil {
		return nil, err
	}
	if data.AuthorizationURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayDown, "gateway returned no authorization url")
	}
	reference := data.Reference
	if reference == "" {
		reference = req.Reference
	}
	return &InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        reference,
	}, nil
}

// Verify asks the gateway for the current status of reference. Transient
// failures are retried with exponential backoff inside the verify deadline.
func (c *Client) Verify(ctx context.Context, reference string) (enums.PaymentOutcome, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "gateway client not configured")
	}
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.verifyDeadline)
	defer cancel()

	endpoint := c.buildURL("transaction/verify/" + url.PathEscape(trimmed))
	backoff := retry.WithCappedDuration(maxBackoffStep, retry.NewExponential(c.backoffBase))
	backoff = retry.WithMaxRetries(c.maxRetries, backoff)

	var outcome enums.PaymentOutcome
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		start := time.Now()
		var data struct {
			Status    string `json:"status"`
			Reference string `json:"reference"`
		}
		err := c.do(ctx, http.MethodGet, endpoint, nil, &data)
		c.observe("verify", start, err)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeGatewayDown) {
				return retry.RetryableError(err)
			}
			return err
		}
		outcome = MapStatus(data.Status)
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeGatewayDown, err, "gateway verify timed out")
		}
		return "", err
	}
	return outcome, nil
}

// MapStatus converts a gateway transaction status into an outcome. Unknown
// statuses are treated as still pending.
func MapStatus(status string) enums.PaymentOutcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success":
		return enums.PaymentOutcomeSuccess
	case "failed", "abandoned", "reversed":
		return enums.PaymentOutcomeFailed
	default:
		return enums.PaymentOutcomePending
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayDown, err, "gateway request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeGatewayDown, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "gateway unavailable")
	}

	var env apiEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseReadLimit)).Decode(&env); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayDown, err, "decode gateway response")
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Status {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, msg), "gateway rejected request")
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayDown, err, "decode gateway data")
	}
	return nil
}

func (c *Client) observe(operation string, start time.Time, err error) {
	result := "ok"
	switch {
	case err == nil:
	case pkgerrors.IsCode(err, pkgerrors.CodeGatewayDown):
		result = "unavailable"
	default:
		result = "rejected"
	}
	c.metrics.ObserveGateway(operation, result, time.Since(start))
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
