package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqcheckout "github.com/square/square-go-sdk/checkout"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"
	sqterminal "github.com/square/square-go-sdk/terminal"

	"github.com/farmstandhq/farmstand-backend/pkg/config"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
	"github.com/farmstandhq/farmstand-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errWebhookSecretRequired = errors.New("square webhook secret is required")
	errInvalidSquareEnv      = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired        = errors.New("square logger is required")
	errTokenRequired         = errors.New("square seller access token is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// Client exposes Square primitives with centralized logging, idempotency, and
// error mapping. Every seller brings their own OAuth access token, so SDK
// clients are built per call rather than held once.
type Client struct {
	environment   string
	webhookSecret string
	baseURL       string
	logger        *logger.Logger
}

// NewClient initializes the Square wrapper for the configured environment.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	c := &Client{
		environment:   env,
		webhookSecret: webhookSecret,
		baseURL:       baseURLs[env],
		logger:        logg,
	}

	logg.Info(ctx, "square client initialized")
	return c, nil
}

// Environment reports the normalized Square environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the Square webhook secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// NewIdempotencyKey returns a unique key for Square operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "fs"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

func (c *Client) sdkForToken(token string) (*sqclient.Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, errTokenRequired, "square seller credentials missing")
	}
	return sqclient.NewClient(
		sqoption.WithBaseURL(c.baseURL),
		sqoption.WithToken(token),
	), nil
}

// CreatePaymentLink creates a hosted payment link on the seller's account.
func (c *Client) CreatePaymentLink(ctx context.Context, token string, params PaymentLinkCreateParams) (*sq.PaymentLink, error) {
	sdk, err := c.sdkForToken(token)
	if err != nil {
		return nil, err
	}

	req := params.toSquareRequest(c.ensureIdempotencyKey("payment_link.create", params.IdempotencyKey))
	c.log(ctx, "request", "create_payment_link", map[string]any{
		"location_id": params.LocationID,
		"amount":      params.AmountCents,
		"reference":   params.ReferenceID,
	})

	resp, err := sdk.Checkout.PaymentLinks.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "create_payment_link", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "create payment link")
	}

	link := resp.GetPaymentLink()
	c.log(ctx, "response", "create_payment_link", map[string]any{
		"payment_link_id": stringValue(link.GetID()),
		"order_id":        stringValue(link.GetOrderID()),
	})
	return link, nil
}

// GetPaymentLink fetches an existing payment link on the seller's account.
func (c *Client) GetPaymentLink(ctx context.Context, token string, linkID string) (*sq.PaymentLink, error) {
	sdk, err := c.sdkForToken(token)
	if err != nil {
		return nil, err
	}

	c.log(ctx, "request", "get_payment_link", map[string]any{"payment_link_id": linkID})
	resp, err := sdk.Checkout.PaymentLinks.Get(ctx, &sqcheckout.GetPaymentLinksRequest{ID: linkID})
	if err != nil {
		c.log(ctx, "error", "get_payment_link", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "get payment link")
	}

	link := resp.GetPaymentLink()
	c.log(ctx, "response", "get_payment_link", map[string]any{
		"payment_link_id": stringValue(link.GetID()),
		"order_id":        stringValue(link.GetOrderID()),
	})
	return link, nil
}

// GetOrder fetches the Square order behind a payment link to observe its state.
func (c *Client) GetOrder(ctx context.Context, token string, orderID string) (*sq.Order, error) {
	sdk, err := c.sdkForToken(token)
	if err != nil {
		return nil, err
	}

	c.log(ctx, "request", "get_order", map[string]any{"order_id": orderID})
	resp, err := sdk.Orders.Get(ctx, &sq.GetOrdersRequest{OrderID: orderID})
	if err != nil {
		c.log(ctx, "error", "get_order", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "get order")
	}

	order := resp.GetOrder()
	c.log(ctx, "response", "get_order", map[string]any{
		"order_id": stringValue(order.GetID()),
		"state":    orderStateString(order.GetState()),
	})
	return order, nil
}

// ListLocations returns the seller's Square locations. Used to resolve a
// default location when the profile does not pin one.
func (c *Client) ListLocations(ctx context.Context, token string) ([]*sq.Location, error) {
	sdk, err := c.sdkForToken(token)
	if err != nil {
		return nil, err
	}

	c.log(ctx, "request", "list_locations", nil)
	resp, err := sdk.Locations.List(ctx)
	if err != nil {
		c.log(ctx, "error", "list_locations", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "list locations")
	}

	locations := resp.GetLocations()
	c.log(ctx, "response", "list_locations", map[string]any{"count": len(locations)})
	return locations, nil
}

// CreateTerminalCheckout pushes a card-present checkout to the seller's device.
func (c *Client) CreateTerminalCheckout(ctx context.Context, token string, params TerminalCheckoutCreateParams) (*sq.TerminalCheckout, error) {
	sdk, err := c.sdkForToken(token)
	if err != nil {
		return nil, err
	}

	req := params.toSquareRequest(c.ensureIdempotencyKey("terminal.create", params.IdempotencyKey))
	c.log(ctx, "request", "create_terminal_checkout", map[string]any{
		"device_id": params.DeviceID,
		"amount":    params.AmountCents,
		"reference": params.ReferenceID,
	})

	resp, err := sdk.Terminal.Checkouts.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "create_terminal_checkout", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "create terminal checkout")
	}

	checkout := resp.GetCheckout()
	c.log(ctx, "response", "create_terminal_checkout", map[string]any{
		"checkout_id": stringValue(checkout.GetID()),
		"status":      stringValue(checkout.GetStatus()),
	})
	return checkout, nil
}

// GetTerminalCheckout fetches the current state of a terminal checkout.
func (c *Client) GetTerminalCheckout(ctx context.Context, token string, checkoutID string) (*sq.TerminalCheckout, error) {
	sdk, err := c.sdkForToken(token)
	if err != nil {
		return nil, err
	}

	c.log(ctx, "request", "get_terminal_checkout", map[string]any{"checkout_id": checkoutID})
	resp, err := sdk.Terminal.Checkouts.Get(ctx, &sqterminal.GetCheckoutsRequest{CheckoutID: checkoutID})
	if err != nil {
		c.log(ctx, "error", "get_terminal_checkout", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "get terminal checkout")
	}

	checkout := resp.GetCheckout()
	c.log(ctx, "response", "get_terminal_checkout", map[string]any{
		"checkout_id": stringValue(checkout.GetID()),
		"status":      stringValue(checkout.GetStatus()),
	})
	return checkout, nil
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("square %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("square %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapSquareError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.StatusCode)
		for _, sqErr := range c.extractSquareErrors(apiErr) {
			if sqErr == nil {
				continue
			}
			if sqErr.Category == sq.ErrorCategoryAuthenticationError {
				code = pkgerrors.CodeUnauthorized
				break
			}
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("square %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeProvider, err, fmt.Sprintf("square %s failed", op))
}

func (c *Client) extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeUnauthorized
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeUnprocessable
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeProvider
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func orderStateString(state *sq.OrderState) string {
	if state == nil {
		return ""
	}
	return string(*state)
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidSquareEnv
	}
}
