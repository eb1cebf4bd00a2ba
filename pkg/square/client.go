// Package square wraps the slice of the Square SDK the refunds service calls.
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
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/order-refunds/pkg/config"
	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
	"github.com/angelmondragon/order-refunds/pkg/logger"
)

var baseURLs = map[string]string{
	"sandbox":    "https://connect.squareupsandbox.com",
	"production": "https://connect.squareup.com",
}

// refundsAPI matches the SDK's refunds resource.
type refundsAPI interface {
	RefundPayment(ctx context.Context, request *sq.RefundPaymentRequest, opts ...sqoption.RequestOption) (*sq.RefundPaymentResponse, error)
}

type Client struct {
	refunds     refundsAPI
	environment string
	logger      *logger.Logger
}

// NewClient builds a client for cfg. The access token is required even in
// sandbox.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errors.New("square logger is required")
	}
	env := cfg.Environment()
	baseURL, ok := baseURLs[env]
	if !ok {
		return nil, fmt.Errorf("unknown square environment %q", cfg.Env)
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errors.New("square access token is required")
	}

	sdk := sqclient.NewClient(sqoption.WithBaseURL(baseURL), sqoption.WithToken(token))
	logg.Info(logg.WithField(ctx, "square_env", env), "square client initialized")
	return &Client{refunds: sdk.Refunds, environment: env, logger: logg}, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// RefundPayment asks Square to return params.AmountCents of a captured
// payment. Square answers synchronously with PENDING for most card refunds.
func (c *Client) RefundPayment(ctx context.Context, params RefundPaymentParams) (*RefundResult, error) {
	if err := params.validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "square refund rejected before sending")
	}
	key := strings.TrimSpace(params.IdempotencyKey)
	if key == "" {
		key = "refund-" + uuid.NewString()
	}

	ctx = c.logger.WithFields(ctx, map[string]any{
		"square_payment_id": params.PaymentID,
		"amount":            params.AmountCents,
		"currency":          params.Currency,
	})
	c.logger.Debug(ctx, "square refund requested")

	resp, err := c.refunds.RefundPayment(ctx, params.request(key))
	if err != nil {
		mapped := classify(err)
		c.logger.Error(ctx, "square refund failed", mapped)
		return nil, mapped
	}
	refund := resp.GetRefund()
	if refund == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square returned no refund")
	}

	result := &RefundResult{ID: refund.ID, Status: strings.ToUpper(deref(refund.Status))}
	c.logger.Info(c.logger.WithFields(ctx, map[string]any{
		"square_refund_id": result.ID,
		"square_status":    result.Status,
	}), "square refund accepted")
	return result, nil
}

// classify turns an SDK failure into a typed error. Square's error body can
// override the status based code.
func classify(err error) error {
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "square unreachable")
	}

	code := codeForStatus(apiErr.StatusCode)
	for _, e := range apiErrors(apiErr) {
		switch {
		case e.Code == sq.ErrorCodeIdempotencyKeyReused:
			code = pkgerrors.CodeIdempotency
		case e.Category == sq.ErrorCategoryAuthenticationError:
			// our credentials, not the caller's
			code = pkgerrors.CodeDependency
		default:
			continue
		}
		break
	}
	return pkgerrors.Wrap(code, err, fmt.Sprintf("square responded %d", apiErr.StatusCode))
}

func apiErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(inner.Error()), &body); err != nil {
		return nil
	}
	out := body.Errors[:0]
	for _, e := range body.Errors {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func codeForStatus(status int) pkgerrors.Code {
	switch {
	case status == http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case status == http.StatusConflict:
		return pkgerrors.CodeConflict
	case status == http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case status == http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return pkgerrors.CodeDependency
	case status >= 400 && status < 500:
		return pkgerrors.CodeValidation
	default:
		return pkgerrors.CodeDependency
	}
}
