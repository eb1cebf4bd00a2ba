package refunds

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/order-refunds/api/middleware"
	internalrefunds "github.com/angelmondragon/order-refunds/internal/refunds"
	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
)

type stubService struct {
	calculate  func(context.Context, internalrefunds.CalculateRequest) (*internalrefunds.CalculateResult, error)
	create     func(context.Context, internalrefunds.CreateRequest) (*internalrefunds.SavedRefund, error)
	update     func(context.Context, internalrefunds.UpdateRequest) (*internalrefunds.SavedRefund, error)
	get        func(context.Context, int64) (*internalrefunds.SavedRefund, error)
	list       func(context.Context, int64) ([]internalrefunds.SavedRefund, error)
	quantities func(context.Context, int64) (map[int64]int, error)
	shipping   func(context.Context, int64) (bool, error)
}

func (s stubService) Calculate(ctx context.Context, req internalrefunds.CalculateRequest) (*internalrefunds.CalculateResult, error) {
	return s.calculate(ctx, req)
}

func (s stubService) Create(ctx context.Context, req internalrefunds.CreateRequest) (*internalrefunds.SavedRefund, error) {
	return s.create(ctx, req)
}

func (s stubService) Update(ctx context.Context, req internalrefunds.UpdateRequest) (*internalrefunds.SavedRefund, error) {
	return s.update(ctx, req)
}

func (s stubService) Get(ctx context.Context, id int64) (*internalrefunds.SavedRefund, error) {
	return s.get(ctx, id)
}

func (s stubService) ListForOrder(ctx context.Context, orderID int64) ([]internalrefunds.SavedRefund, error) {
	return s.list(ctx, orderID)
}

func (s stubService) RefundableQuantities(ctx context.Context, orderID int64) (map[int64]int, error) {
	return s.quantities(ctx, orderID)
}

func (s stubService) CanRefundShipping(ctx context.Context, orderID int64) (bool, error) {
	return s.shipping(ctx, orderID)
}

func savedRefund(id int64, total int64) *internalrefunds.SavedRefund {
	return &internalrefunds.SavedRefund{
		Refund:      &internalrefunds.Refund{ID: id, OrderID: 1, Reference: "Refund #0001"},
		Computation: internalrefunds.Computation{Total: total},
	}
}

func withRouteParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Details map[string][]string `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func TestCalculateReturnsRuleErrorsWithOK(t *testing.T) {
	var got internalrefunds.CalculateRequest
	svc := stubService{calculate: func(_ context.Context, req internalrefunds.CalculateRequest) (*internalrefunds.CalculateResult, error) {
		got = req
		return &internalrefunds.CalculateResult{
			Refund:      &internalrefunds.Refund{OrderID: req.OrderID},
			Computation: internalrefunds.Computation{Total: 1920},
			Errors:      internalrefunds.FieldErrors{"total": {"does not match the calculated total"}},
		}, nil
	}}

	body := `{"orderId":1,"lineItemsData":{"1":{"qty":2}},"total":100}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/refunds/calculate", strings.NewReader(body))
	resp := httptest.NewRecorder()
	Calculate(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 2, got.LineItemsData[1].Qty)

	var out internalrefunds.CalculateResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Data, &out))
	assert.False(t, out.Valid)
	require.NotNil(t, out.Refund)
	assert.Equal(t, int64(1920), out.Refund.Total)
	assert.Contains(t, out.Errors, "total")
}

func TestCalculateRejectsMalformedBody(t *testing.T) {
	svc := stubService{calculate: func(context.Context, internalrefunds.CalculateRequest) (*internalrefunds.CalculateResult, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}

	cases := map[string]string{
		"unknown field":   `{"orderId":1,"bogus":true}`,
		"missing orderId": `{}`,
		"not json":        `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/refunds/calculate", strings.NewReader(body))
			resp := httptest.NewRecorder()
			Calculate(svc, nil).ServeHTTP(resp, req)

			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Equal(t, string(pkgerrors.CodeValidation), decodeEnvelope(t, resp).Error.Code)
		})
	}
}

func TestCreateBindsActorAndReturnsCreated(t *testing.T) {
	var got internalrefunds.CreateRequest
	svc := stubService{create: func(_ context.Context, req internalrefunds.CreateRequest) (*internalrefunds.SavedRefund, error) {
		got = req
		return savedRefund(7, 1920), nil
	}}

	body := `{"orderId":1,"parentTransactionId":5,"lineItemsData":{"1":{"qty":2,"restock":true}},"total":1920}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/refunds", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "user-1", got.ActorID)
	assert.True(t, got.LineItemsData[1].Restock)
	require.NotNil(t, got.Total)
	assert.Equal(t, int64(1920), *got.Total)

	var dto internalrefunds.RefundDTO
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Data, &dto))
	assert.Equal(t, int64(7), dto.ID)
	assert.Equal(t, "Refund #0001", dto.Reference)
}

func TestCreateRequiresTotal(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/refunds", strings.NewReader(`{"parentTransactionId":5}`))
	resp := httptest.NewRecorder()
	Create(stubService{}, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, decodeEnvelope(t, resp).Error.Details, "total")
}

func TestCreateSurfacesServiceErrors(t *testing.T) {
	svc := stubService{create: func(context.Context, internalrefunds.CreateRequest) (*internalrefunds.SavedRefund, error) {
		return nil, pkgerrors.New(pkgerrors.CodeRefundTransactionFailed, "gateway declined")
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/refunds", strings.NewReader(`{"parentTransactionId":5,"total":0}`))
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeRefundTransactionFailed), decodeEnvelope(t, resp).Error.Code)
}

func TestUpdateTakesIDFromPath(t *testing.T) {
	var got internalrefunds.UpdateRequest
	svc := stubService{update: func(_ context.Context, req internalrefunds.UpdateRequest) (*internalrefunds.SavedRefund, error) {
		got = req
		return savedRefund(req.ID, 720), nil
	}}

	body := `{"transactionId":9,"reference":"Refund #0001","lineItemsData":{"1":{"qty":1}}}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/refunds/7", strings.NewReader(body))
	req = withRouteParam(req, "refundId", "7")
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-2"))
	resp := httptest.NewRecorder()
	Update(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "user-2", got.ActorID)
	assert.Equal(t, int64(9), got.TransactionID)
}

func TestUpdateRejectsMismatchedID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/refunds/7", strings.NewReader(`{"id":8,"transactionId":9,"reference":"x"}`))
	req = withRouteParam(req, "refundId", "7")
	resp := httptest.NewRecorder()
	Update(stubService{}, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, decodeEnvelope(t, resp).Error.Details, "id")
}

func TestUpdateNotRevisable(t *testing.T) {
	svc := stubService{update: func(context.Context, internalrefunds.UpdateRequest) (*internalrefunds.SavedRefund, error) {
		return nil, pkgerrors.New(pkgerrors.CodeNotRevisable, "refund can no longer be revised")
	}}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/refunds/7", strings.NewReader(`{"transactionId":9,"reference":"x"}`))
	req = withRouteParam(req, "refundId", "7")
	resp := httptest.NewRecorder()
	Update(svc, nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestDetailParsesPathParam(t *testing.T) {
	svc := stubService{get: func(_ context.Context, id int64) (*internalrefunds.SavedRefund, error) {
		if id != 7 {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
		}
		return savedRefund(7, 720), nil
	}}

	tests := []struct {
		param  string
		status int
	}{
		{"7", http.StatusOK},
		{"8", http.StatusNotFound},
		{"abc", http.StatusBadRequest},
		{"-1", http.StatusBadRequest},
	}
	for _, tc := range tests {
		req := withRouteParam(httptest.NewRequest(http.MethodGet, "/api/v1/refunds/"+tc.param, nil), "refundId", tc.param)
		resp := httptest.NewRecorder()
		Detail(svc, nil).ServeHTTP(resp, req)
		assert.Equal(t, tc.status, resp.Code, "param %s", tc.param)
	}
}

func TestListForOrder(t *testing.T) {
	svc := stubService{list: func(_ context.Context, orderID int64) ([]internalrefunds.SavedRefund, error) {
		return []internalrefunds.SavedRefund{*savedRefund(1, 720), *savedRefund(2, 1200)}, nil
	}}

	req := withRouteParam(httptest.NewRequest(http.MethodGet, "/api/v1/orders/1/refunds", nil), "orderId", "1")
	resp := httptest.NewRecorder()
	ListForOrder(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var out []internalrefunds.RefundDTO
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Data, &out))
	require.Len(t, out, 2)
	assert.Equal(t, int64(1200), out[1].Total)
}

func TestRefundable(t *testing.T) {
	svc := stubService{
		quantities: func(context.Context, int64) (map[int64]int, error) {
			return map[int64]int{1: 2, 2: 0}, nil
		},
		shipping: func(context.Context, int64) (bool, error) { return true, nil },
	}

	req := withRouteParam(httptest.NewRequest(http.MethodGet, "/api/v1/orders/1/refundable", nil), "orderId", "1")
	resp := httptest.NewRecorder()
	Refundable(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var out RefundableResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Data, &out))
	assert.Equal(t, int64(1), out.OrderID)
	assert.Equal(t, map[int64]int{1: 2, 2: 0}, out.Quantities)
	assert.True(t, out.CanRefundShipping)
}

func TestHandlersWithoutService(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/refunds/calculate", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	Calculate(nil, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}
