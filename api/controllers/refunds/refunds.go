package refunds

import (
	"net/http"

	"github.com/angelmondragon/order-refunds/api/middleware"
	"github.com/angelmondragon/order-refunds/api/responses"
	"github.com/angelmondragon/order-refunds/api/validators"
	internalrefunds "github.com/angelmondragon/order-refunds/internal/refunds"
	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
	"github.com/angelmondragon/order-refunds/pkg/logger"
)

// RefundableResponse lists what is still refundable on an order.
type RefundableResponse struct {
	OrderID           int64         `json:"orderId"`
	Quantities        map[int64]int `json:"quantities"`
	CanRefundShipping bool          `json:"canRefundShipping"`
}

// Calculate runs a dry run of the posted refund. Rule violations are part of
// a 200 response so the editor can render them next to the fields.
func Calculate(svc internalrefunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		var req internalrefunds.CalculateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.Calculate(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalrefunds.NewCalculateResponse(res))
	}
}

// Create persists a new refund.
func Create(svc internalrefunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		var req internalrefunds.CreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req.ActorID = middleware.UserIDFromContext(r.Context())

		saved, err := svc.Create(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalrefunds.NewRefundDTO(saved.Refund, saved.Computation))
	}
}

// Update applies the one permitted revision of a refund.
func Update(svc internalrefunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		refundID, err := validators.ParseIDParam(r, "refundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req internalrefunds.UpdateRequest
		if err := validators.DecodeJSON(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.ID != 0 && req.ID != refundID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "refund id mismatch").
				WithDetails(map[string][]string{"id": {"does not match the refund in the path"}}))
			return
		}
		req.ID = refundID
		req.ActorID = middleware.UserIDFromContext(r.Context())

		saved, err := svc.Update(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalrefunds.NewRefundDTO(saved.Refund, saved.Computation))
	}
}

// Detail returns a refund with its derived totals.
func Detail(svc internalrefunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		refundID, err := validators.ParseIDParam(r, "refundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		saved, err := svc.Get(r.Context(), refundID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalrefunds.NewRefundDTO(saved.Refund, saved.Computation))
	}
}

// ListForOrder returns the order's refunds in transaction order.
func ListForOrder(svc internalrefunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		orderID, err := validators.ParseIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]internalrefunds.RefundDTO, 0, len(list))
		for _, saved := range list {
			out = append(out, internalrefunds.NewRefundDTO(saved.Refund, saved.Computation))
		}
		responses.WriteSuccess(w, out)
	}
}

// Refundable returns the remaining refundable quantities and whether
// shipping can still be refunded.
func Refundable(svc internalrefunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		orderID, err := validators.ParseIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quantities, err := svc.RefundableQuantities(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		canShip, err := svc.CanRefundShipping(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, RefundableResponse{
			OrderID:           orderID,
			Quantities:        quantities,
			CanRefundShipping: canShip,
		})
	}
}
