package refunds

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	dbtypes "github.com/angelmondragon/order-refunds/pkg/db/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// LineItemInput is the requested refund of one order line item.
type LineItemInput struct {
	Qty     int  `json:"qty" validate:"gte=0"`
	Restock bool `json:"restock"`
}

// LineItemsInput maps order line item ids to their requested refund.
type LineItemsInput map[int64]LineItemInput

func (in LineItemsInput) selections() dbtypes.LineItemSelections {
	out := make(dbtypes.LineItemSelections, len(in))
	for id, item := range in {
		out[id] = dbtypes.LineItemSelection{Qty: item.Qty, Restock: item.Restock}
	}
	return out
}

// CalculateRequest is a dry run of a refund. Nothing is persisted.
type CalculateRequest struct {
	OrderID              int64          `json:"orderId" validate:"required,gt=0"`
	ParentTransactionID  int64          `json:"parentTransactionId" validate:"omitempty,gt=0"`
	TransactionID        int64          `json:"transactionId" validate:"omitempty,gt=0"`
	RefundID             int64          `json:"refundId" validate:"omitempty,gt=0"`
	LineItemsData        LineItemsInput `json:"lineItemsData" validate:"omitempty,dive"`
	IncludesShipping     bool           `json:"includesShipping"`
	IncludesAllLineItems bool           `json:"includesAllLineItems"`
	Total                *int64         `json:"total" validate:"omitempty,gte=0"`
	Note                 string         `json:"note" validate:"max=1024"`
}

// CreateRequest persists a new refund. Without TransactionID a refund
// transaction is created through the parent transaction's gateway.
type CreateRequest struct {
	OrderID              int64          `json:"orderId" validate:"omitempty,gt=0"`
	ParentTransactionID  int64          `json:"parentTransactionId" validate:"required,gt=0"`
	TransactionID        int64          `json:"transactionId" validate:"omitempty,gt=0"`
	Reference            string         `json:"reference" validate:"max=255"`
	LineItemsData        LineItemsInput `json:"lineItemsData" validate:"omitempty,dive"`
	IncludesShipping     bool           `json:"includesShipping"`
	IncludesAllLineItems bool           `json:"includesAllLineItems"`
	IsRevisable          bool           `json:"isRevisable"`
	Total                *int64         `json:"total" validate:"required,gte=0"`
	Note                 string         `json:"note" validate:"max=1024"`
	ActorID              string         `json:"-"`
}

// UpdateRequest revises a persisted refund that is still revisable.
type UpdateRequest struct {
	ID                   int64          `json:"id" validate:"required,gt=0"`
	TransactionID        int64          `json:"transactionId" validate:"required,gt=0"`
	Reference            string         `json:"reference" validate:"required,max=255"`
	LineItemsData        LineItemsInput `json:"lineItemsData" validate:"omitempty,dive"`
	IncludesShipping     bool           `json:"includesShipping"`
	IncludesAllLineItems bool           `json:"includesAllLineItems"`
	Total                *int64         `json:"total" validate:"omitempty,gte=0"`
	Note                 string         `json:"note" validate:"max=1024"`
	ActorID              string         `json:"-"`
}

// ValidateCalculateRequest checks the shape of a calculate request.
func ValidateCalculateRequest(req CalculateRequest) FieldErrors {
	return structErrors(req)
}

// ValidateCreateRequest checks the shape of a create request.
func ValidateCreateRequest(req CreateRequest) FieldErrors {
	errs := structErrors(req)
	if strings.TrimSpace(req.Reference) != req.Reference {
		errs.Add("reference", "must not start or end with whitespace")
	}
	return errs
}

// ValidateUpdateRequest checks the shape of an update request.
func ValidateUpdateRequest(req UpdateRequest) FieldErrors {
	errs := structErrors(req)
	if strings.TrimSpace(req.Reference) == "" && req.Reference != "" {
		errs.Add("reference", "is required")
	}
	return errs
}

func structErrors(req any) FieldErrors {
	errs := FieldErrors{}
	err := validate.Struct(req)
	if err == nil {
		return errs
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs.Add("request", err.Error())
		return errs
	}
	for _, fe := range fieldErrs {
		errs.Add(fieldPath(fe), validationMessage(fe))
	}
	return errs
}

// fieldPath drops the struct name so nested errors read lineItemsData[3].qty.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "is invalid"
}
