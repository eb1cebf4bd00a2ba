package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required", detailsOK: true},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeNotRevisable, status: http.StatusUnprocessableEntity, publicMsg: "refund can no longer be revised"},
		{code: CodeRefundTransactionFailed, status: http.StatusBadGateway, publicMsg: "refund transaction failed", retryable: true, detailsOK: true},
		{code: CodeRestockFailed, status: http.StatusConflict, publicMsg: "restock failed", detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestExposeMessageOnlyForClientErrors(t *testing.T) {
	if !MetadataFor(CodeValidation).ExposeMessage {
		t.Fatalf("validation messages are client facing")
	}
	for _, code := range []Code{CodeInternal, CodeDependency, CodeNotRevisable, CodeRefundTransactionFailed, CodeRestockFailed} {
		if MetadataFor(code).ExposeMessage {
			t.Fatalf("code %s must use its public message", code)
		}
	}
}

func TestCodeHelpers(t *testing.T) {
	err := fmt.Errorf("save refund: %w", Newf(CodeNotRevisable, "refund %d is locked", 7))
	if !IsCode(err, CodeNotRevisable) {
		t.Fatalf("expected wrapped code to be found")
	}
	if IsCode(err, CodeConflict) || IsCode(nil, CodeNotRevisable) {
		t.Fatalf("unexpected code match")
	}
	if got := HTTPStatus(err); got != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", got)
	}
	if got := HTTPStatus(stdErrors.New("plain")); got != http.StatusInternalServerError {
		t.Fatalf("expected 500 for untyped errors, got %d", got)
	}
	if !New(CodeRefundTransactionFailed, "declined").Retryable() {
		t.Fatalf("gateway failures are retryable")
	}
	if As(err).Message() != "refund 7 is locked" {
		t.Fatalf("unexpected message %q", As(err).Message())
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("redis down"), "reference sequence")
	want := "DEPENDENCY_ERROR: reference sequence: redis down"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestDumpFields(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeConflict, "duplicate reference"))
	fields := Dump(err).Fields()
	if fields["error_code"] != CodeConflict {
		t.Fatalf("expected error_code, got %v", fields["error_code"])
	}
	if chain, ok := fields["error_chain"].([]string); !ok || len(chain) != 2 {
		t.Fatalf("expected a two element chain, got %v", fields["error_chain"])
	}
	if _, ok := fields["pg_code"]; ok {
		t.Fatalf("empty postgres fields must be omitted")
	}
	if len(Dump(nil).Chain) != 0 {
		t.Fatalf("nil errors dump empty")
	}
}
