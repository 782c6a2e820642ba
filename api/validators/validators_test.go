package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
)

type cancelBody struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"reason":"changed mind"}`))
	var body cancelBody
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Reason != "changed mind" {
		t.Fatalf("unexpected reason %q", body.Reason)
	}
}

func TestDecodeJSONBodyRejects(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"unknown field": `{"reason":"x","extra":1}`,
		"missing":       `{}`,
		"too long":      `{"reason":"` + strings.Repeat("a", 501) + `"}`,
		"malformed":     `{"reason":`,
		"wrong type":    `{"reason":42}`,
		"two objects":   `{"reason":"a"}{"reason":"b"}`,
		"blank":         "  \n ",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(raw))
			var body cancelBody
			err := DecodeJSONBody(req, &body)
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestDecodeJSONBodyChecksContentType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"reason":"x"}`))
	req.Header.Set("Content-Type", "text/plain")
	if err := DecodeJSONBody(req, &cancelBody{}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"reason":"x"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if err := DecodeJSONBody(req, &cancelBody{}); err != nil {
		t.Fatalf("json with charset should decode: %v", err)
	}
}

func TestDecodeJSONBodyNamesUnknownField(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"reason":"x","refund":true}`))
	typed := pkgerrors.As(DecodeJSONBody(req, &cancelBody{}))
	if typed == nil {
		t.Fatal("expected typed error")
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || details["refund"] != "is not allowed" {
		t.Fatalf("unexpected details %#v", typed.Details())
	}
}

func TestNotBlankTag(t *testing.T) {
	type addr struct {
		Line string `json:"line" validate:"notblank,max=10"`
	}
	typed := pkgerrors.As(ValidateStruct(&addr{Line: "   "}))
	if typed == nil {
		t.Fatal("expected whitespace-only value to fail")
	}
	if details := typed.Details().(map[string]string); details["line"] != "is required" {
		t.Fatalf("unexpected details %#v", details)
	}
	if err := ValidateStruct(&addr{Line: "Ikeja"}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestValidationDetailsUseJSONNames(t *testing.T) {
	err := ValidateStruct(&cancelBody{})
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || details["reason"] != "is required" {
		t.Fatalf("unexpected details %#v", typed.Details())
	}
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", id.String())
	got, err := ParseUUIDParam(req, "id")
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, err)
	}

	bad := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "nope")
	if _, err := ParseUUIDParam(bad, "id"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseReferenceParam(t *testing.T) {
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "reference", " stl_abc ")
	got, err := ParseReferenceParam(req, "reference")
	if err != nil || got != "stl_abc" {
		t.Fatalf("unexpected %q %v", got, err)
	}

	long := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "reference", strings.Repeat("r", 101))
	if _, err := ParseReferenceParam(long, "reference"); err == nil {
		t.Fatal("expected overly long reference to fail")
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  hello  ", 3); got != "hel" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString(" ok ", 0); got != "ok" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestSanitizeStringKeepsRunesWhole(t *testing.T) {
	if got := SanitizeString("Àdúràdé Street", 4); got != "Àdúr" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString("12 Allen\x00 Ave\nIkeja", 0); got != "12 Allen Ave Ikeja" {
		t.Fatalf("unexpected %q", got)
	}
}
