package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeNotFound,
				Message: "resource not found",
			},
			want: "resource not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "failed to process",
				Cause:   errors.New("underlying error"),
			},
			want: "failed to process: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &AppError{
		Code:    ErrCodeInternal,
		Message: "wrapped error",
		Cause:   cause,
	}

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantCode ErrorCode
		wantMsg  string
	}{
		{"NotFound", NotFound("job not found"), ErrCodeNotFound, "job not found"},
		{"NotFoundf", NotFoundf("job %s not found", "abc"), ErrCodeNotFound, "job abc not found"},
		{"Conflict", Conflict("already verified"), ErrCodeConflict, "already verified"},
		{"Conflictf", Conflictf("domain %s is taken", "example.com"), ErrCodeConflict, "domain example.com is taken"},
		{"Validation", Validation("invalid input"), ErrCodeValidation, "invalid input"},
		{"Validationf", Validationf("invalid status %q", "paused"), ErrCodeValidation, `invalid status "paused"`},
		{"Auth", Auth("missing bearer token"), ErrCodeAuth, "missing bearer token"},
		{"UpstreamFetch", UpstreamFetch("origin returned 503"), ErrCodeUpstreamFetch, "origin returned 503"},
		{"UpstreamFetchf", UpstreamFetchf("origin returned %d", 404), ErrCodeUpstreamFetch, "origin returned 404"},
		{"Internal", Internal("boom"), ErrCodeInternal, "boom"},
		{"Internalf", Internalf("boom %d", 2), ErrCodeInternal, "boom 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("%s().Code = %v, want %v", tt.name, tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMsg {
				t.Errorf("%s().Message = %q, want %q", tt.name, tt.err.Message, tt.wantMsg)
			}
		})
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("domain", "invalid domain name")
	if err.Code != ErrCodeValidation {
		t.Errorf("ValidationField().Code = %v, want %v", err.Code, ErrCodeValidation)
	}
	if err.Field != "domain" {
		t.Errorf("ValidationField().Field = %v, want %v", err.Field, "domain")
	}
	if GetField(err) != "domain" {
		t.Errorf("GetField() = %v, want %v", GetField(err), "domain")
	}
}

func TestRateLimited(t *testing.T) {
	err := RateLimited(30)
	if err.Code != ErrCodeRateLimited {
		t.Errorf("RateLimited().Code = %v, want %v", err.Code, ErrCodeRateLimited)
	}
	if err.RetryAfterSeconds != 30 {
		t.Errorf("RateLimited().RetryAfterSeconds = %d, want 30", err.RetryAfterSeconds)
	}
	if !IsRateLimited(err) {
		t.Errorf("IsRateLimited() = false, want true")
	}
}

func TestQAGate(t *testing.T) {
	err := QAGate(
		[]string{"anchor coverage 0.80 below 0.95"},
		[]string{"anchor more text facts"},
	)
	if err.Code != ErrCodeQAGate {
		t.Errorf("QAGate().Code = %v, want %v", err.Code, ErrCodeQAGate)
	}
	if !IsQAGate(err) {
		t.Errorf("IsQAGate() = false, want true")
	}

	errs, ok := err.Details["errors"].([]string)
	if !ok || len(errs) != 1 {
		t.Fatalf("QAGate().Details[errors] = %v, want one entry", err.Details["errors"])
	}
	suggestions, ok := err.Details["fix_suggestions"].([]string)
	if !ok || len(suggestions) != 1 {
		t.Fatalf("QAGate().Details[fix_suggestions] = %v, want one entry", err.Details["fix_suggestions"])
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")

	err := Wrap(cause, ErrCodeInternal, "database error")
	if err.Code != ErrCodeInternal {
		t.Errorf("Wrap().Code = %v, want %v", err.Code, ErrCodeInternal)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Wrap() should preserve the cause for errors.Is")
	}

	if wrapped := Wrap(nil, ErrCodeInternal, "x"); wrapped != nil {
		t.Errorf("Wrap(nil) = %v, want nil", wrapped)
	}

	errf := Wrapf(cause, ErrCodeUpstreamFetch, "fetch %s", "https://example.com")
	if errf.Message != "fetch https://example.com" {
		t.Errorf("Wrapf().Message = %q", errf.Message)
	}
	if wrapped := Wrapf(nil, ErrCodeInternal, "x %d", 1); wrapped != nil {
		t.Errorf("Wrapf(nil) = %v, want nil", wrapped)
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		predicate func(error) bool
		want      bool
	}{
		{"IsNotFound on NotFound", NotFound("x"), IsNotFound, true},
		{"IsNotFound on Conflict", Conflict("x"), IsNotFound, false},
		{"IsConflict on Conflict", Conflict("x"), IsConflict, true},
		{"IsValidation on Validation", Validation("x"), IsValidation, true},
		{"IsAuth on Auth", Auth("x"), IsAuth, true},
		{"IsUpstreamFetch on UpstreamFetch", UpstreamFetch("x"), IsUpstreamFetch, true},
		{"IsInternal on Internal", Internal("x"), IsInternal, true},
		{"IsNotFound on plain error", errors.New("x"), IsNotFound, false},
		{"IsNotFound on nil", nil, IsNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.predicate(tt.err); got != tt.want {
				t.Errorf("predicate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	inner := NotFoundf("job %s not found", "abc")
	outer := fmt.Errorf("load job: %w", inner)

	if !IsNotFound(outer) {
		t.Errorf("IsNotFound should unwrap fmt.Errorf chains")
	}
	if GetCode(outer) != ErrCodeNotFound {
		t.Errorf("GetCode() = %v, want %v", GetCode(outer), ErrCodeNotFound)
	}
}

func TestGetCode(t *testing.T) {
	if code := GetCode(errors.New("plain")); code != "" {
		t.Errorf("GetCode(plain error) = %v, want empty", code)
	}
	if code := GetCode(Conflict("x")); code != ErrCodeConflict {
		t.Errorf("GetCode() = %v, want %v", code, ErrCodeConflict)
	}
}
