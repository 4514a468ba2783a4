package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		want   Code
	}{
		{http.StatusBadRequest, CodeValidation},
		{http.StatusUnauthorized, CodeUnauthorized},
		{http.StatusForbidden, CodeUnauthorized},
		{http.StatusNotFound, CodeNotFound},
		{http.StatusConflict, CodeValidation},
		{http.StatusUnprocessableEntity, CodeValidation},
		{http.StatusInternalServerError, CodeServer},
		{http.StatusBadGateway, CodeServer},
	}
	for _, tc := range cases {
		if got := statusError(tc.status, nil).Code; got != tc.want {
			t.Fatalf("status %d: expected %q, got %q", tc.status, tc.want, got)
		}
	}
}

func TestStatusErrorReadsDetailBody(t *testing.T) {
	err := statusError(http.StatusBadRequest, []byte(`{"detail": "Insufficient stock. Current: 3, delta: -10"}`))
	if err.Message != "Insufficient stock. Current: 3, delta: -10" {
		t.Fatalf("expected detail message, got %q", err.Message)
	}
}

func TestStatusErrorFallsBackToStatusText(t *testing.T) {
	err := statusError(http.StatusInternalServerError, []byte("<html>oops</html>"))
	if err.Message != http.StatusText(http.StatusInternalServerError) {
		t.Fatalf("expected status text fallback, got %q", err.Message)
	}
}

func TestIsCodeMatchesWrappedErrors(t *testing.T) {
	inner := statusError(http.StatusNotFound, nil)
	wrapped := fmt.Errorf("list items: %w", inner)
	if !IsCode(wrapped, CodeNotFound) {
		t.Fatalf("expected wrapped error to classify as not-found: %v", wrapped)
	}
	if IsCode(wrapped, CodeServer) {
		t.Fatal("expected wrong code to not match")
	}
	if IsCode(errors.New("plain"), CodeNetwork) {
		t.Fatal("expected unclassified error to not match")
	}
}
