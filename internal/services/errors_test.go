package services_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"arcam/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrUnavailable, "prefstore", "open", "sqlite locked", base)
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"prefstore", "open", "sqlite locked"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{services.Wrap(services.ErrValidation, "api", "decode", "bad body", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrNotFound, "api", "session", "missing", nil), http.StatusNotFound},
		{services.Wrap(services.ErrConflict, "api", "session", "closed", nil), http.StatusConflict},
		{services.Wrap(services.ErrUnavailable, "api", "store", "down", nil), http.StatusServiceUnavailable},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := services.HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
