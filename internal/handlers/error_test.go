package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/rolodexhq/rolodex/internal/db"
)

// A malformed or missing id fails uuid parsing deep in a service call; every
// mapper must surface that as a 400, not a 500.
func TestErrorMappersTreatInvalidIDAsBadRequest(t *testing.T) {
	badID := fmt.Errorf("%w: invalid UUID length: 0", db.ErrInvalidUUID)

	mappers := []struct {
		name string
		fn   func(error) error
	}{
		{"contact", contactError},
		{"dedupe", dedupeError},
		{"import", importError},
		{"note", noteError},
		{"tag", tagError},
		{"user", userError},
	}
	for _, m := range mappers {
		t.Run(m.name, func(t *testing.T) {
			var httpErr *echo.HTTPError
			if !errors.As(m.fn(badID), &httpErr) {
				t.Fatal("expected an echo.HTTPError")
			}
			if httpErr.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", httpErr.Code)
			}
		})
	}
}

func TestErrorMappersDefaultToServerError(t *testing.T) {
	opaque := errors.New("connection reset")
	for _, fn := range []func(error) error{contactError, dedupeError, importError, noteError, tagError, userError} {
		var httpErr *echo.HTTPError
		if !errors.As(fn(opaque), &httpErr) {
			t.Fatal("expected an echo.HTTPError")
		}
		if httpErr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", httpErr.Code)
		}
	}
}
