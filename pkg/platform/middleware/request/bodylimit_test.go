package request

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyLimit(t *testing.T) {
	var called bool
	var readErr error
	var n int
	handler := BodyLimit(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		b, err := io.ReadAll(r.Body)
		n, readErr = len(b), err
	}))
	reset := func() { called, readErr, n = false, nil, 0 }
	oversized := `{"secret":"` + strings.Repeat("9", 64) + `"}`

	t.Run("small body passes through", func(t *testing.T) {
		reset()
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":10}`)))
		require.True(t, called)
		assert.NoError(t, readErr)
		assert.Equal(t, 13, n)
	})

	t.Run("declared oversize is refused before the handler", func(t *testing.T) {
		reset()
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(oversized)))
		assert.False(t, called)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "payload_too_large")
	})

	t.Run("undeclared oversize is cut off while reading", func(t *testing.T) {
		reset()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(oversized))
		req.ContentLength = -1
		handler.ServeHTTP(httptest.NewRecorder(), req)
		require.True(t, called)
		var maxErr *http.MaxBytesError
		assert.ErrorAs(t, readErr, &maxErr)
	})
}
