package httputil

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "memoledger/pkg/domain-errors"
)

type lockRequest struct {
	Amount uint64 `json:"amount"`
	Note   string `json:"note"`
}

func (r *lockRequest) Sanitize()  { r.Note = strings.TrimSpace(r.Note) }
func (r *lockRequest) Normalize() { r.Note = strings.ToLower(r.Note) }
func (r *lockRequest) Validate() error {
	if r.Amount == 0 {
		return errors.New("amount must be positive")
	}
	if r.Note == "forbidden" {
		return dErrors.New(dErrors.CodeForbidden, "note not allowed")
	}
	return nil
}

func decode(body string) (*lockRequest, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	w := httptest.NewRecorder()
	out, _ := DecodeAndPrepare[lockRequest](w, req, slog.Default(), req.Context(), "req-1")
	return out, w
}

func TestDecodeAndPrepare(t *testing.T) {
	t.Run("prepares in order", func(t *testing.T) {
		out, _ := decode(`{"amount":5,"note":"  Coffee "}`)
		require.NotNil(t, out)
		assert.Equal(t, uint64(5), out.Amount)
		assert.Equal(t, "coffee", out.Note)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		out, w := decode(`{"amount":`)
		assert.Nil(t, out)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		out, w := decode(`{"amount":5,"to":"bob"}`)
		assert.Nil(t, out)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("negative amount does not decode", func(t *testing.T) {
		_, w := decode(`{"amount":-1}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("plain validation error", func(t *testing.T) {
		_, w := decode(`{"amount":0}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "validation_error")
	})

	t.Run("domain validation error keeps its code", func(t *testing.T) {
		_, w := decode(`{"amount":1,"note":"FORBIDDEN"}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{dErrors.New(dErrors.CodeLimitExceeded, "daily limit reached"), http.StatusTooManyRequests, "limit_exceeded"},
		{dErrors.New(dErrors.CodePolicyViolation, "insufficient balance"), http.StatusPreconditionFailed, "precondition_failed"},
		{dErrors.New(dErrors.CodeConflict, "caller already unlocked"), http.StatusConflict, "conflict"},
		{dErrors.New(dErrors.CodeForbidden, "bad secret"), http.StatusForbidden, "forbidden"},
		{dErrors.New(dErrors.CodeInvariantViolation, "daily mint exceeds limit"), http.StatusInternalServerError, "internal_error"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tc.err)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), `"error":"`+tc.code+`"`)
		})
	}

	t.Run("internal detail is not leaked", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.Wrap(errors.New("badger: corrupt"), dErrors.CodeInternal, "failed to load account"))
		assert.NotContains(t, w.Body.String(), "failed to load account")
	})
}
