package request

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyLimit(t *testing.T) {
	t.Run("body at the limit is readable", func(t *testing.T) {
		handler := BodyLimit(100)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Len(t, data, 100)
		}))
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 100)))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	})

	t.Run("body over the limit fails with MaxBytesError", func(t *testing.T) {
		var readErr error
		handler := BodyLimit(10)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, readErr = io.ReadAll(r.Body)
		}))
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 11)))
		handler.ServeHTTP(httptest.NewRecorder(), req)

		var tooLarge *http.MaxBytesError
		require.Error(t, readErr)
		assert.True(t, errors.As(readErr, &tooLarge))
		assert.Equal(t, int64(10), tooLarge.Limit)
	})
}
