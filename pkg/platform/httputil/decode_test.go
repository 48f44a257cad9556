package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "clinictrack/pkg/domain-errors"
)

type keyRequest struct {
	Key string `json:"licenseKey"`
}

func (r *keyRequest) Normalize() {
	r.Key = strings.TrimSpace(r.Key)
}

func (r *keyRequest) Validate() error {
	if len(r.Key) < 8 {
		return errors.New("licenseKey must be at least 8 characters")
	}
	return nil
}

type domainRequest struct {
	Name string `json:"name"`
}

func (r *domainRequest) Validate() error {
	return dErrors.New(dErrors.CodeNameTaken, "already registered")
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestDecodeJSON(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	t.Run("successful decode", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"licenseKey":"ABCD-1234"}`))
		rec := httptest.NewRecorder()

		got, ok := DecodeJSON[keyRequest](rec, req, logger, ctx, "rid")
		require.True(t, ok)
		assert.Equal(t, "ABCD-1234", got.Key)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{nope`))
		rec := httptest.NewRecorder()

		_, ok := DecodeJSON[keyRequest](rec, req, logger, ctx, "rid")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid request body", decodeBody(t, rec)["error_description"])
	})

	t.Run("empty body is reported as missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
		rec := httptest.NewRecorder()

		_, ok := DecodeJSON[keyRequest](rec, req, logger, ctx, "rid")
		assert.False(t, ok)
		assert.Equal(t, "request body is required", decodeBody(t, rec)["error_description"])
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"licenseKey":"`+strings.Repeat("A", 64)+`"}`))
		req.Body = http.MaxBytesReader(rec, req.Body, 16)

		_, ok := DecodeJSON[keyRequest](rec, req, logger, ctx, "rid")
		assert.False(t, ok)
		assert.Equal(t, "request body too large", decodeBody(t, rec)["error_description"])
	})
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	t.Run("normalizes before validating", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"licenseKey":"  ABCD-1234  "}`))
		rec := httptest.NewRecorder()

		got, ok := DecodeAndPrepare[keyRequest](rec, req, logger, ctx, "rid")
		require.True(t, ok)
		assert.Equal(t, "ABCD-1234", got.Key)
	})

	t.Run("plain validation error becomes validation_error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"licenseKey":"short"}`))
		rec := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[keyRequest](rec, req, logger, ctx, "rid")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "validation_error", body["error"])
		assert.Contains(t, body["error_description"], "licenseKey")
	})

	t.Run("domain error keeps its code", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"x"}`))
		rec := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[domainRequest](rec, req, logger, ctx, "rid")
		assert.False(t, ok)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "name_taken", decodeBody(t, rec)["error"])
	})
}

func TestPrepareRequestWithoutHooks(t *testing.T) {
	assert.NoError(t, PrepareRequest(&struct{ Name string }{}))
}
