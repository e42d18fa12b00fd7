package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-lms-backend/internal/http/middleware"
	"github.com/tbourn/go-lms-backend/internal/services"
)

// envelopeRouter serves fn behind RequestID and a logger writing to logs.
func envelopeRouter(logs *bytes.Buffer, fn gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), func(c *gin.Context) {
		l := zerolog.New(logs)
		c.Set("logger", &l)
		c.Next()
	})
	r.GET("/probe", fn)
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &er), w.Body.String())
	return er
}

func TestFailErr_StatusAndCodeTable(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrUnauthorized, http.StatusUnauthorized, ErrCodeUnauthorized},
		{services.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeInvalidCredentials},
		{services.ErrAccountInactive, http.StatusForbidden, ErrCodeAccountInactive},
		{fmt.Errorf("assign: %w", services.ErrForbidden), http.StatusForbidden, ErrCodeForbidden},
		{services.ErrEmailTaken, http.StatusConflict, ErrCodeEmailTaken},
		{services.ErrThreadNotFound, http.StatusNotFound, ErrCodeNotFound},
		{services.ErrMessageNotFound, http.StatusNotFound, ErrCodeNotFound},
		{services.ErrCourseNotFound, http.StatusNotFound, ErrCodeNotFound},
		{services.ErrOrderNotFound, http.StatusNotFound, ErrCodeNotFound},
		{services.ErrInvalidSignature, http.StatusForbidden, ErrCodeInvalidSignature},
		{services.ErrAlreadyEnrolled, http.StatusConflict, ErrCodeAlreadyEnrolled},
		{services.ErrCourseNotPurchasable, http.StatusConflict, ErrCodeNotPurchasable},
		{services.ErrOrderAlreadyProcessed, http.StatusConflict, ErrCodeOrderProcessed},
		{fmt.Errorf("%w: razorpay 503", services.ErrGateway), http.StatusBadGateway, ErrCodeGateway},
	}
	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.err.Error(), func(t *testing.T) {
			var logs bytes.Buffer
			w := httptest.NewRecorder()
			envelopeRouter(&logs, func(c *gin.Context) { failErr(c, tt.err) }).
				ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

			assert.Equal(t, tt.status, w.Code)
			er := decodeError(t, w)
			assert.Equal(t, tt.code, er.Code)
			assert.NotEmpty(t, er.Message)
			assert.Equal(t, w.Header().Get("X-Request-ID"), er.RequestID)
			if tt.status < http.StatusInternalServerError {
				assert.Empty(t, logs.String(), "client errors are not logged")
			} else {
				assert.Contains(t, logs.String(), `"level":"error"`)
			}
		})
	}
}

func TestFailErr_UnknownErrorIsOpaqueAndLogged(t *testing.T) {
	var logs bytes.Buffer
	w := httptest.NewRecorder()
	envelopeRouter(&logs, func(c *gin.Context) {
		failErr(c, errors.New("sqlite: database is locked"))
	}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	er := decodeError(t, w)
	assert.Equal(t, ErrCodeInternal, er.Code)
	assert.NotContains(t, er.Message, "locked")
	assert.Contains(t, logs.String(), `"level":"error"`)
	assert.Contains(t, logs.String(), "database is locked")
}

func TestFailErr_ValidationCarriesFieldDetails(t *testing.T) {
	var logs bytes.Buffer
	w := httptest.NewRecorder()
	envelopeRouter(&logs, func(c *gin.Context) {
		failErr(c, fmt.Errorf("create doubt: %w", &services.ValidationError{Fields: []services.FieldError{
			{Field: "title", Message: "is required"},
			{Field: "tags", Message: "at most 10 tags are allowed"},
		}}))
	}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
	er := decodeError(t, w)
	assert.Equal(t, ErrCodeValidation, er.Code)
	require.Len(t, er.Details, 2)
	assert.Equal(t, "title", er.Details[0].Field)
	assert.Equal(t, "tags", er.Details[1].Field)
}

func TestFail_ExportedFallbackAndSuccessWriters(t *testing.T) {
	var logs bytes.Buffer
	w := httptest.NewRecorder()
	envelopeRouter(&logs, func(c *gin.Context) {
		Fail(c, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, ErrCodeMethodNotAllowed, decodeError(t, w).Code)

	w = httptest.NewRecorder()
	envelopeRouter(&logs, func(c *gin.Context) {
		ok(c, http.StatusCreated, gin.H{"order_id": "order_1"})
	}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"order_id":"order_1"}`, w.Body.String())

	w = httptest.NewRecorder()
	envelopeRouter(&logs, noContent).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, w.Body.Len())
}

func TestFail_ServerErrorsLoggedWithCode(t *testing.T) {
	var logs bytes.Buffer
	w := httptest.NewRecorder()
	envelopeRouter(&logs, func(c *gin.Context) {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "try later")
	}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, logs.String(), `"status":503`)
	assert.Contains(t, logs.String(), `"code":"internal_error"`)
}
