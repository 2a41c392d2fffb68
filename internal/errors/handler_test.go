package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleWritesAppError(t *testing.T) {
	h := NewErrorHandler(zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/api/extensions/call_tool", nil)
	w := httptest.NewRecorder()

	appErr := h.Handle(w, req, NewTimeoutError("ext1", 10*time.Second))
	assert.Equal(t, http.StatusRequestTimeout, appErr.HTTPCode)
	assert.Equal(t, http.StatusRequestTimeout, w.Code)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Detail, "ext1")
	assert.Equal(t, ErrCodeTimeout, body.Code)
	assert.Equal(t, "external", body.Type)
	assert.NotNil(t, body.Details)
}

func TestHandleHidesSystemDetails(t *testing.T) {
	h := NewErrorHandler(nil)
	w := httptest.NewRecorder()

	h.Handle(w, httptest.NewRequest(http.MethodGet, "/", nil), stderrors.New("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body["detail"])
	assert.NotContains(t, body, "details")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:5123"
	assert.Equal(t, "10.0.0.5", ClientIP(req))

	req.Header.Set("X-Real-IP", "192.168.1.2")
	assert.Equal(t, "192.168.1.2", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", ClientIP(req))
}
