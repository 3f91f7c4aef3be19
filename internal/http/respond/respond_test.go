package respond

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONWritesEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, http.StatusCreated, "created", map[string]int{"id": 3})

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var env struct {
		Code    int            `json:"code"`
		Message string         `json:"message"`
		Data    map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, 201, env.Code)
	assert.Equal(t, "created", env.Message)
	assert.Equal(t, 3, env.Data["id"])
}

func TestErrorOmitsData(t *testing.T) {
	rr := httptest.NewRecorder()
	Error(rr, http.StatusForbidden, "permission denied")

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{"code":403,"message":"permission denied"}`, rr.Body.String())
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Body string `json:"body"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"body":"hi"}`))
	require.NoError(t, Decode(r, &dst))
	assert.Equal(t, "hi", dst.Body)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"body":"hi","extra":1}`))
	assert.Error(t, Decode(r, &dst))
}
