package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davitran/docchat-be/types"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err  error
		code int
	}{
		{types.ErrValidation, http.StatusBadRequest},
		{types.ErrNotFound, http.StatusNotFound},
		{types.ErrNoTextExtracted, http.StatusUnprocessableEntity},
		{types.ErrAlreadyProcessing, http.StatusConflict},
		{types.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{types.ErrRateLimited, http.StatusTooManyRequests},
		{types.ErrUnavailable, http.StatusServiceUnavailable},
		{types.ErrSafetyBlocked, http.StatusUnprocessableEntity},
		{types.ErrMalformedResponse, http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", types.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("something else"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		respondError(c, tc.err)
		assert.Equal(t, tc.code, w.Code, "error %v", tc.err)
	}
}

func TestRespondErrorRetryAfterHint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, &types.RetryAfterError{Err: types.ErrRateLimited, RetryAfter: 30 * time.Second})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var resp types.DataResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(30), resp.RetryAfter)
}
