package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/davitran/docchat-be/types"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

func respondOK(c *gin.Context, code int, data interface{}) {
	c.JSON(code, types.DataResponse{Status: statusOK, Data: data})
}

// respondError translates the error taxonomy into an HTTP status and a
// client-safe message. Retryable upstream failures carry a retry_after hint
// in seconds.
func respondError(c *gin.Context, err error) {
	resp := types.DataResponse{Status: statusError}
	code := http.StatusInternalServerError

	switch {
	case errors.Is(err, types.ErrValidation):
		code = http.StatusBadRequest
		resp.Message = err.Error()
	case errors.Is(err, types.ErrNotFound):
		code = http.StatusNotFound
		resp.Message = "not found"
	case errors.Is(err, types.ErrNoTextExtracted):
		code = http.StatusUnprocessableEntity
		resp.Message = "no text could be extracted from the document"
	case errors.Is(err, types.ErrAlreadyProcessing):
		code = http.StatusConflict
		resp.Message = "embedding is already in progress"
	case errors.Is(err, types.ErrPayloadTooLarge):
		code = http.StatusRequestEntityTooLarge
		resp.Message = "payload too large"
	case errors.Is(err, types.ErrRateLimited):
		code = http.StatusTooManyRequests
		resp.Message = "the model is rate limited, try again shortly"
	case errors.Is(err, types.ErrUnavailable):
		code = http.StatusServiceUnavailable
		resp.Message = "the model is temporarily unavailable"
	case errors.Is(err, types.ErrSafetyBlocked):
		code = http.StatusUnprocessableEntity
		resp.Message = "the request was blocked by the model's safety filters"
	case errors.Is(err, types.ErrMalformedResponse):
		code = http.StatusBadGateway
		resp.Message = "the model returned an unusable response"
	default:
		resp.Message = "internal error"
	}

	if hint, ok := types.RetryAfter(err); ok {
		resp.RetryAfter = int64(hint.Seconds())
	}
	c.JSON(code, resp)
}
