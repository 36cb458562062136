package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIResponse is the success envelope; the HTTP status is mirrored in
// the body.
type APIResponse struct {
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data"`
	Message    string      `json:"message"`
	Success    bool        `json:"success"`
}

// APIError is the failure envelope.
type APIError struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors"`
	Success    bool     `json:"success"`
}

func Respond(ctx *gin.Context, status int, data interface{}, message string) {
	ctx.JSON(status, APIResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

func RespondError(ctx *gin.Context, status int, message string, errs ...string) {
	if errs == nil {
		errs = []string{}
	}

	ctx.JSON(status, APIError{
		StatusCode: status,
		Message:    message,
		Errors:     errs,
		Success:    false,
	})
}

func RespondBadRequest(ctx *gin.Context, message string, errs ...string) {
	RespondError(ctx, http.StatusBadRequest, message, errs...)
}

func RespondUnauthorized(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusUnauthorized, message)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, message)
}

func RespondConflict(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusConflict, message)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, message)
}
