package response

import (
	"errors"
	"net/http"

	"Gin_postgres_redis_marketplace/logger"
	"Gin_postgres_redis_marketplace/models"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func Unauthorized(c *gin.Context) {
	RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("unauthorized"))
}

// BadRequest 用于请求体绑定失败
func BadRequest(c *gin.Context, err error) {
	RespondError(c, http.StatusBadRequest, "bad_request", err)
}

// Fail 把领域错误映射为 HTTP 状态；未知错误记日志后返回 500
func Fail(c *gin.Context, log *logger.Logger, err error) {
	status, code := Classify(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		RespondError(c, status, code, errors.New("internal error"))
		return
	}
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: err.Error(), Code: code, Field: ve.Field}})
		return
	}
	RespondError(c, status, code, err)
}

func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	}
	return http.StatusInternalServerError, "internal"
}
