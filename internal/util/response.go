package util

import (
	"net/http"

	"placement_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func respond(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Response{Code: code, Message: message, Data: data})
}

func Success(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, "success", data)
}

func Created(c *gin.Context, data interface{}) {
	respond(c, http.StatusCreated, "created", data)
}

func Paged(c *gin.Context, list interface{}, total int64, page, limit int) {
	Success(c, PageResponse{List: list, Total: total, Page: page, Limit: limit})
}

func Error(c *gin.Context, code int, message string) {
	respond(c, code, message, nil)
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	Error(c, http.StatusNotFound, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

// LogInternalError hides err from the client but keeps it in the log with the
// request that caused it.
func LogInternalError(c *gin.Context, err error) {
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	}
	if claims := GetUserFromContext(c); claims != nil {
		fields = append(fields, zap.Uint("userId", claims.UserID))
	}
	logger.Log.Error("Internal server error", fields...)
	InternalServerError(c)
}
