package common

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/credit-transaction-service/internal/dto"
	"github.com/ignatzorin/credit-transaction-service/internal/http/middleware"
	"github.com/ignatzorin/credit-transaction-service/internal/pkg/apperror"
	"github.com/ignatzorin/credit-transaction-service/internal/validation"
)

// ErrUserNotFound is returned when user is not found in context
var ErrUserNotFound = errors.New("пользователь не найден в контексте")

// CurrentUserID extracts user ID set by AuthMiddleware
func CurrentUserID(c *gin.Context) (int64, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, ErrUserNotFound
	}

	userID, ok := raw.(int64)
	if !ok || userID <= 0 {
		return 0, ErrUserNotFound
	}

	return userID, nil
}

// ParseIDParam parses a positive numeric id from URL parameter
func ParseIDParam(c *gin.Context, paramName string) (int64, error) {
	id, err := validation.ParseID(paramName, c.Param(paramName))
	if err != nil {
		return 0, apperror.Validation("%s", err.Error())
	}
	return id, nil
}

// BindAndValidate binds JSON request and converts binding errors to validation errors
func BindAndValidate(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperror.Validation("ошибка валидации запроса: %v", err)
	}
	return nil
}

// RespondAppError hands the error to middleware.ErrorHandler
func RespondAppError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// RespondError sends a standardized error response
func RespondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, dto.ErrorResponse{Error: message})
}

// RespondJSON sends a JSON response with the given status code and data
func RespondJSON(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// RespondUnauthorized sends a 401 Unauthorized response
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "требуется авторизация"
	}
	RespondError(c, http.StatusUnauthorized, message)
}

// ParseIntQuery safely reads an integer query parameter with a fallback value
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPagination extracts limit and offset from query parameters with defaults
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", 20)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > 100 || limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return
}
