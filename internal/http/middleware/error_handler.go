package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/credit-transaction-service/internal/dto"
	"github.com/ignatzorin/credit-transaction-service/internal/logger"
	"github.com/ignatzorin/credit-transaction-service/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно.
// Доменные ошибки отдаются клиенту как есть, ошибки хранилища и неизвестные маскируются.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Проверяем, не был ли уже отправлен ответ
		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		statusCode := apperror.HTTPStatus(err)
		resp := dto.ErrorResponse{
			Error: "внутренняя ошибка сервера",
			Code:  string(apperror.ErrCodeInternal),
		}

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			resp.Code = string(appErr.Code)
			if statusCode < http.StatusInternalServerError {
				resp.Error = appErr.Message
			}
		}

		entry := logger.Log.WithFields(logrus.Fields{
			"error":      err.Error(),
			"path":       c.Request.URL.Path,
			"method":     c.Request.Method,
			"status":     statusCode,
			"request_id": c.GetString(ContextRequestIDKey),
		})
		if statusCode >= http.StatusInternalServerError {
			entry.Error("Request error")
		} else {
			entry.Debug("Request rejected")
		}

		c.JSON(statusCode, resp)
	}
}
