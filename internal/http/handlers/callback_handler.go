package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/credit-transaction-service/internal/dto"
	"github.com/ignatzorin/credit-transaction-service/internal/http/handlers/common"
	"github.com/ignatzorin/credit-transaction-service/internal/models"
	"github.com/ignatzorin/credit-transaction-service/internal/service"
)

// CallbackHandler принимает служебные уведомления платёжного и кредитного сервисов.
// Обработчики идемпотентны, повторная доставка возвращает 200.
type CallbackHandler struct {
	svc *service.TransactionService
}

func NewCallbackHandler(s *service.TransactionService) *CallbackHandler {
	return &CallbackHandler{svc: s}
}

// PaymentCompleted POST /api/internal/payments/completed
func (h *CallbackHandler) PaymentCompleted(c *gin.Context) {
	h.handlePayment(c, h.svc.HandlePaymentCompleted)
}

// PaymentFailed POST /api/internal/payments/failed
func (h *CallbackHandler) PaymentFailed(c *gin.Context) {
	h.handlePayment(c, h.svc.HandlePaymentFailed)
}

// CreditTransferred POST /api/internal/credits/transferred
func (h *CallbackHandler) CreditTransferred(c *gin.Context) {
	var req dto.CreditCallbackRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	t, err := h.svc.HandleCreditTransferred(c.Request.Context(), req.TransactionID, req.CreditTransferID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TransactionResponse{Transaction: t})
}

// CreditTransferFailed POST /api/internal/credits/failed
func (h *CallbackHandler) CreditTransferFailed(c *gin.Context) {
	var req dto.CreditCallbackRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	t, err := h.svc.HandleCreditTransferFailed(c.Request.Context(), req.TransactionID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TransactionResponse{Transaction: t})
}

func (h *CallbackHandler) handlePayment(c *gin.Context, handle func(ctx context.Context, id int64) (*models.Transaction, error)) {
	var req dto.PaymentCallbackRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	t, err := handle(c.Request.Context(), req.TransactionID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TransactionResponse{Transaction: t})
}
