package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/credit-transaction-service/internal/domain/valueobject"
	"github.com/ignatzorin/credit-transaction-service/internal/dto"
	"github.com/ignatzorin/credit-transaction-service/internal/http/handlers/common"
	"github.com/ignatzorin/credit-transaction-service/internal/models"
	"github.com/ignatzorin/credit-transaction-service/internal/pkg/apperror"
	"github.com/ignatzorin/credit-transaction-service/internal/service"
	"github.com/ignatzorin/credit-transaction-service/internal/validation"
)

// TransactionHandler - HTTP адаптер над оркестратором сделок.
type TransactionHandler struct {
	svc *service.TransactionService
}

func NewTransactionHandler(s *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: s}
}

// CreateTransaction POST /api/transactions
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req dto.CreateTransactionRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}
	if err := validation.ValidateCurrency(req.Currency); err != nil {
		common.RespondAppError(c, apperror.Validation("%s", err.Error()))
		return
	}

	t, err := h.svc.CreateTransaction(c.Request.Context(), models.CreateTransactionInput{
		ListingID:      req.ListingID,
		BuyerID:        req.BuyerID,
		SellerID:       req.SellerID,
		CreditAmount:   req.CreditAmount,
		PricePerCredit: req.PricePerCredit,
		TotalPrice:     req.TotalPrice,
		Currency:       req.Currency,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.TransactionResponse{Message: "транзакция создана", Transaction: t})
}

// GetTransaction GET /api/transactions/:id
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	t, err := h.svc.GetTransaction(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// GetSummary GET /api/transactions/:id/summary
func (h *TransactionHandler) GetSummary(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	summary, err := h.svc.GetTransactionSummary(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetHistory GET /api/transactions/:id/history
func (h *TransactionHandler) GetHistory(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	entries, err := h.svc.GetHistory(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.HistoryResponse{TransactionID: id, Entries: entries})
}

// UpdateStatus PUT /api/transactions/:id/status
func (h *TransactionHandler) UpdateStatus(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	var req dto.UpdateTransactionStatusRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}
	status, err := valueobject.NewTransactionStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	t, err := h.svc.UpdateTransactionStatus(c.Request.Context(), id, status, req.Reason, req.ChangedBy)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TransactionResponse{Message: "статус транзакции обновлён", Transaction: t})
}

// CancelTransaction POST /api/transactions/:id/cancel
func (h *TransactionHandler) CancelTransaction(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	var req dto.CancelTransactionRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}
	if err := validation.ValidateLength("причина отмены", strings.TrimSpace(req.Reason), 1, validation.MaxCancelReasonLength); err != nil {
		common.RespondAppError(c, apperror.Validation("%s", err.Error()))
		return
	}

	t, err := h.svc.CancelTransaction(c.Request.Context(), id, req.Reason, req.ChangedBy)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TransactionResponse{Message: "транзакция отменена", Transaction: t})
}

// InitiatePayment POST /api/transactions/:id/payment
func (h *TransactionHandler) InitiatePayment(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	var req dto.InitiatePaymentRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}
	if err := validation.ValidateOptionalLength("способ оплаты", req.PaymentMethod, validation.MaxPaymentMethodLength); err != nil {
		common.RespondAppError(c, apperror.Validation("%s", err.Error()))
		return
	}

	t, err := h.svc.InitiatePayment(c.Request.Context(), service.InitiatePaymentInput{
		TransactionID: id,
		PaymentID:     req.PaymentID,
		Method:        req.PaymentMethod,
		Amount:        req.Amount,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TransactionResponse{Message: "платёж привязан", Transaction: t})
}

// ListByBuyer GET /api/transactions/buyer/:buyerId
func (h *TransactionHandler) ListByBuyer(c *gin.Context) {
	buyerID, err := common.ParseIDParam(c, "buyerId")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	page, err := h.svc.ListBuyerTransactions(c.Request.Context(), buyerID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ListBySeller GET /api/transactions/seller/:sellerId
func (h *TransactionHandler) ListBySeller(c *gin.Context) {
	sellerID, err := common.ParseIDParam(c, "sellerId")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	page, err := h.svc.ListSellerTransactions(c.Request.Context(), sellerID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
