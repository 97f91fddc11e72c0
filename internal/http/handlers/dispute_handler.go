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

type DisputeHandler struct {
	svc *service.DisputeService
}

func NewDisputeHandler(s *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{svc: s}
}

// CreateDispute POST /api/disputes
func (h *DisputeHandler) CreateDispute(c *gin.Context) {
	var req dto.CreateDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}
	if err := validation.ValidateLength("причина спора", strings.TrimSpace(req.Reason), 1, validation.MaxDisputeReasonLength); err != nil {
		common.RespondAppError(c, apperror.Validation("%s", err.Error()))
		return
	}

	dispute, err := h.svc.CreateDispute(c.Request.Context(), models.CreateDisputeInput{
		TransactionID: req.TransactionID,
		RaisedBy:      req.RaisedBy,
		Reason:        req.Reason,
		Description:   req.Description,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.DisputeResponse{Message: "спор открыт", Dispute: dispute})
}

// GetDispute GET /api/disputes/:id
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	dispute, err := h.svc.GetDispute(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}

// GetByTransaction GET /api/disputes/transaction/:transactionId
func (h *DisputeHandler) GetByTransaction(c *gin.Context) {
	transactionID, err := common.ParseIDParam(c, "transactionId")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	dispute, err := h.svc.GetLatestByTransaction(c.Request.Context(), transactionID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}

// ListByUser GET /api/disputes/user/:userId
func (h *DisputeHandler) ListByUser(c *gin.Context) {
	userID, err := common.ParseIDParam(c, "userId")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	page, err := h.svc.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ListByStatus GET /api/disputes/status/:status
func (h *DisputeHandler) ListByStatus(c *gin.Context) {
	status, err := valueobject.NewDisputeStatus(strings.ToUpper(c.Param("status")))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	page, err := h.svc.ListByStatus(c.Request.Context(), status, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ListActive GET /api/disputes/active
func (h *DisputeHandler) ListActive(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	page, err := h.svc.ListActive(c.Request.Context(), limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ListAll GET /api/disputes
func (h *DisputeHandler) ListAll(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	page, err := h.svc.ListAll(c.Request.Context(), limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// StartReview POST /api/disputes/:id/review
func (h *DisputeHandler) StartReview(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	dispute, err := h.svc.StartReview(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DisputeResponse{Message: "спор на рассмотрении", Dispute: dispute})
}

// ResolveDispute POST /api/disputes/:id/resolve
func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	var req dto.ResolveDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	dispute, err := h.svc.ResolveDispute(c.Request.Context(), id, req.Resolution, req.ResolvedBy)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DisputeResponse{Message: "спор разрешён", Dispute: dispute})
}

// CloseDispute POST /api/disputes/:id/close
func (h *DisputeHandler) CloseDispute(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	dispute, err := h.svc.CloseDispute(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DisputeResponse{Message: "спор закрыт", Dispute: dispute})
}
