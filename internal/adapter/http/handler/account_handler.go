package handler

import (
	"balance-ledger/internal/adapter/http/dto"
	"balance-ledger/internal/core/ports"
	"balance-ledger/pkg/apperror"
	"balance-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountHandler handles account-scoped endpoints.
type AccountHandler struct {
	orchestrator ports.PaymentOrchestrator
	auditor      ports.ReconciliationAuditor
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(orchestrator ports.PaymentOrchestrator, auditor ports.ReconciliationAuditor) *AccountHandler {
	return &AccountHandler{
		orchestrator: orchestrator,
		auditor:      auditor,
	}
}

// Credit handles POST /accounts/user/:userId/credit.
func (h *AccountHandler) Credit(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	txn, err := h.orchestrator.Credit(c.Request.Context(), userID, amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewTransactionResponse(txn))
}

// Debit handles POST /accounts/user/:userId/debit. A productId turns the
// debit into a balance purchase; the product price decides the amount.
func (h *AccountHandler) Debit(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.DebitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if req.ProductID != nil {
		result, err := h.orchestrator.PurchaseWithBalance(c.Request.Context(), userID, *req.ProductID)
		if err != nil {
			response.Error(c, err)
			return
		}
		resp := dto.DebitResponse{Transaction: dto.NewTransactionResponse(result.Transaction)}
		if result.Order != nil {
			orderID := result.Order.ID.String()
			resp.OrderID = &orderID
		}
		response.OK(c, resp)
		return
	}

	if req.Amount == "" {
		response.Error(c, apperror.Validation("amount or productId is required"))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	txn, err := h.orchestrator.Debit(c.Request.Context(), userID, amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.DebitResponse{Transaction: dto.NewTransactionResponse(txn)})
}

// Get handles GET /accounts/user/:userId.
func (h *AccountHandler) Get(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	account, err := h.orchestrator.AccountByUserID(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewAccountResponse(account))
}

// History handles GET /accounts/user/:userId/history.
func (h *AccountHandler) History(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	txns, err := h.orchestrator.History(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewTransactionListResponse(txns))
}

// Audit handles GET /accounts/user/:userId/audit.
func (h *AccountHandler) Audit(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	account, err := h.orchestrator.AccountByUserID(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	report, err := h.auditor.AuditBalance(c.Request.Context(), account.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewAuditResponse(report))
}

func parseUserID(c *gin.Context) (uuid.UUID, error) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid user id")
	}
	return userID, nil
}
