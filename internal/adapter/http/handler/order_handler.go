package handler

import (
	"errors"

	"balance-ledger/internal/adapter/http/dto"
	"balance-ledger/internal/core/ports"
	"balance-ledger/pkg/apperror"
	"balance-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OrderHandler handles order endpoints.
type OrderHandler struct {
	orchestrator ports.PaymentOrchestrator
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orchestrator ports.PaymentOrchestrator) *OrderHandler {
	return &OrderHandler{orchestrator: orchestrator}
}

// Create handles POST /orders/create. The order is funded entirely from the
// buyer's balance; card-funded orders go through the payment link flow.
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.orchestrator.PurchaseWithBalance(c.Request.Context(), req.UserID, req.ProductID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Order == nil {
		response.Error(c, apperror.InternalError(errors.New("purchase completed without an order")))
		return
	}

	response.Created(c, dto.NewOrderResponse(result.Order))
}

// Get handles GET /orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid order id"))
		return
	}

	order, err := h.orchestrator.OrderByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewOrderResponse(order))
}
