package handler

import (
	"balance-ledger/internal/adapter/http/dto"
	"balance-ledger/internal/core/ports"
	"balance-ledger/pkg/apperror"
	"balance-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CatalogHandler handles product and transaction lookups.
type CatalogHandler struct {
	orchestrator ports.PaymentOrchestrator
	engine       ports.TransactionEngine
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(orchestrator ports.PaymentOrchestrator, engine ports.TransactionEngine) *CatalogHandler {
	return &CatalogHandler{
		orchestrator: orchestrator,
		engine:       engine,
	}
}

// Products handles GET /products.
func (h *CatalogHandler) Products(c *gin.Context) {
	products, err := h.orchestrator.Products(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewProductListResponse(products))
}

// Transaction handles GET /transactions/:id.
func (h *CatalogHandler) Transaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid transaction id"))
		return
	}

	txn, err := h.engine.FindByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewTransactionResponse(txn))
}
