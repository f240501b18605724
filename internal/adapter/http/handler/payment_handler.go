package handler

import (
	"io"

	"balance-ledger/internal/adapter/http/dto"
	"balance-ledger/internal/core/ports"
	"balance-ledger/pkg/apperror"
	"balance-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// PaymentHandler handles checkout sessions and provider callbacks.
type PaymentHandler struct {
	orchestrator ports.PaymentOrchestrator
	provider     ports.PaymentProvider
	log          zerolog.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(orchestrator ports.PaymentOrchestrator, provider ports.PaymentProvider, log zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		orchestrator: orchestrator,
		provider:     provider,
		log:          log,
	}
}

// CreatePaymentURL handles POST /payments/url.
func (h *PaymentHandler) CreatePaymentURL(c *gin.Context) {
	var req dto.PaymentURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	link, err := h.orchestrator.CreatePaymentLink(c.Request.Context(), req.UserID, req.ProductID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPaymentLinkResponse(link))
}

// ProviderWebhook handles POST /payments/provider/webhook. The provider
// retries on any non-2xx, so only processing failures are surfaced;
// a recognized event always acks with received=true.
func (h *PaymentHandler) ProviderWebhook(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	event, err := h.provider.ParseEvent(raw)
	if err != nil {
		h.log.Warn().Err(err).Msg("malformed provider event")
		response.Error(c, err)
		return
	}

	if err := h.orchestrator.HandleProviderWebhook(c.Request.Context(), event); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WebhookAck{Received: true})
}
