package handler

import (
	"time"

	"custodial-wallet-service/internal/adapter/http/dto"
	"custodial-wallet-service/internal/adapter/http/middleware"
	"custodial-wallet-service/internal/core/domain"
	"custodial-wallet-service/internal/core/ports"
	"custodial-wallet-service/pkg/apperror"
	"custodial-wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransferHandler handles transfer submission and status endpoints.
type TransferHandler struct {
	transferSvc ports.TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferSvc ports.TransferService) *TransferHandler {
	return &TransferHandler{transferSvc: transferSvc}
}

// Transfer handles POST /api/v1/transfers.
func (h *TransferHandler) Transfer(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.transferSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		Identity:    identity,
		To:          req.To,
		Amount:      req.Amount,
		Asset:       domain.Asset(req.Asset),
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := toTransferResponse(result)
	if len(result.Warnings) > 0 {
		response.CreatedWithWarnings(c, resp, result.Warnings)
		return
	}
	response.Created(c, resp)
}

// Status handles GET /api/v1/transfers/:hash.
func (h *TransferHandler) Status(c *gin.Context) {
	result, err := h.transferSvc.TransactionStatus(c.Request.Context(), c.Param("hash"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransferResponse(result))
}

func toTransferResponse(r *domain.TransferResult) dto.TransferResponse {
	resp := dto.TransferResponse{
		Hash:      r.Hash,
		From:      r.From,
		To:        r.To,
		Asset:     string(r.Asset),
		Amount:    r.Amount,
		Status:    string(r.Status),
		GasUsed:   r.GasUsed,
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
	}
	if r.BlockNumber != nil {
		resp.BlockNumber = r.BlockNumber.String()
	}
	return resp
}
