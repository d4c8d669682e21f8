package handler

import (
	"custodial-wallet-service/internal/core/ports"
	"custodial-wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountsHandler handles account listing endpoints.
type AccountsHandler struct {
	accountSvc ports.AccountService
}

// NewAccountsHandler creates a new AccountsHandler.
func NewAccountsHandler(accountSvc ports.AccountService) *AccountsHandler {
	return &AccountsHandler{accountSvc: accountSvc}
}

// List handles GET /api/v1/accounts.
func (h *AccountsHandler) List(c *gin.Context) {
	summaries, err := h.accountSvc.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, summaries)
}
