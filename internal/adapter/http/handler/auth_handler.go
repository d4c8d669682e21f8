package handler

import (
	"net/http"

	"custodial-wallet-service/internal/adapter/http/dto"
	"custodial-wallet-service/internal/core/domain"
	"custodial-wallet-service/internal/core/ports"
	"custodial-wallet-service/pkg/apperror"
	"custodial-wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles registration and authentication endpoints.
type AuthHandler struct {
	accountSvc ports.AccountService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accountSvc ports.AccountService) *AuthHandler {
	return &AuthHandler{accountSvc: accountSvc}
}

// RegisterInvestor handles POST /api/v1/auth/register/investor.
func (h *AuthHandler) RegisterInvestor(c *gin.Context) {
	h.register(c, domain.RoleInvestor)
}

// RegisterEntrepreneur handles POST /api/v1/auth/register/entrepreneur.
func (h *AuthHandler) RegisterEntrepreneur(c *gin.Context) {
	h.register(c, domain.RoleEntrepreneur)
}

func (h *AuthHandler) register(c *gin.Context, role domain.Role) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	if role == domain.RoleEntrepreneur && len(req.Organization) < 2 {
		response.Error(c, apperror.Validation("organization must be at least 2 characters"))
		return
	}

	result, err := h.accountSvc.Register(c.Request.Context(), ports.RegisterRequest{
		Identity:     req.Identity,
		DisplayName:  req.DisplayName,
		Role:         role,
		Organization: req.Organization,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	acc := result.Account
	resp := dto.RegisterResponse{
		SequenceID:  acc.SequenceID,
		Identity:    acc.Identity,
		DisplayName: acc.DisplayName,
		Role:        string(acc.Role),
	}
	if acc.HasWallet() {
		resp.Wallet = toWalletResponse(acc.Wallet, result.Created)
	}

	if len(result.Warnings) > 0 {
		response.CreatedWithWarnings(c, resp, result.Warnings)
		return
	}
	response.Created(c, resp)
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.accountSvc.Login(c.Request.Context(), req.Identity, domain.Role(req.Role))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.LoginResponse{
		Token:  result.Token,
		Expiry: result.ExpiresAt.Unix(),
	})
}

// HealthCheck handles GET /health, verifying every registered dependency.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
