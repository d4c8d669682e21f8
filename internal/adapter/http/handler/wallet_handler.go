package handler

import (
	"custodial-wallet-service/internal/adapter/http/dto"
	"custodial-wallet-service/internal/adapter/http/middleware"
	"custodial-wallet-service/internal/core/domain"
	"custodial-wallet-service/internal/core/ports"
	"custodial-wallet-service/pkg/apperror"
	"custodial-wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet lifecycle and balance endpoints.
type WalletHandler struct {
	walletSvc     ports.WalletService
	tokenDecimals int
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, tokenDecimals int) *WalletHandler {
	return &WalletHandler{
		walletSvc:     walletSvc,
		tokenDecimals: tokenDecimals,
	}
}

// CreateWallet handles POST /api/v1/wallets. The operation is idempotent:
// repeat calls return the existing wallet.
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	result, err := h.walletSvc.CreateWallet(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := toWalletResponse(result.Account.Wallet, result.Created)
	if result.Created {
		if len(result.Warnings) > 0 {
			response.CreatedWithWarnings(c, resp, result.Warnings)
			return
		}
		response.Created(c, resp)
		return
	}
	response.OK(c, resp)
}

// RefreshBalance handles GET /api/v1/wallets/balance. It reads the
// live native balance and rewrites the cached copy when it drifted.
func (h *WalletHandler) RefreshBalance(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	refresh, err := h.walletSvc.RefreshBalance(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.BalanceResponse{
		Asset:        string(domain.AssetNative),
		Wei:          refresh.AmountWei.String(),
		Amount:       domain.FromBaseUnits(refresh.AmountWei, domain.NativeDecimals),
		CacheUpdated: refresh.CacheUpdated,
	}
	if len(refresh.Warnings) > 0 {
		response.OKWithWarnings(c, resp, refresh.Warnings)
		return
	}
	response.OK(c, resp)
}

// TokenBalance handles GET /api/v1/wallets/token-balance.
func (h *WalletHandler) TokenBalance(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	refresh, err := h.walletSvc.TokenBalance(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		Asset:  string(domain.AssetToken),
		Wei:    refresh.AmountWei.String(),
		Amount: domain.FromBaseUnits(refresh.AmountWei, h.tokenDecimals),
	})
}

func toWalletResponse(w *domain.Wallet, created bool) *dto.WalletResponse {
	return &dto.WalletResponse{
		Address:    w.ChainAddress,
		Provenance: string(w.Provenance),
		Balance:    w.CachedBalance,
		Created:    created,
	}
}
