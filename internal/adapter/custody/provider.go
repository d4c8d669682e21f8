package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"custodial-wallet-service/internal/core/domain"
	"custodial-wallet-service/internal/core/ports"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Provider is the HTTP client for the MPC custody provider. It is stateless;
// the user share is supplied by the caller on every sign call and never
// retained between calls.
type Provider struct {
	baseURL    string
	apiKey     string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewProvider creates a custody provider client.
func NewProvider(baseURL, apiKey string, httpClient HTTPClient, log zerolog.Logger) *Provider {
	return &Provider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		log:        log.With().Str("component", "custody_provider").Logger(),
	}
}

var _ ports.CustodyProvider = (*Provider)(nil)

type walletLookupResponse struct {
	Exists bool `json:"exists"`
}

type createWalletRequest struct {
	Identity string `json:"identity"`
}

type createWalletResponse struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Share   string `json:"share"`
}

type signRequest struct {
	Share    string `json:"share"`
	From     string `json:"from"`
	To       string `json:"to"`
	Value    string `json:"value"`
	Data     string `json:"data,omitempty"`
	Nonce    uint64 `json:"nonce"`
	GasLimit uint64 `json:"gas_limit"`
	GasPrice string `json:"gas_price"`
	ChainID  int64  `json:"chain_id"`
}

type signResponse struct {
	Hash string `json:"hash"`
}

// HasWallet asks the provider whether a pre-generated wallet exists.
func (p *Provider) HasWallet(ctx context.Context, identity string) (bool, error) {
	var resp walletLookupResponse
	err := p.call(ctx, http.MethodGet, "/v1/wallets/lookup?identity="+url.QueryEscape(identity), nil, &resp)
	if err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// CreateWallet provisions (or claims) a wallet and returns the raw user
// share for the caller to encrypt and persist.
func (p *Provider) CreateWallet(ctx context.Context, identity string) (string, string, string, error) {
	var resp createWalletResponse
	err := p.call(ctx, http.MethodPost, "/v1/wallets", createWalletRequest{Identity: identity}, &resp)
	if err != nil {
		return "", "", "", err
	}
	return resp.ID, resp.Address, resp.Share, nil
}

// SignAndSend signs the transaction with the caller-owned share and
// broadcasts it.
func (p *Provider) SignAndSend(ctx context.Context, share string, tx *domain.UnsignedTx) (string, error) {
	if share == "" {
		return "", fmt.Errorf("no signing share provided")
	}

	req := signRequest{
		Share:    share,
		From:     tx.From,
		To:       tx.To,
		Value:    tx.ValueWei.String(),
		Nonce:    tx.Nonce,
		GasLimit: tx.GasLimit,
		GasPrice: tx.GasPriceWei.String(),
		ChainID:  tx.ChainID,
	}
	if len(tx.Data) > 0 {
		req.Data = fmt.Sprintf("0x%x", tx.Data)
	}

	var resp signResponse
	if err := p.call(ctx, http.MethodPost, "/v1/transactions", req, &resp); err != nil {
		return "", err
	}
	return resp.Hash, nil
}

// call performs one provider round trip. Request and response bodies are
// JSON; non-2xx statuses become errors carrying the provider's message.
func (p *Provider) call(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding custody request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building custody request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("custody provider call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("custody provider returned %d: %s", resp.StatusCode, string(detail))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding custody response: %w", err)
		}
	}
	return nil
}
