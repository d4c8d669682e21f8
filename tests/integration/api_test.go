package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	httpHandler "custodial-wallet-service/internal/adapter/http/handler"
	jsonStorage "custodial-wallet-service/internal/adapter/storage/jsonfile"
	redisStorage "custodial-wallet-service/internal/adapter/storage/redis"
	"custodial-wallet-service/internal/core/ports"
	"custodial-wallet-service/internal/service"
	"custodial-wallet-service/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// testApp builds the full application stack end-to-end: real HTTP layer,
// middleware, services, JSON file store, and Redis stores on miniredis. Only
// the two external systems (custody provider, ledger RPC) are stubbed.
type testApp struct {
	server   *httptest.Server
	redis    *miniredis.Miniredis
	provider *stubCustodyProvider
	ledger   *stubLedger
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	log := logger.New("error", false)

	store, err := jsonStorage.NewStore(filepath.Join(t.TempDir(), "accounts.json"), log)
	require.NoError(t, err)

	provider := newStubCustodyProvider()
	ledgerClient := newStubLedger()

	cipher, err := service.NewShareCipher(testEncryptionKey)
	require.NoError(t, err)
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", time.Hour, "test-issuer")
	auditSvc := service.NewAuditService(nil, log)
	custodySvc := service.NewCustodyService(provider, log)

	walletSvc := service.NewWalletService(store, custodySvc, cipher, ledgerClient, auditSvc, service.WalletConfig{
		BalanceDriftWei: big.NewInt(1_000_000_000_000),
		TokenContract:   "0x7169D38820dfd117C3FA1f22a697dBA58d90BA06",
	}, log)
	transferSvc := service.NewTransferService(store, walletSvc, provider, ledgerClient, redisStorage.NewTransferGuard(rdb), redisStorage.NewReceiptCache(rdb), auditSvc, service.TransferConfig{
		GasLimit:        21000,
		TokenGasLimit:   100000,
		ConfirmWait:     2 * time.Second,
		ConfirmInterval: 10 * time.Millisecond,
		GuardTTL:        time.Hour,
		ReceiptTTL:      time.Hour,
		TokenContract:   "0x7169D38820dfd117C3FA1f22a697dBA58d90BA06",
		TokenDecimals:   6,
		ChainID:         97,
	}, log)
	accountSvc := service.NewAccountService(store, walletSvc, tokenSvc, auditSvc, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AccountSvc:     accountSvc,
		WalletSvc:      walletSvc,
		TransferSvc:    transferSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		HealthCheckers: []ports.HealthChecker{store, redisStorage.NewHealthCheck(rdb)},
		TokenDecimals:  6,
		Logger:         log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testApp{
		server:   server,
		redis:    mr,
		provider: provider,
		ledger:   ledgerClient,
	}
}

func (a *testApp) post(t *testing.T, path, token string, body any) (*http.Response, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, a.server.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.do(t, req)
}

func (a *testApp) get(t *testing.T, path, token string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, a.server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.do(t, req)
}

func (a *testApp) do(t *testing.T, req *http.Request) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &parsed), string(raw))
	}
	return resp, parsed
}

func (a *testApp) register(t *testing.T, identity, role string) map[string]interface{} {
	t.Helper()
	payload := map[string]string{
		"identity":     identity,
		"display_name": "Test User",
	}
	if role == "entrepreneur" {
		payload["organization"] = "Test Org"
	}
	resp, body := a.post(t, "/api/v1/auth/register/"+role, "", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode, fmt.Sprintf("%v", body))
	return body
}

func (a *testApp) login(t *testing.T, identity, role string) string {
	t.Helper()
	resp, body := a.post(t, "/api/v1/auth/login", "", map[string]string{
		"identity": identity,
		"role":     role,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body["data"].(map[string]interface{})["token"].(string)
}

func respData(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	return data
}

func TestRegisterProvisionsWallet(t *testing.T) {
	app := newTestApp(t)

	body := app.register(t, "+84901234567", "investor")
	data := respData(t, body)
	wallet := data["wallet"].(map[string]interface{})

	assert.Equal(t, "genuine", wallet["provenance"])
	assert.NotEmpty(t, wallet["address"])
	assert.Equal(t, int64(1), app.provider.createCalls.Load())
}

func TestRegisterDuplicateIdentity(t *testing.T) {
	app := newTestApp(t)

	app.register(t, "+84901234567", "investor")

	resp, body := app.post(t, "/api/v1/auth/register/entrepreneur", "", map[string]string{
		"identity":     "+84901234567",
		"display_name": "Someone Else",
		"organization": "Other Org",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ACC_001", body["error_code"])
}

func TestCreateWalletIdempotent(t *testing.T) {
	app := newTestApp(t)

	body := app.register(t, "+84901234567", "investor")
	address := respData(t, body)["wallet"].(map[string]interface{})["address"]

	token := app.login(t, "+84901234567", "investor")
	resp, body := app.post(t, "/api/v1/wallets", token, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := respData(t, body)
	assert.Equal(t, address, data["address"])
	assert.Equal(t, false, data["created"])
	assert.Equal(t, int64(1), app.provider.createCalls.Load())
}

func TestRegisterSurvivesCustodyOutage(t *testing.T) {
	app := newTestApp(t)
	app.provider.setFailing(true)

	body := app.register(t, "+84901234567", "investor")
	assert.NotEmpty(t, body["warnings"])
	assert.Nil(t, respData(t, body)["wallet"])

	// Provider recovers; wallet creation succeeds on retry.
	app.provider.setFailing(false)
	token := app.login(t, "+84901234567", "investor")
	resp, body := app.post(t, "/api/v1/wallets", token, nil)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "genuine", respData(t, body)["provenance"])
}

func TestDegradedWalletRejectsTransfers(t *testing.T) {
	app := newTestApp(t)

	// The provider already holds a wallet for this identity but can never
	// hand back its share.
	app.provider.seedWallet("+84901234567", "cust-orphan", "0x1000000000000000000000000000000000000001")
	app.provider.setShareless(true)

	body := app.register(t, "+84901234567", "investor")
	wallet := respData(t, body)["wallet"].(map[string]interface{})
	assert.Equal(t, "degraded", wallet["provenance"])

	token := app.login(t, "+84901234567", "investor")
	resp, errBody := app.post(t, "/api/v1/transfers", token, map[string]string{
		"to_address":   "0x2000000000000000000000000000000000000002",
		"amount":       "0.1",
		"reference_id": "ref-degraded-1",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "TRX_004", errBody["error_code"])
}

func TestNativeTransferEndToEnd(t *testing.T) {
	app := newTestApp(t)

	body := app.register(t, "+84901234567", "investor")
	address := respData(t, body)["wallet"].(map[string]interface{})["address"].(string)
	app.ledger.setBalance(address, mustWei(t, "2"))

	token := app.login(t, "+84901234567", "investor")

	resp, body := app.post(t, "/api/v1/transfers", token, map[string]string{
		"to_address":   "0x2000000000000000000000000000000000000002",
		"amount":       "0.5",
		"reference_id": "ref-e2e-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, fmt.Sprintf("%v", body))
	data := respData(t, body)
	assert.Equal(t, "confirmed", data["status"])
	hash := data["hash"].(string)
	require.NotEmpty(t, hash)

	// The signature must have used this identity's own share.
	assert.Equal(t, []string{"share-+84901234567"}, app.provider.sharesUsed(address))

	// Status lookup resolves from the receipt cache.
	resp, body = app.get(t, "/api/v1/transfers/"+hash, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "confirmed", respData(t, body)["status"])

	// Replaying the same reference id is rejected.
	resp, body = app.post(t, "/api/v1/transfers", token, map[string]string{
		"to_address":   "0x2000000000000000000000000000000000000002",
		"amount":       "0.5",
		"reference_id": "ref-e2e-1",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "TRX_005", body["error_code"])
}

func TestTransferInsufficientFunds(t *testing.T) {
	app := newTestApp(t)

	app.register(t, "+84901234567", "investor")
	token := app.login(t, "+84901234567", "investor")

	resp, body := app.post(t, "/api/v1/transfers", token, map[string]string{
		"to_address":   "0x2000000000000000000000000000000000000002",
		"amount":       "1",
		"reference_id": "ref-poor-1",
	})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "TRX_002", body["error_code"])
	assert.Equal(t, int64(0), app.provider.signCalls.Load())
}

func TestRejectedTransferReferenceReusable(t *testing.T) {
	app := newTestApp(t)

	body := app.register(t, "+84901234567", "investor")
	address := respData(t, body)["wallet"].(map[string]interface{})["address"].(string)
	token := app.login(t, "+84901234567", "investor")

	// Unfunded wallet: the transfer is rejected before anything is signed.
	resp, body := app.post(t, "/api/v1/transfers", token, map[string]string{
		"to_address":   "0x2000000000000000000000000000000000000002",
		"amount":       "1",
		"reference_id": "ref-retry-1",
	})
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "TRX_002", body["error_code"])

	// After funding, the same reference id must still be usable.
	app.ledger.setBalance(address, mustWei(t, "2"))
	resp, body = app.post(t, "/api/v1/transfers", token, map[string]string{
		"to_address":   "0x2000000000000000000000000000000000000002",
		"amount":       "1",
		"reference_id": "ref-retry-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, fmt.Sprintf("%v", body))
	assert.Equal(t, "confirmed", respData(t, body)["status"])
}

func TestUnminedTransferStaysPending(t *testing.T) {
	app := newTestApp(t)
	app.ledger.setAutoMine(false)

	body := app.register(t, "+84901234567", "investor")
	address := respData(t, body)["wallet"].(map[string]interface{})["address"].(string)
	app.ledger.setBalance(address, mustWei(t, "2"))

	token := app.login(t, "+84901234567", "investor")
	resp, body := app.post(t, "/api/v1/transfers", token, map[string]string{
		"to_address":   "0x2000000000000000000000000000000000000002",
		"amount":       "0.5",
		"reference_id": "ref-pending-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "pending", respData(t, body)["status"])
}

func TestBalanceRefreshAndTokenBalance(t *testing.T) {
	app := newTestApp(t)

	body := app.register(t, "+84901234567", "investor")
	address := respData(t, body)["wallet"].(map[string]interface{})["address"].(string)
	app.ledger.setBalance(address, mustWei(t, "1.5"))
	app.ledger.setTokenBalance(address, big.NewInt(12_345_678))

	token := app.login(t, "+84901234567", "investor")

	resp, body := app.get(t, "/api/v1/wallets/balance", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := respData(t, body)
	assert.Equal(t, "1.5", data["amount"])
	assert.Equal(t, true, data["cache_updated"])

	resp, body = app.get(t, "/api/v1/wallets/token-balance", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "12.345678", respData(t, body)["amount"])
}

func TestListAccounts(t *testing.T) {
	app := newTestApp(t)

	app.register(t, "+84901234567", "investor")
	app.register(t, "+84907777777", "entrepreneur")

	token := app.login(t, "+84901234567", "investor")
	resp, body := app.get(t, "/api/v1/accounts", token)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := body["data"].([]interface{})
	assert.Len(t, rows, 2)
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.get(t, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func mustWei(t *testing.T, decimal string) *big.Int {
	t.Helper()
	rat, ok := new(big.Rat).SetString(decimal)
	require.True(t, ok)
	wei := new(big.Rat).Mul(rat, new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)))
	require.True(t, wei.IsInt())
	return wei.Num()
}
