package integration

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentWalletCreation verifies that simultaneous wallet creation
// requests for the same identity collapse to a single provider interaction
// and a single persisted wallet.
func TestConcurrentWalletCreation(t *testing.T) {
	app := newTestApp(t)

	// Register without a wallet: the provider is down during registration.
	app.provider.setFailing(true)
	app.register(t, "+84901234567", "investor")
	app.provider.setFailing(false)

	token := app.login(t, "+84901234567", "investor")

	const workers = 16
	var wg sync.WaitGroup
	statuses := make([]int, workers)
	addresses := make([]string, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, body := app.post(t, "/api/v1/wallets", token, nil)
			statuses[i] = resp.StatusCode
			if data, ok := body["data"].(map[string]interface{}); ok {
				addresses[i], _ = data["address"].(string)
			}
		}(i)
	}
	wg.Wait()

	created := 0
	for i, code := range statuses {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusOK:
		default:
			t.Fatalf("request %d: unexpected status %d", i, code)
		}
	}
	assert.Equal(t, 1, created, "exactly one request should create the wallet")
	assert.Equal(t, int64(1), app.provider.createCalls.Load(), "provider should see a single creation")

	for i := 1; i < workers; i++ {
		assert.Equal(t, addresses[0], addresses[i], "all callers must observe the same wallet")
	}
}

// TestConcurrentTransfersSerialized verifies that concurrent transfers from
// one account are serialized through the signing session and each reference
// id is accepted exactly once.
func TestConcurrentTransfersSerialized(t *testing.T) {
	app := newTestApp(t)

	body := app.register(t, "+84901234567", "investor")
	address := respData(t, body)["wallet"].(map[string]interface{})["address"].(string)
	app.ledger.setBalance(address, mustWei(t, "100"))

	token := app.login(t, "+84901234567", "investor")

	const workers = 8
	var wg sync.WaitGroup
	statuses := make([]int, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, _ := app.post(t, "/api/v1/transfers", token, map[string]string{
				"to_address":   "0x2000000000000000000000000000000000000002",
				"amount":       "0.25",
				"reference_id": fmt.Sprintf("ref-conc-%d", i),
			})
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for i, code := range statuses {
		require.Equal(t, http.StatusCreated, code, "transfer %d failed", i)
	}
	assert.Equal(t, int64(workers), app.provider.signCalls.Load())
}

// TestConcurrentTransfersAcrossIdentities verifies that overlapping transfers
// from different accounts each sign with their own wallet share.
func TestConcurrentTransfersAcrossIdentities(t *testing.T) {
	app := newTestApp(t)

	identities := []string{"+84901111111", "+84902222222", "+84903333333"}
	addresses := make([]string, len(identities))
	tokens := make([]string, len(identities))
	for i, identity := range identities {
		body := app.register(t, identity, "investor")
		addresses[i] = respData(t, body)["wallet"].(map[string]interface{})["address"].(string)
		app.ledger.setBalance(addresses[i], mustWei(t, "100"))
		tokens[i] = app.login(t, identity, "investor")
	}

	const perIdentity = 4
	var wg sync.WaitGroup
	for i := range identities {
		for j := 0; j < perIdentity; j++ {
			wg.Add(1)
			go func(i, j int) {
				defer wg.Done()
				resp, body := app.post(t, "/api/v1/transfers", tokens[i], map[string]string{
					"to_address":   "0x2000000000000000000000000000000000000002",
					"amount":       "0.25",
					"reference_id": fmt.Sprintf("ref-cross-%d-%d", i, j),
				})
				assert.Equal(t, http.StatusCreated, resp.StatusCode, fmt.Sprintf("%v", body))
			}(i, j)
		}
	}
	wg.Wait()

	for i, identity := range identities {
		shares := app.provider.sharesUsed(addresses[i])
		require.Len(t, shares, perIdentity)
		for _, share := range shares {
			assert.Equal(t, "share-"+identity, share,
				"transfer from %s signed with a foreign share", identity)
		}
	}
}

// TestDuplicateReferenceRace verifies that two simultaneous submissions of
// the same reference id result in exactly one accepted transfer.
func TestDuplicateReferenceRace(t *testing.T) {
	app := newTestApp(t)

	body := app.register(t, "+84901234567", "investor")
	address := respData(t, body)["wallet"].(map[string]interface{})["address"].(string)
	app.ledger.setBalance(address, mustWei(t, "100"))

	token := app.login(t, "+84901234567", "investor")

	const workers = 4
	var wg sync.WaitGroup
	statuses := make([]int, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, _ := app.post(t, "/api/v1/transfers", token, map[string]string{
				"to_address":   "0x2000000000000000000000000000000000000002",
				"amount":       "0.25",
				"reference_id": "ref-race-1",
			})
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	accepted, rejected := 0, 0
	for _, code := range statuses {
		switch code {
		case http.StatusCreated:
			accepted++
		case http.StatusConflict:
			rejected++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, workers-1, rejected)
	assert.Equal(t, int64(1), app.provider.signCalls.Load())
}
