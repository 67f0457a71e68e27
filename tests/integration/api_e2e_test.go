//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refractlabs/refract-core/internal/adapter/httpapi"
	"github.com/refractlabs/refract-core/internal/adapter/journal"
	"github.com/refractlabs/refract-core/internal/audit"
	"github.com/refractlabs/refract-core/internal/domain"
	"github.com/refractlabs/refract-core/internal/metrics"
	"github.com/refractlabs/refract-core/internal/usecase/admin"
	"github.com/refractlabs/refract-core/internal/usecase/book"
	"github.com/refractlabs/refract-core/internal/usecase/reflection"
	"github.com/refractlabs/refract-core/internal/usecase/registry"
	"github.com/refractlabs/refract-core/internal/usecase/seeder"
	"github.com/refractlabs/refract-core/internal/usecase/stats"
	"github.com/refractlabs/refract-core/internal/usecase/transfer"
	"github.com/refractlabs/refract-core/internal/usecase/trigger"
)

const apiToken = "integration-token"

func addr(b byte) domain.Address {
	var a domain.Address
	a[19] = b
	return a
}

var (
	ownerAddr    = addr(0x01)
	aliceAddr    = addr(0x02)
	bobAddr      = addr(0x03)
	treasuryAddr = addr(0x04)
	poolAddr     = addr(0x09)
)

type stack struct {
	http    *httptest.Server
	ledger  *transfer.Service
	auditor *audit.Auditor
}

// newStack assembles the full service the way the daemon does, with an
// in-memory journal and an in-process HTTP server.
func newStack(t *testing.T) *stack {
	t.Helper()

	promReg := prometheus.NewRegistry()
	recorder := metrics.New(promReg)

	bk := book.New()
	reg := registry.New()
	refl := reflection.New(bk, reg, true)
	params := domain.TriggerParams{
		ConfettiModulo:   100,
		ReverseDayModulo: 7,
		LuckyDropModulo:  1000,
		LuckyPayoutBps:   100,
		LuckyMaxPayout:   uint256.NewInt(50_000),
	}
	trig := trigger.New(params)
	mem := journal.NewMemory(0)
	ledger := transfer.NewService(transfer.Params{
		Book:        bk,
		Registry:    reg,
		Reflections: refl,
		Triggers:    trig,
		Journal:     mem,
		Metrics:     recorder,
		Pool:        poolAddr,
	})
	auth := domain.NewSingleOwner(ownerAddr)

	sd := seeder.NewSystemSeeder(ledger, nil)
	require.NoError(t, sd.Seed(context.Background(), seeder.GenesisSpec{
		Owner:         ownerAddr,
		Supply:        uint256.NewInt(1_000_000),
		TriggerMode:   domain.TriggerConfetti,
		TriggerParams: params,
	}))

	api := httpapi.NewServer(nil, ledger, admin.NewService(ledger, auth), stats.NewService(ledger), mem)
	router := mux.NewRouter()
	api.RegisterRoutes(router, apiToken, ownerAddr)
	router.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return &stack{
		http:    ts,
		ledger:  ledger,
		auditor: audit.New(ledger, nil, recorder, "0 0 * * * *"),
	}
}

func (s *stack) request(t *testing.T, method, path string, authed bool, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.http.URL+path, reader)
	require.NoError(t, err)
	if authed {
		req.Header.Set("Authorization", "Bearer "+apiToken)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *stack) balance(t *testing.T, account domain.Address) string {
	t.Helper()
	resp := s.request(t, http.MethodGet, "/v1/balance/"+account.Hex(), false, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Balance string `json:"balance"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Balance
}

func TestLedgerEndToEnd(t *testing.T) {
	s := newStack(t)

	// Boot state
	resp := s.request(t, http.MethodGet, "/healthz", false, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.request(t, http.MethodGet, "/v1/supply", false, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var supply struct {
		TotalSupply string `json:"total_supply"`
		Minted      bool   `json:"minted"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&supply))
	assert.Equal(t, "1000000", supply.TotalSupply)
	assert.True(t, supply.Minted)

	// Writes need the bearer token
	resp = s.request(t, http.MethodPost, "/v1/transfer", false, map[string]string{
		"to": aliceAddr.Hex(), "amount": "100",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Apply a four-way tax policy over the wire
	resp = s.request(t, http.MethodPost, "/v1/admin/tax/rates", true, map[string]any{
		"components": []map[string]any{
			{"name": "treasury", "rate_bps": 80, "kind": "wallet", "wallet": treasuryAddr.Hex()},
			{"name": "burn", "rate_bps": 40, "kind": "unspendable"},
			{"name": "pool", "rate_bps": 30, "kind": "self_pool"},
			{"name": "reflect", "rate_bps": 50, "kind": "reflection"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Taxed transfer: 200 bps split off, the recipient lands exactly the
	// net, and the seeded CONFETTI mode fires on the round amount.
	resp = s.request(t, http.MethodPost, "/v1/transfer", true, map[string]string{
		"to": aliceAddr.Hex(), "amount": "100000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "98000", s.balance(t, aliceAddr))
	assert.Equal(t, "300", s.balance(t, poolAddr))
	assert.Equal(t, "400", s.balance(t, domain.ZeroAddress))

	// Switch to LUCKY_DROP and route a qualifying transfer
	resp = s.request(t, http.MethodPost, "/v1/admin/trigger/mode", true, map[string]string{
		"mode": "lucky_drop",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.request(t, http.MethodPost, "/v1/transfer", true, map[string]string{
		"to": bobAddr.Hex(), "amount": "10000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// net 9800 plus a 100-unit pool payout
	assert.Equal(t, "9900", s.balance(t, bobAddr))
	assert.Equal(t, "230", s.balance(t, poolAddr))
	assert.Equal(t, "440", s.balance(t, domain.ZeroAddress))

	// Journal carries the whole story
	resp = s.request(t, http.MethodGet, "/v1/journal/entries?limit=500", false, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []struct {
		Kind string `json:"kind"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))

	kinds := map[string]int{}
	for _, e := range entries {
		kinds[e.Kind]++
	}
	assert.Equal(t, 2, kinds["TRIGGER_FIRED"], "confetti then lucky drop")
	assert.Equal(t, 1, kinds["PAYOUT_ISSUED"])
	assert.Equal(t, 2, kinds["TAX_APPLIED"])
	assert.NotZero(t, kinds["MOVEMENT"])
	assert.NotZero(t, kinds["CONFIG_CHANGED"])
	assert.NotZero(t, kinds["EXCLUSION_CHANGED"])

	// Stats reflect the configured policy and the mode switch
	resp = s.request(t, http.MethodGet, "/v1/stats", false, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var overview struct {
		ConfiguredRateBps uint64 `json:"configured_rate_bps"`
		TriggerMode       string `json:"trigger_mode"`
		PoolBalance       string `json:"pool_balance"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&overview))
	assert.Equal(t, uint64(200), overview.ConfiguredRateBps)
	assert.Equal(t, "LUCKY_DROP", overview.TriggerMode)
	assert.Equal(t, "230", overview.PoolBalance)

	// Prometheus endpoint is mounted
	resp = s.request(t, http.MethodGet, "/metrics", false, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "refract_transfers_total")

	// Conservation holds within the floor-rounding bound
	drift := s.auditor.RunOnce()
	sheet, _ := s.ledger.BalanceSheet()
	assert.True(t, drift.Lt(uint256.NewInt(uint64(len(sheet)))),
		"drift %s must stay under %d accounts", drift.Dec(), len(sheet))
}
