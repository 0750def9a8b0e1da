package cross_test

import (
	"net/http"
	"testing"

	"github.com/amirasaad/crossledger/infra/repository/memory"
	"github.com/amirasaad/crossledger/webapi/cross"
	"github.com/amirasaad/crossledger/webapi/testutils"
	"github.com/amirasaad/crossledger/webapi/wallet"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHarness(t *testing.T) *testutils.Harness {
	t.Helper()
	h := testutils.New(t)
	h.CreateWallet(testutils.TeamWallet, "team")
	h.CreateWallet("A", "client")
	h.CreateWallet("B", "client")
	return h
}

func openBody(long, short string) map[string]any {
	return map[string]any{
		"name":   "EURUSD hedge",
		"pair":   "EURUSD",
		"volume": "1.5",
		"long":   map[string]any{"client": long, "broker": "Alpha", "volume": "1.5"},
		"short":  map[string]any{"client": short, "broker": "Beta", "volume": "1.5"},
		"bonuses": []map[string]any{
			{"amount": "25", "note": "welcome"},
		},
	}
}

func closeBody(winner string) map[string]any {
	return map[string]any{
		"final_balance_long":  "120.50",
		"final_balance_short": "80.00",
		"winner":              winner,
	}
}

func open(t *testing.T, h *testutils.Harness) cross.CrossDTO {
	t.Helper()
	resp := h.Do(http.MethodPost, "/crosses", openBody("A", "B"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var c cross.CrossDTO
	h.Decode(resp, &c)
	return c
}

func balance(t *testing.T, h *testutils.Harness, name string) string {
	t.Helper()
	var b wallet.BalanceDTO
	h.Decode(h.Do(http.MethodGet, "/wallets/"+name+"/balance", nil), &b)
	return b.Balance
}

func TestOpen(t *testing.T) {
	h := newHarness(t)
	c := open(t, h)

	assert.Equal(t, "active", c.State)
	assert.Equal(t, testutils.TeamWallet, c.TeamWallet)
	assert.Equal(t, "long", c.Long.Side)
	assert.Equal(t, "A", c.Long.ClientWallet)
	assert.Equal(t, "B", c.Short.ClientWallet)
	require.Len(t, c.Bonuses, 1)
	assert.Equal(t, "25.000000", c.Bonuses[0].Amount)
	assert.Equal(t, "USDT", c.Bonuses[0].Currency)

	// the open markers carry no amount
	assert.Equal(t, "0.000000", balance(t, h, "A"))

	var got cross.CrossDTO
	h.Decode(h.Do(http.MethodGet, "/crosses/"+c.ID, nil), &got)
	assert.Equal(t, c.ID, got.ID)
}

func TestOpen_Rejections(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"same client", openBody("A", "A"), fiber.StatusBadRequest},
		{"unknown wallet", openBody("A", "Ghost"), fiber.StatusUnprocessableEntity},
		{"missing pair", func() map[string]any {
			b := openBody("A", "B")
			delete(b, "pair")
			return b
		}(), fiber.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := h.Do(http.MethodPost, "/crosses", tc.body)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestList(t *testing.T) {
	h := newHarness(t)
	c := open(t, h)

	var all []cross.CrossDTO
	h.Decode(h.Do(http.MethodGet, "/crosses?state=active&wallet=B", nil), &all)
	require.Len(t, all, 1)
	assert.Equal(t, c.ID, all[0].ID)

	var none []cross.CrossDTO
	h.Decode(h.Do(http.MethodGet, "/crosses?state=closed", nil), &none)
	assert.Empty(t, none)

	resp := h.Do(http.MethodGet, "/crosses?state=open", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSuspendResume(t *testing.T) {
	h := newHarness(t)
	c := open(t, h)

	resp := h.Do(http.MethodPost, "/crosses/"+c.ID+"/suspend", map[string]string{"note": "broker outage"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var got cross.CrossDTO
	h.Decode(resp, &got)
	assert.Equal(t, "suspended", got.State)

	resp = h.Do(http.MethodPost, "/crosses/"+c.ID+"/close", closeBody("short"))
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = h.Do(http.MethodPost, "/crosses/"+c.ID+"/suspend", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = h.Do(http.MethodPost, "/crosses/"+c.ID+"/resume", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	h.Decode(resp, &got)
	assert.Equal(t, "active", got.State)
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	c := open(t, h)

	resp := h.Do(http.MethodPost, "/crosses/"+c.ID+"/close", closeBody("short"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var receipt cross.ReceiptDTO
	env := h.Decode(resp, &receipt)
	assert.Equal(t, "Cross closed", env.Message)
	assert.Equal(t, "short", receipt.Winner)
	assert.Equal(t, "-120.500000", receipt.DeltaLong)
	assert.Equal(t, "80.000000", receipt.DeltaShort)
	assert.Len(t, receipt.TransactionIDs, 2)
	assert.False(t, receipt.Replayed)

	assert.Equal(t, "-120.500000", balance(t, h, "A"))
	assert.Equal(t, "80.000000", balance(t, h, "B"))

	// same inputs replay the stored receipt and post nothing
	resp = h.Do(http.MethodPost, "/crosses/"+c.ID+"/close", closeBody("short"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var replay cross.ReceiptDTO
	env = h.Decode(resp, &replay)
	assert.Equal(t, "Cross already closed", env.Message)
	assert.True(t, replay.Replayed)
	assert.ElementsMatch(t, receipt.TransactionIDs, replay.TransactionIDs)
	assert.Equal(t, "80.000000", balance(t, h, "B"))

	resp = h.Do(http.MethodPost, "/crosses/"+c.ID+"/close", closeBody("long"))
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var stored cross.ReceiptDTO
	h.Decode(h.Do(http.MethodGet, "/crosses/"+c.ID+"/receipt", nil), &stored)
	assert.Equal(t, receipt.DeltaShort, stored.DeltaShort)
}

func TestClose_Rejections(t *testing.T) {
	h := newHarness(t)
	c := open(t, h)

	body := closeBody("short")
	body["final_balance_long"] = "-1"
	resp := h.Do(http.MethodPost, "/crosses/"+c.ID+"/close", body)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = h.Do(http.MethodPost, "/crosses/"+c.ID+"/close", closeBody("middle"))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = h.Do(http.MethodPost, "/crosses/"+uuid.NewString()+"/close", closeBody("long"))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = h.Do(http.MethodGet, "/crosses/"+c.ID+"/receipt", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestDelete(t *testing.T) {
	h := newHarness(t)
	c := open(t, h)

	var receipt cross.ReceiptDTO
	h.Decode(h.Do(http.MethodPost, "/crosses/"+c.ID+"/close", closeBody("short")), &receipt)

	resp := h.Do(http.MethodDelete, "/crosses/"+c.ID, nil)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	pd := h.Problem(resp)
	assert.Len(t, pd.Errors, 2)

	for _, id := range receipt.TransactionIDs {
		resp = h.Do(http.MethodPost, "/transactions/"+id+"/reverse", nil)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}
	assert.Equal(t, "0.000000", balance(t, h, "B"))

	resp = h.Do(http.MethodDelete, "/crosses/"+c.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = h.Do(http.MethodGet, "/crosses/"+c.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestClose_StorageUnavailable(t *testing.T) {
	h := newHarness(t)
	c := open(t, h)

	h.Store.InjectFault(memory.BeforeCommit, 1)
	resp := h.Do(http.MethodPost, "/crosses/"+c.ID+"/close", closeBody("long"))
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get(fiber.HeaderRetryAfter))
	assert.Equal(t, "0.000000", balance(t, h, "A"))

	// the retry settles exactly once
	resp = h.Do(http.MethodPost, "/crosses/"+c.ID+"/close", closeBody("long"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "120.500000", balance(t, h, "A"))
	assert.Equal(t, "-80.000000", balance(t, h, "B"))
}
