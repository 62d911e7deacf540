package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hypersigner/pkg/crypto"
)

const testAgentKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

// stubVenue fakes the /info and /exchange endpoints and records every
// submitted exchange payload
type stubVenue struct {
	mu         sync.Mutex
	metaDexs   []string // dex of each meta request, "" for default
	payloads   []map[string]any
	mids       map[string]string
	positions  map[string]string // coin -> szi
	failStatus int
	failBody   string
}

func (v *stubVenue) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		switch r.URL.Path {
		case "/info":
			v.handleInfo(w, body)
		case "/exchange":
			v.mu.Lock()
			v.payloads = append(v.payloads, body)
			v.mu.Unlock()

			if v.failStatus != 0 {
				w.WriteHeader(v.failStatus)
				w.Write([]byte(v.failBody))
				return
			}
			w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	})
}

func (v *stubVenue) handleInfo(w http.ResponseWriter, body map[string]any) {
	dex, _ := body["dex"].(string)

	switch body["type"] {
	case "meta":
		v.mu.Lock()
		v.metaDexs = append(v.metaDexs, dex)
		v.mu.Unlock()

		universe := []map[string]any{{"name": "BTC", "szDecimals": 5}, {"name": "ETH", "szDecimals": 4}}
		if dex != "" {
			universe = []map[string]any{{"name": dex + ":GOLD", "szDecimals": 2}}
		}
		json.NewEncoder(w).Encode(map[string]any{"universe": universe})
	case "allMids":
		json.NewEncoder(w).Encode(v.mids)
	case "clearinghouseState":
		positions := []map[string]any{}
		for coin, szi := range v.positions {
			positions = append(positions, map[string]any{
				"position": map[string]any{"coin": coin, "szi": szi},
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"assetPositions": positions})
	default:
		http.Error(w, "unknown info type", http.StatusBadRequest)
	}
}

func (v *stubVenue) lastAction(t *testing.T) map[string]any {
	t.Helper()
	v.mu.Lock()
	defer v.mu.Unlock()
	require.NotEmpty(t, v.payloads)
	action, ok := v.payloads[len(v.payloads)-1]["action"].(map[string]any)
	require.True(t, ok, "payload missing action")
	return action
}

func newTestExchange(t *testing.T, venue *stubVenue, perpDexs []string) (*Exchange, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(venue.handler())
	t.Cleanup(server.Close)

	signer, err := crypto.FromPrivateKeyHex(testAgentKey)
	require.NoError(t, err)

	e := New(signer, Options{
		BaseURL:        server.URL,
		AccountAddress: "0xABCDEF1234567890ABCDEF1234567890ABCDEF12",
		PerpDexs:       perpDexs,
	})
	return e, server
}

func TestOrderWirePayload(t *testing.T) {
	venue := &stubVenue{}
	e, _ := newTestExchange(t, venue, nil)

	_, err := e.Order(context.Background(), OrderRequest{
		Coin:      "BTC",
		IsBuy:     true,
		Sz:        1.5,
		LimitPx:   50000,
		OrderType: OrderType{Limit: &LimitOrderType{Tif: TifGtc}},
	}, nil)
	require.NoError(t, err)

	action := venue.lastAction(t)
	assert.Equal(t, "order", action["type"])
	assert.Equal(t, "na", action["grouping"])
	_, hasBuilder := action["builder"]
	assert.False(t, hasBuilder, "absent builder must not render a key")

	orders := action["orders"].([]any)
	require.Len(t, orders, 1)
	order := orders[0].(map[string]any)
	assert.Equal(t, float64(0), order["a"]) // BTC is index 0 on the default dex
	assert.Equal(t, true, order["b"])
	assert.Equal(t, "50000", order["p"])
	assert.Equal(t, "1.5", order["s"])
	assert.Equal(t, false, order["r"])
	orderType := order["t"].(map[string]any)
	limit := orderType["limit"].(map[string]any)
	assert.Equal(t, "Gtc", limit["tif"])
}

func TestOrderAttachesBuilderFee(t *testing.T) {
	venue := &stubVenue{}
	e, _ := newTestExchange(t, venue, nil)

	builder := &BuilderInfo{Builder: "0x1234567890abcdef1234567890abcdef12345678", Fee: 100}
	_, err := e.Order(context.Background(), OrderRequest{
		Coin:      "ETH",
		IsBuy:     false,
		Sz:        2,
		LimitPx:   3000,
		OrderType: OrderType{Limit: &LimitOrderType{Tif: TifGtc}},
	}, builder)
	require.NoError(t, err)

	action := venue.lastAction(t)
	b := action["builder"].(map[string]any)
	assert.Equal(t, "0x1234567890abcdef1234567890abcdef12345678", b["b"])
	assert.Equal(t, float64(100), b["f"])
}

func TestPerpDexRouting(t *testing.T) {
	venue := &stubVenue{}
	e, _ := newTestExchange(t, venue, []string{"", "xyz"})

	assert.Equal(t, []string{"", "xyz"}, e.PerpDexs())

	_, err := e.Order(context.Background(), OrderRequest{
		Coin:      "xyz:GOLD",
		IsBuy:     true,
		Sz:        1,
		LimitPx:   2000,
		OrderType: OrderType{Limit: &LimitOrderType{Tif: TifGtc}},
	}, nil)
	require.NoError(t, err)

	// Meta fetched for the default namespace and the builder dex
	assert.Equal(t, []string{"", "xyz"}, venue.metaDexs)

	// Builder-dex assets occupy the band starting at 110000
	action := venue.lastAction(t)
	order := action["orders"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(110000), order["a"])
}

func TestUnknownCoin(t *testing.T) {
	venue := &stubVenue{}
	e, _ := newTestExchange(t, venue, nil)

	_, err := e.Cancel(context.Background(), "DOGE", 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown coin")
	assert.Empty(t, venue.payloads, "no action submitted for unknown coin")
}

func TestMarketOpenSlippagePrice(t *testing.T) {
	venue := &stubVenue{mids: map[string]string{"BTC": "50000"}}
	e, _ := newTestExchange(t, venue, nil)

	_, err := e.MarketOpen(context.Background(), "BTC", true, 0.5, nil, 0.01, nil)
	require.NoError(t, err)

	action := venue.lastAction(t)
	order := action["orders"].([]any)[0].(map[string]any)
	// 50000 * 1.01 = 50500, IoC, not reduce-only
	assert.Equal(t, "50500", order["p"])
	assert.Equal(t, false, order["r"])
	limit := order["t"].(map[string]any)["limit"].(map[string]any)
	assert.Equal(t, "Ioc", limit["tif"])
}

func TestMarketOpenExplicitPrice(t *testing.T) {
	venue := &stubVenue{} // no mids configured: a fetch would fail
	e, _ := newTestExchange(t, venue, nil)

	px := 40000.0
	_, err := e.MarketOpen(context.Background(), "BTC", false, 1, &px, 0.01, nil)
	require.NoError(t, err)

	action := venue.lastAction(t)
	order := action["orders"].([]any)[0].(map[string]any)
	// 40000 * 0.99 = 39600
	assert.Equal(t, "39600", order["p"])
}

func TestMarketCloseFullPosition(t *testing.T) {
	venue := &stubVenue{
		mids:      map[string]string{"BTC": "50000"},
		positions: map[string]string{"BTC": "-1.5"},
	}
	e, _ := newTestExchange(t, venue, nil)

	_, err := e.MarketClose(context.Background(), "BTC", nil, nil, 0.01, nil)
	require.NoError(t, err)

	action := venue.lastAction(t)
	order := action["orders"].([]any)[0].(map[string]any)
	// Short position: close buys back the full reported size, reduce-only
	assert.Equal(t, true, order["b"])
	assert.Equal(t, "1.5", order["s"])
	assert.Equal(t, true, order["r"])
}

func TestMarketClosePartialSize(t *testing.T) {
	venue := &stubVenue{
		mids:      map[string]string{"BTC": "50000"},
		positions: map[string]string{"BTC": "2.0"},
	}
	e, _ := newTestExchange(t, venue, nil)

	sz := 0.5
	_, err := e.MarketClose(context.Background(), "BTC", &sz, nil, 0.01, nil)
	require.NoError(t, err)

	action := venue.lastAction(t)
	order := action["orders"].([]any)[0].(map[string]any)
	assert.Equal(t, false, order["b"]) // long position closes with a sell
	assert.Equal(t, "0.5", order["s"])
}

func TestCancelWirePayload(t *testing.T) {
	venue := &stubVenue{}
	e, _ := newTestExchange(t, venue, nil)

	_, err := e.Cancel(context.Background(), "ETH", 777)
	require.NoError(t, err)

	action := venue.lastAction(t)
	assert.Equal(t, "cancel", action["type"])
	cancels := action["cancels"].([]any)
	require.Len(t, cancels, 1)
	cancel := cancels[0].(map[string]any)
	assert.Equal(t, float64(1), cancel["a"]) // ETH is index 1
	assert.Equal(t, float64(777), cancel["o"])
}

func TestUpdateLeverageWirePayload(t *testing.T) {
	venue := &stubVenue{}
	e, _ := newTestExchange(t, venue, nil)

	_, err := e.UpdateLeverage(context.Background(), 20, "BTC", true)
	require.NoError(t, err)

	action := venue.lastAction(t)
	assert.Equal(t, "updateLeverage", action["type"])
	assert.Equal(t, float64(0), action["asset"])
	assert.Equal(t, true, action["isCross"])
	assert.Equal(t, float64(20), action["leverage"])
}

func TestEnableDexAbstraction(t *testing.T) {
	venue := &stubVenue{}
	e, _ := newTestExchange(t, venue, nil)

	raw, err := e.EnableDexAbstraction(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(raw))

	action := venue.lastAction(t)
	assert.Equal(t, "agentEnableDexAbstraction", action["type"])
	// No info round-trip needed for this action
	assert.Empty(t, venue.metaDexs)
}

func TestVenueErrorPropagation(t *testing.T) {
	venue := &stubVenue{failStatus: 400, failBody: `{"error":"Insufficient margin"}`}
	e, _ := newTestExchange(t, venue, nil)

	_, err := e.UpdateLeverage(context.Background(), 20, "BTC", false)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.JSONEq(t, `{"error":"Insufficient margin"}`, string(apiErr.Body))
}

func TestSubmittedPayloadShape(t *testing.T) {
	venue := &stubVenue{}
	e, _ := newTestExchange(t, venue, nil)

	_, err := e.UpdateLeverage(context.Background(), 10, "BTC", false)
	require.NoError(t, err)

	payload := venue.payloads[0]
	assert.Contains(t, payload, "action")
	assert.Contains(t, payload, "nonce")
	assert.Contains(t, payload, "signature")
	assert.Nil(t, payload["vaultAddress"])

	sig := payload["signature"].(map[string]any)
	assert.Contains(t, sig, "r")
	assert.Contains(t, sig, "s")
	assert.Contains(t, sig, "v")
}

func TestNextNonceMonotonic(t *testing.T) {
	venue := &stubVenue{}
	e, _ := newTestExchange(t, venue, nil)

	prev := int64(0)
	for i := 0; i < 100; i++ {
		n := e.nextNonce()
		assert.Greater(t, n, prev)
		prev = n
	}
}

func TestAccountLowercased(t *testing.T) {
	venue := &stubVenue{}
	e, _ := newTestExchange(t, venue, nil)
	assert.Equal(t, "0xabcdef1234567890abcdef1234567890abcdef12", e.Account())
}
