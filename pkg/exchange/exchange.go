package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/uhyunpark/hypersigner/pkg/crypto"
)

// MainnetAPIURL is the production venue endpoint
const MainnetAPIURL = "https://api.hyperliquid.xyz"

// DefaultSlippage is the default max slippage for market orders (1%)
const DefaultSlippage = 0.01

// Options configures a per-request Exchange client
type Options struct {
	// BaseURL of the venue; mainnet when equal to MainnetAPIURL
	BaseURL string
	// AccountAddress is the account of record for signed actions. It may
	// differ from the signer's own address when the key is an agent key.
	AccountAddress string
	// PerpDexs lists the dex namespaces this client can address. Empty
	// means default-dex-only routing.
	PerpDexs []string
	// Timeout for each venue round-trip; DefaultTimeout when zero
	Timeout time.Duration
}

// Exchange signs and submits venue actions on behalf of one account.
// It is derived per request from caller-supplied key material, used for
// that request, and discarded: nothing here outlives the request, and no
// state is shared between clients.
type Exchange struct {
	rest      *restClient
	signer    *crypto.Signer
	account   string
	perpDexs  []string
	mainnet   bool
	assets    map[string]assetInfo
	prevNonce atomic.Int64
}

// New derives an Exchange bound to the venue, the account of record, and
// the dex routing list. Construction is pure: no network call happens
// until an action is submitted.
func New(signer *crypto.Signer, opts Options) *Exchange {
	e := &Exchange{
		rest:     newRestClient(opts.BaseURL, opts.Timeout),
		signer:   signer,
		account:  strings.ToLower(opts.AccountAddress),
		perpDexs: opts.PerpDexs,
		mainnet:  opts.BaseURL == MainnetAPIURL,
	}
	e.prevNonce.Store(time.Now().UnixMilli())
	return e
}

// Account returns the lower-cased account of record
func (e *Exchange) Account() string {
	return e.account
}

// PerpDexs returns the dex routing list this client addresses
func (e *Exchange) PerpDexs() []string {
	return e.perpDexs
}

// UpdateLeverage sets the leverage for a coin, cross or isolated
func (e *Exchange) UpdateLeverage(ctx context.Context, leverage int, coin string, isCross bool) (json.RawMessage, error) {
	asset, err := e.resolveAsset(ctx, coin)
	if err != nil {
		return nil, err
	}

	action := leverageAction{
		Type:     "updateLeverage",
		Asset:    asset.id,
		IsCross:  isCross,
		Leverage: leverage,
	}
	return e.postAction(ctx, action)
}

// Order places a single limit order, attaching the builder fee when set
func (e *Exchange) Order(ctx context.Context, req OrderRequest, builder *BuilderInfo) (json.RawMessage, error) {
	asset, err := e.resolveAsset(ctx, req.Coin)
	if err != nil {
		return nil, err
	}

	wire, err := orderToWire(req, asset.id)
	if err != nil {
		return nil, fmt.Errorf("failed to convert order: %w", err)
	}

	action := orderAction{
		Type:     "order",
		Orders:   []orderWire{wire},
		Grouping: "na",
		Builder:  builder,
	}
	return e.postAction(ctx, action)
}

// MarketOpen opens a position with a market order, expressed as an
// aggressive IoC limit order at the slippage-adjusted price. px overrides
// the mid-price fetch when non-nil.
func (e *Exchange) MarketOpen(ctx context.Context, coin string, isBuy bool, sz float64, px *float64, slippage float64, builder *BuilderInfo) (json.RawMessage, error) {
	price, err := e.slippagePrice(ctx, coin, isBuy, slippage, px)
	if err != nil {
		return nil, err
	}

	req := OrderRequest{
		Coin:      coin,
		IsBuy:     isBuy,
		Sz:        sz,
		LimitPx:   price,
		OrderType: OrderType{Limit: &LimitOrderType{Tif: TifIoc}},
	}
	return e.Order(ctx, req, builder)
}

// MarketClose closes a position with a reduce-only market order. A nil sz
// closes the entire position as reported by the venue.
func (e *Exchange) MarketClose(ctx context.Context, coin string, sz, px *float64, slippage float64, builder *BuilderInfo) (json.RawMessage, error) {
	szi, err := e.positionSize(ctx, coin)
	if err != nil {
		return nil, err
	}

	size := math.Abs(szi)
	if sz != nil {
		size = *sz
	}
	isBuy := szi < 0

	price, err := e.slippagePrice(ctx, coin, isBuy, slippage, px)
	if err != nil {
		return nil, err
	}

	req := OrderRequest{
		Coin:       coin,
		IsBuy:      isBuy,
		Sz:         size,
		LimitPx:    price,
		OrderType:  OrderType{Limit: &LimitOrderType{Tif: TifIoc}},
		ReduceOnly: true,
	}
	return e.Order(ctx, req, builder)
}

// Cancel cancels a single order by order ID
func (e *Exchange) Cancel(ctx context.Context, coin string, oid int64) (json.RawMessage, error) {
	asset, err := e.resolveAsset(ctx, coin)
	if err != nil {
		return nil, err
	}

	action := cancelAction{
		Type:    "cancel",
		Cancels: []cancelWire{{Asset: asset.id, Oid: oid}},
	}
	return e.postAction(ctx, action)
}

// EnableDexAbstraction enables the account to trade across the builder
// dex namespaces it is routed to
func (e *Exchange) EnableDexAbstraction(ctx context.Context) (json.RawMessage, error) {
	return e.postAction(ctx, enableDexAction{Type: "agentEnableDexAbstraction"})
}

// slippagePrice converts a reference price (explicit or fetched mid) into
// the aggressive limit price for a market order: slippage applied in the
// taker direction, rounded to 5 significant figures, then to the asset's
// decimal budget.
func (e *Exchange) slippagePrice(ctx context.Context, coin string, isBuy bool, slippage float64, px *float64) (float64, error) {
	asset, err := e.resolveAsset(ctx, coin)
	if err != nil {
		return 0, err
	}

	var price float64
	if px != nil {
		price = *px
	} else {
		mids, err := e.allMids(ctx, dexOf(coin))
		if err != nil {
			return 0, err
		}
		mid, ok := mids[coin]
		if !ok {
			// Some dexs report builder coins without the namespace prefix
			if i := strings.Index(coin, ":"); i >= 0 {
				mid, ok = mids[coin[i+1:]]
			}
		}
		if !ok {
			return 0, fmt.Errorf("mid price not found for coin: %s", coin)
		}
		price = mid
	}

	if isBuy {
		price *= 1 + slippage
	} else {
		price *= 1 - slippage
	}

	price = roundToSigfigs(price, 5)

	baseDecimals := 6
	if asset.isSpot() {
		baseDecimals = 8
	}
	return roundToDecimals(price, baseDecimals-asset.szDecimals), nil
}

// postAction signs an action and posts it to the venue. The raw venue
// body is returned untouched so the gateway can relay it verbatim.
func (e *Exchange) postAction(ctx context.Context, action any) (json.RawMessage, error) {
	nonce := e.nextNonce()

	sig, err := crypto.SignL1Action(e.signer, action, nonce, e.mainnet)
	if err != nil {
		return nil, fmt.Errorf("failed to sign action: %w", err)
	}

	payload := map[string]any{
		"action":       action,
		"nonce":        nonce,
		"signature":    sig,
		"vaultAddress": nil,
	}
	return e.rest.post(ctx, "/exchange", payload, nil)
}

// nextNonce returns a strictly increasing millisecond nonce. The venue
// requires each nonce to be unused and close to the current timestamp;
// the CAS loop keeps it monotonic even under concurrent use.
func (e *Exchange) nextNonce() int64 {
	for {
		prev := e.prevNonce.Load()
		curr := time.Now().UnixMilli()
		if curr <= prev {
			curr = prev + 1
		}
		if e.prevNonce.CompareAndSwap(prev, curr) {
			return curr
		}
	}
}
