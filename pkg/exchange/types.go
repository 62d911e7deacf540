package exchange

import "fmt"

// Time-in-force values the venue accepts for limit orders
const (
	TifGtc = "Gtc" // Good till cancel
	TifIoc = "Ioc" // Immediate or cancel
	TifAlo = "Alo" // Add liquidity only (maker-only)
)

// LimitOrderType configures a resting limit order
type LimitOrderType struct {
	Tif string `json:"tif" msgpack:"tif"`
}

// OrderType selects the order variant. Only limit is supported here;
// market orders are expressed as aggressive IoC limit orders.
type OrderType struct {
	Limit *LimitOrderType `json:"limit,omitempty" msgpack:"limit,omitempty"`
}

// OrderRequest is a validated order before wire conversion
type OrderRequest struct {
	Coin       string
	IsBuy      bool
	Sz         float64
	LimitPx    float64
	OrderType  OrderType
	ReduceOnly bool
}

// BuilderInfo routes a fee share to a third-party builder on each order.
// Fee is in tenths of a basis point (100 = 10bp = 0.1%, the venue cap
// for perp builder fees).
type BuilderInfo struct {
	Builder string `json:"b" msgpack:"b"`
	Fee     int    `json:"f" msgpack:"f"`
}

// Wire formats. Field order matters: the venue recovers the action hash
// from the JSON payload, so msgpack and JSON must serialize identically.

type orderWire struct {
	Asset      int           `json:"a" msgpack:"a"`
	IsBuy      bool          `json:"b" msgpack:"b"`
	LimitPx    string        `json:"p" msgpack:"p"`
	Sz         string        `json:"s" msgpack:"s"`
	ReduceOnly bool          `json:"r" msgpack:"r"`
	OrderType  orderTypeWire `json:"t" msgpack:"t"`
}

type orderTypeWire struct {
	Limit *LimitOrderType `json:"limit,omitempty" msgpack:"limit,omitempty"`
}

type orderAction struct {
	Type     string       `json:"type" msgpack:"type"`
	Orders   []orderWire  `json:"orders" msgpack:"orders"`
	Grouping string       `json:"grouping" msgpack:"grouping"`
	Builder  *BuilderInfo `json:"builder,omitempty" msgpack:"builder,omitempty"`
}

type cancelWire struct {
	Asset int   `json:"a" msgpack:"a"`
	Oid   int64 `json:"o" msgpack:"o"`
}

type cancelAction struct {
	Type    string       `json:"type" msgpack:"type"`
	Cancels []cancelWire `json:"cancels" msgpack:"cancels"`
}

type leverageAction struct {
	Type     string `json:"type" msgpack:"type"`
	Asset    int    `json:"asset" msgpack:"asset"`
	IsCross  bool   `json:"isCross" msgpack:"isCross"`
	Leverage int    `json:"leverage" msgpack:"leverage"`
}

type enableDexAction struct {
	Type string `json:"type" msgpack:"type"`
}

// APIError is a non-2xx venue reply. Status and body are preserved so the
// gateway can propagate them to its caller verbatim.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue returned status %d: %s", e.StatusCode, e.Body)
}
