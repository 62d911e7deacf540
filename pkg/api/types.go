package api

// Request schemas for the /l1 routes. Every operation inherits the base
// fields; the length minimums are coarse sanity floors, not full format
// checks (the signing layer rejects malformed keys properly).

// BaseRequest carries the per-request signing identity inputs
type BaseRequest struct {
	AgentPrivateKey string `json:"agentPrivateKey" validate:"required,min=32"`
	WalletAddress   string `json:"walletAddress" validate:"required,min=40"`
}

// Required non-string fields are pointers so that an omitted field fails
// validation while legitimate zero values (isBuy:false, slippage:0) pass
// through untouched.

type UpdateLeverageRequest struct {
	BaseRequest
	Coin     string `json:"coin" validate:"required"`
	Leverage *int   `json:"leverage" validate:"required"`
	IsCross  bool   `json:"isCross"`
}

type LimitOrderRequest struct {
	BaseRequest
	Coin        string   `json:"coin" validate:"required"`
	IsBuy       *bool    `json:"isBuy" validate:"required"`
	Size        *float64 `json:"size" validate:"required"`
	LimitPrice  *float64 `json:"limitPrice" validate:"required"`
	TimeInForce *string  `json:"timeInForce"` // nil defaults to "Gtc"
	ReduceOnly  bool     `json:"reduceOnly"`
}

type MarketOrderRequest struct {
	BaseRequest
	Coin     string   `json:"coin" validate:"required"`
	IsBuy    *bool    `json:"isBuy" validate:"required"`
	Size     *float64 `json:"size" validate:"required"`
	Slippage *float64 `json:"slippage"` // nil defaults to 0.01
	Price    *float64 `json:"price"`    // overrides the mid-price fetch
}

type MarketCloseRequest struct {
	BaseRequest
	Coin     string   `json:"coin" validate:"required"`
	Size     *float64 `json:"size"`     // nil closes the entire position
	Slippage *float64 `json:"slippage"` // nil defaults to 0.01
	Price    *float64 `json:"price"`
}

type CancelOrderRequest struct {
	BaseRequest
	Coin    string `json:"coin" validate:"required"`
	OrderID *int64 `json:"orderId" validate:"required"`
}

// ErrorResponse is the shape of every locally generated error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// FieldError reports one failed validation constraint
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidationErrorResponse carries field-level detail for 422 replies
type ValidationErrorResponse struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields"`
}
