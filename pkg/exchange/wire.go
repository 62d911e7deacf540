package exchange

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FloatToWire renders a float the way the venue expects: a decimal string
// with at most 8 fractional digits and no trailing zeros. Values that do
// not survive the 8-decimal rounding are rejected rather than silently
// altered, since a mangled price or size would sign a different order
// than the caller intended.
func FloatToWire(f float64) (string, error) {
	rounded := strconv.FormatFloat(f, 'f', 8, 64)
	check, err := strconv.ParseFloat(rounded, 64)
	if err != nil || math.Abs(check-f) >= 1e-12 {
		return "", fmt.Errorf("float %v loses precision in wire conversion", f)
	}

	out := strings.TrimRight(rounded, "0")
	out = strings.TrimRight(out, ".")
	if out == "" || out == "-" {
		out = "0"
	}
	return out, nil
}

// roundToSigfigs rounds to the given number of significant figures,
// mirroring the venue's price normalization.
func roundToSigfigs(f float64, sigfigs int) float64 {
	if f == 0 {
		return 0
	}
	magnitude := math.Ceil(math.Log10(math.Abs(f)))
	power := float64(sigfigs) - magnitude
	scale := math.Pow(10, power)
	return math.Round(f*scale) / scale
}

// roundToDecimals rounds to a fixed number of fractional digits.
func roundToDecimals(f float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(f*scale) / scale
}

func orderToWire(req OrderRequest, asset int) (orderWire, error) {
	px, err := FloatToWire(req.LimitPx)
	if err != nil {
		return orderWire{}, fmt.Errorf("limit price: %w", err)
	}
	sz, err := FloatToWire(req.Sz)
	if err != nil {
		return orderWire{}, fmt.Errorf("size: %w", err)
	}

	return orderWire{
		Asset:      asset,
		IsBuy:      req.IsBuy,
		LimitPx:    px,
		Sz:         sz,
		ReduceOnly: req.ReduceOnly,
		OrderType:  orderTypeWire{Limit: req.OrderType.Limit},
	}, nil
}
