package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Asset ID layout on the venue: perps on the default dex are indexed from
// zero, spot pairs from 10000, and builder-deployed perp dexs each own a
// 10000-wide band starting at 110000 (100000 + dexIndex*10000, where the
// default dex occupies index 0).
const (
	spotAssetOffset = 10000
	builderDexBase  = 100000
	builderDexSpan  = 10000
)

type assetInfo struct {
	id         int
	szDecimals int
}

func (a assetInfo) isSpot() bool {
	return a.id >= spotAssetOffset && a.id < builderDexBase
}

type metaResponse struct {
	Universe []struct {
		Name       string `json:"name"`
		SzDecimals int    `json:"szDecimals"`
	} `json:"universe"`
}

type clearinghouseState struct {
	AssetPositions []struct {
		Position struct {
			Coin string `json:"coin"`
			Szi  string `json:"szi"`
		} `json:"position"`
	} `json:"assetPositions"`
}

// dexOf extracts the sub-venue namespace from a coin name:
// "xyz:GOLD" lives on dex "xyz", a bare "BTC" on the default dex.
func dexOf(coin string) string {
	if i := strings.Index(coin, ":"); i >= 0 {
		return coin[:i]
	}
	return ""
}

// loadAssets fetches the universe of every routed dex and builds the
// coin-to-asset table. Fetched lazily on first use and kept only for the
// lifetime of this client, which is a single request.
func (e *Exchange) loadAssets(ctx context.Context) error {
	if e.assets != nil {
		return nil
	}

	dexs := e.perpDexs
	if len(dexs) == 0 {
		dexs = []string{""}
	}

	assets := make(map[string]assetInfo)
	for i, dex := range dexs {
		req := map[string]any{"type": "meta"}
		if dex != "" {
			req["dex"] = dex
		}

		var meta metaResponse
		if _, err := e.rest.post(ctx, "/info", req, &meta); err != nil {
			return fmt.Errorf("failed to fetch meta for dex %q: %w", dex, err)
		}

		offset := 0
		if i > 0 {
			offset = builderDexBase + i*builderDexSpan
		}
		for j, u := range meta.Universe {
			info := assetInfo{id: offset + j, szDecimals: u.SzDecimals}
			assets[u.Name] = info
			// Builder-dex coins are addressed with the namespace prefix
			if dex != "" && !strings.Contains(u.Name, ":") {
				assets[dex+":"+u.Name] = info
			}
		}
	}

	e.assets = assets
	return nil
}

func (e *Exchange) resolveAsset(ctx context.Context, coin string) (assetInfo, error) {
	if err := e.loadAssets(ctx); err != nil {
		return assetInfo{}, err
	}
	info, ok := e.assets[coin]
	if !ok {
		return assetInfo{}, fmt.Errorf("unknown coin: %s", coin)
	}
	return info, nil
}

// allMids fetches current mid prices for a dex
func (e *Exchange) allMids(ctx context.Context, dex string) (map[string]float64, error) {
	req := map[string]any{"type": "allMids"}
	if dex != "" {
		req["dex"] = dex
	}

	var raw map[string]string
	if _, err := e.rest.post(ctx, "/info", req, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch mid prices: %w", err)
	}

	mids := make(map[string]float64, len(raw))
	for coin, s := range raw {
		px, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		mids[coin] = px
	}
	return mids, nil
}

// positionSize looks up the account's signed position size for a coin
func (e *Exchange) positionSize(ctx context.Context, coin string) (float64, error) {
	req := map[string]any{
		"type": "clearinghouseState",
		"user": e.account,
	}
	if dex := dexOf(coin); dex != "" {
		req["dex"] = dex
	}

	var state clearinghouseState
	if _, err := e.rest.post(ctx, "/info", req, &state); err != nil {
		return 0, fmt.Errorf("failed to fetch clearinghouse state: %w", err)
	}

	for _, ap := range state.AssetPositions {
		if ap.Position.Coin != coin {
			continue
		}
		szi, err := strconv.ParseFloat(ap.Position.Szi, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid position size %q: %w", ap.Position.Szi, err)
		}
		return szi, nil
	}

	return 0, fmt.Errorf("no position found for coin: %s", coin)
}
