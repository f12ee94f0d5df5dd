package models

import "time"

// Stats summarises what the trade store currently holds.
type Stats struct {
	TradeCount int64      `json:"tradeCount"`
	AssetCount int64      `json:"assetCount"`
	FirstTrade *time.Time `json:"firstTrade,omitempty"`
	LastTrade  *time.Time `json:"lastTrade,omitempty"`
}
