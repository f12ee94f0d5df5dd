package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one normalized buy/sell event for a BASE/QUOTE market.
type Trade struct {
	UTCTime       time.Time       `json:"utcTime"`
	Operation     string          `json:"operation"`
	BaseCoin      string          `json:"baseCoin"`
	QuoteCoin     string          `json:"quoteCoin"`
	BuySellAmount decimal.Decimal `json:"buySellAmount"`
	Price         decimal.Decimal `json:"price"`
}

type Trades []Trade
