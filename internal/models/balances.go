package models

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// Balances maps an asset symbol to its net signed quantity.
type Balances map[string]decimal.Decimal

// Symbols returns the asset symbols in lexical order.
func (b Balances) Symbols() []string {
	symbols := make([]string, 0, len(b))
	for s := range b {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// MarshalJSON writes balances as a flat object of symbol to JSON number.
func (b Balances) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.Number, len(b))
	for s, v := range b {
		out[s] = json.Number(v.String())
	}
	return json.Marshal(out)
}
