package ledger

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"gitlab.com/zlyzol/coinledger/internal/models"
	"gitlab.com/zlyzol/coinledger/internal/timestamp"
)

// Record is one raw row of a trade-history export. Columns missing from the
// file decode as empty strings.
type Record struct {
	UTCTime       string `csv:"UTC_Time" json:"UTC_Time" validate:"required,trade_time"`
	Operation     string `csv:"Operation" json:"Operation" validate:"required"`
	Market        string `csv:"Market" json:"Market" validate:"required,market_pair"`
	BuySellAmount string `csv:"Buy/Sell Amount" json:"Buy/Sell Amount" validate:"required,unsigned_decimal"`
	Price         string `csv:"Price" json:"Price" validate:"required,decimal_number"`
}

// ValidationFailure pairs a rejected row with the reasons it was rejected.
// Line is the 1-based line of the row in the uploaded file.
type ValidationFailure struct {
	Line    int      `json:"line"`
	Row     Record   `json:"row"`
	Reasons []string `json:"reasons"`
}

// Decimal bounds every store can hold exactly: Decimal128 carries 34
// significant digits, and a small exponent keeps balance arithmetic cheap.
const (
	maxDecimalDigits   = 34
	maxDecimalExponent = 64
)

var reasons = map[string]string{
	"required":         "%s is required",
	"trade_time":       "%s is not a valid timestamp",
	"market_pair":      "%s must be a BASE/QUOTE pair",
	"unsigned_decimal": "%s must be a non-negative number",
	"decimal_number":   "%s must be a number",
}

// Normalizer turns raw rows into trades. It is safe for concurrent use.
type Normalizer struct {
	validate *validator.Validate
}

func NewNormalizer() *Normalizer {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("csv")
	})
	_ = validate.RegisterValidation("trade_time", func(fl validator.FieldLevel) bool {
		_, err := timestamp.Parse(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("market_pair", func(fl validator.FieldLevel) bool {
		_, _, ok := splitMarket(fl.Field().String())
		return ok
	})
	_ = validate.RegisterValidation("decimal_number", func(fl validator.FieldLevel) bool {
		_, err := parseDecimal(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("unsigned_decimal", func(fl validator.FieldLevel) bool {
		d, err := parseDecimal(fl.Field().String())
		return err == nil && !d.IsNegative()
	})
	return &Normalizer{validate: validate}
}

// Normalize validates rec and converts it into a trade. A non-nil failure
// means the row must not be stored.
func (n *Normalizer) Normalize(line int, rec Record) (models.Trade, *ValidationFailure) {
	raw := rec
	rec = rec.trimmed()
	if err := n.validate.Struct(rec); err != nil {
		return models.Trade{}, &ValidationFailure{
			Line:    line,
			Row:     raw,
			Reasons: describe(err),
		}
	}

	// Every field below has passed validation, so parsing cannot fail.
	utc, _ := timestamp.Parse(rec.UTCTime)
	base, quote, _ := splitMarket(rec.Market)
	amount, _ := parseDecimal(rec.BuySellAmount)
	price, _ := parseDecimal(rec.Price)

	return models.Trade{
		UTCTime:       utc,
		Operation:     rec.Operation,
		BaseCoin:      base,
		QuoteCoin:     quote,
		BuySellAmount: amount,
		Price:         price,
	}, nil
}

func (r Record) trimmed() Record {
	return Record{
		UTCTime:       strings.TrimSpace(r.UTCTime),
		Operation:     strings.TrimSpace(r.Operation),
		Market:        strings.TrimSpace(r.Market),
		BuySellAmount: strings.TrimSpace(r.BuySellAmount),
		Price:         strings.TrimSpace(r.Price),
	}
}

func describe(err error) []string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		format, ok := reasons[fe.Tag()]
		if !ok {
			format = "%s is invalid"
		}
		out = append(out, fmt.Sprintf(format, fe.Field()))
	}
	return out
}

// splitMarket splits "BASE/QUOTE" into its two non-empty parts.
func splitMarket(market string) (base, quote string, ok bool) {
	parts := strings.Split(market, "/")
	if len(parts) != 2 {
		return "", "", false
	}
	base, quote = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	return base, quote, base != "" && quote != ""
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, err
	}
	if d.NumDigits() > maxDecimalDigits {
		return decimal.Decimal{}, errors.Errorf("%s has more than %d significant digits", s, maxDecimalDigits)
	}
	if exp := d.Exponent(); exp > maxDecimalExponent || exp < -maxDecimalExponent {
		return decimal.Decimal{}, errors.Errorf("%s exponent is out of range", s)
	}
	return d, nil
}
