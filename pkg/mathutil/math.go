package mathutil

import (
	"math"

	"github.com/shopspring/decimal"
)

// BigOne represents a single unit of bitcoin expressed in satoshis.
var BigOne = uint64(math.Pow10(8))

func init() {
	decimal.DivisionPrecision = 8
}

// BtcToSats converts an amount expressed in decimal BTC to integer satoshis.
// The conversion truncates instead of rounding: overshooting by a fraction of
// a satoshi would silently overpay fees.
func BtcToSats(btc decimal.Decimal) uint64 {
	sats := btc.Mul(decimal.NewFromInt(int64(BigOne))).Truncate(0)
	return uint64(sats.IntPart())
}

// SatsToBtc converts an amount in satoshis to its decimal BTC representation.
func SatsToBtc(sats uint64) decimal.Decimal {
	return decimal.NewFromInt(int64(sats)).Div(decimal.NewFromInt(int64(BigOne)))
}
