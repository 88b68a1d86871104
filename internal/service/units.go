package service

import "github.com/shopspring/decimal"

// usdCentsToUnits converts a USD-cent amount into token base units for a
// dollar-pegged stablecoin. With 6 token decimals one cent is 10^4 units.
func usdCentsToUnits(cents int64, tokenDecimals int) decimal.Decimal {
	return decimal.New(cents, int32(tokenDecimals-2))
}
