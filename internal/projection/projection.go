// Package projection は投資シミュレーションの複利計算を提供する。
// 外部依存を持たない決定的な算術のみを扱う。
package projection

import "math"

// Result は複利計算の結果。
type Result struct {
	// FutureValue は期間終了時の予測額。
	FutureValue float64
	// MonthlyInvestment は初期投資額を期間で均等割りした月次積立額。
	MonthlyInvestment float64
}

// Compute は年複利での将来価値と月次積立額を計算する。
//
//	future = initial × (1 + rate/100)^years
//	monthly = initial / (12 × years)  (years > 0 の場合。0なら0)
//
// rateはパーセント値で受け取る（5 → 年率5%）。負のrateは減価として扱う。
func Compute(initial, rate float64, years int) Result {
	future := initial * math.Pow(1+rate/100, float64(years))

	var monthly float64
	if years > 0 {
		monthly = initial / (12 * float64(years))
	}

	return Result{
		FutureValue:       future,
		MonthlyInvestment: monthly,
	}
}
