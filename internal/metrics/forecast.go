package metrics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultForecastMonths is the projection horizon when the caller does not
// specify one.
const DefaultForecastMonths = 3

// forecastWindow is how many trailing months feed the average.
const forecastWindow = 3

// ForecastPoint is one projected future month.
type ForecastPoint struct {
	Month       string
	Revenue     decimal.Decimal
	NetCashflow decimal.Decimal
}

// Forecast projects a flat average of the trailing months forward. The
// trailing window is the last up-to-3 buckets of the series; their mean
// revenue and mean profit are repeated unchanged for each future month, with
// no trend or seasonality adjustment. An empty series forecasts nothing.
func Forecast(series []MonthlyBucket, months int) []ForecastPoint {
	if len(series) == 0 || months <= 0 {
		return nil
	}

	window := series
	if len(window) > forecastWindow {
		window = window[len(window)-forecastWindow:]
	}

	sumRevenue := decimal.Zero
	sumProfit := decimal.Zero
	for _, b := range window {
		sumRevenue = sumRevenue.Add(b.Revenue)
		sumProfit = sumProfit.Add(b.ProfitSimple)
	}
	n := decimal.NewFromInt(int64(len(window)))
	avgRevenue := sumRevenue.Div(n).Round(2)
	avgProfit := sumProfit.Div(n).Round(2)

	last := series[len(series)-1].Month
	out := make([]ForecastPoint, 0, months)
	for i := 1; i <= months; i++ {
		out = append(out, ForecastPoint{
			Month:       AddMonths(last, i),
			Revenue:     avgRevenue,
			NetCashflow: avgProfit,
		})
	}
	return out
}

// AddMonths advances a "YYYY-MM" key by n calendar months, handling year
// rollover.
func AddMonths(ym string, n int) string {
	parts := strings.SplitN(ym, "-", 2)
	year, _ := strconv.Atoi(parts[0])
	month := 1
	if len(parts) == 2 {
		month, _ = strconv.Atoi(parts[1])
	}

	idx := year*12 + (month - 1) + n
	return fmt.Sprintf("%04d-%02d", idx/12, idx%12+1)
}
