package analysis

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/sawpanic/corepipe/internal/marketdata"
)

// TradingDaysPerYear is the lookback for the 52-week range
const TradingDaysPerYear = 252

var errInsufficientData = errors.New("not enough data")

// SMA is the simple moving average of the last period prices
func SMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errInsufficientData
	}
	return floats.Sum(prices[len(prices)-period:]) / float64(period), nil
}

// RSI is the Wilder-smoothed relative strength index. It needs period+1 prices.
func RSI(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period+1 {
		return 0, errInsufficientData
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil
		}
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// AvgDailyMove is the mean absolute close-to-close change in percent over
// the last period sessions.
func AvgDailyMove(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period+1 {
		return 0, errInsufficientData
	}
	tail := prices[len(prices)-period-1:]
	sum := 0.0
	for i := 1; i < len(tail); i++ {
		if tail[i-1] <= 0 {
			return 0, errors.New("non-positive price")
		}
		sum += math.Abs(tail[i]/tail[i-1]-1) * 100
	}
	return sum / float64(period), nil
}

// Range52w scans the most recent year of bars for the low and high
func Range52w(bars []marketdata.Bar) (low, high float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errInsufficientData
	}
	start := len(bars) - TradingDaysPerYear
	if start < 0 {
		start = 0
	}
	low, high = math.Inf(1), math.Inf(-1)
	for _, b := range bars[start:] {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return low, high, nil
}
