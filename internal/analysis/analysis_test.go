package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/corepipe/internal/marketdata"
	"github.com/sawpanic/corepipe/internal/scoring"
)

func rampBars(n int, start, step float64) []marketdata.Bar {
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]marketdata.Bar, n)
	for i := range bars {
		c := start + step*float64(i)
		bars[i] = marketdata.Bar{
			Date:  day.AddDate(0, 0, i).Format(marketdata.DateLayout),
			Open:  c,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
		}
	}
	return bars
}

func TestSMA(t *testing.T) {
	v, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, v, 1e-9)

	_, err = SMA([]float64{1, 2}, 3)
	assert.Error(t, err)
}

func TestRSI(t *testing.T) {
	up := marketdata.Closes(rampBars(30, 10, 1))
	v, err := RSI(up, 14)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)

	down := marketdata.Closes(rampBars(30, 100, -1))
	v, err = RSI(down, 14)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, v, 1e-9)

	flat := marketdata.Closes(rampBars(30, 10, 0))
	v, err = RSI(flat, 14)
	require.NoError(t, err)
	assert.Equal(t, 50.0, v)

	_, err = RSI(up[:14], 14)
	assert.Error(t, err)
}

func TestAvgDailyMove(t *testing.T) {
	v, err := AvgDailyMove([]float64{100, 102, 99.96}, 2)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v, 1e-9)
}

func TestRange52w_UsesLastYear(t *testing.T) {
	bars := rampBars(300, 10, 1)
	low, high, err := Range52w(bars)
	require.NoError(t, err)
	assert.Equal(t, bars[300-TradingDaysPerYear].Low, low)
	assert.Equal(t, bars[299].High, high)
}

func TestFromBars_TrendCandidate(t *testing.T) {
	bars := rampBars(260, 50, 0.5)
	asOf := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := FromBars("EQNR.OL", asOf, bars, DefaultConfig())

	assert.Equal(t, bars[259].Close, in.Close)
	require.Contains(t, in.SMA, 50)
	require.Contains(t, in.SMA, 200)
	require.NotNil(t, in.RSI)
	require.NotNil(t, in.AvgDailyMove)
	require.NotNil(t, in.Range52w)

	v := scoring.Default().Score(in)
	assert.Equal(t, scoring.ProfileTrend, v.Profile)
	assert.True(t, v.HardPass)
}

func TestFromBars_ShortHistoryLeavesGaps(t *testing.T) {
	asOf := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := FromBars("NEW", asOf, rampBars(30, 10, 1), DefaultConfig())
	assert.NotContains(t, in.SMA, 200)
	assert.Nil(t, in.Range52w)

	v := scoring.Default().Score(in)
	assert.False(t, v.HardPass)
	assert.Equal(t, scoring.ProfileNone, v.Profile)
}

func TestFromBars_IgnoresBarsAfterAsOf(t *testing.T) {
	bars := rampBars(10, 10, 1)
	asOf, _ := time.Parse(marketdata.DateLayout, bars[4].Date)
	in := FromBars("X", asOf, bars, DefaultConfig())
	assert.Equal(t, bars[4].Close, in.Close)
}

func TestFromBars_NoBars(t *testing.T) {
	in := FromBars("X", time.Now(), nil, DefaultConfig())
	assert.Zero(t, in.Close)
	assert.Equal(t, []string{scoring.ReasonMissingClose}, scoring.Default().Score(in).Reasons)
}

type failingBars struct{}

func (failingBars) Name() string { return "failing" }

func (failingBars) DailyBars(context.Context, string, time.Time, time.Time) ([]marketdata.Bar, error) {
	return nil, &marketdata.ProviderError{Provider: "failing", Symbol: "X", Err: fmt.Errorf("HTTP 500")}
}

func TestBarsProvider_PropagatesProviderFailure(t *testing.T) {
	_, err := NewBarsProvider(failingBars{}, DefaultConfig()).CandidateInput(context.Background(), "X", time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, marketdata.ErrProvider))
}

func TestBarsProvider_StaticBars(t *testing.T) {
	bars := rampBars(260, 50, 0.5)
	asOf, _ := time.Parse(marketdata.DateLayout, bars[259].Date)
	p := NewBarsProvider(&marketdata.Static{Bars: map[string][]marketdata.Bar{"EQNR.OL": bars}}, DefaultConfig())

	in, err := p.CandidateInput(context.Background(), "EQNR.OL", asOf)
	require.NoError(t, err)
	assert.Equal(t, bars[259].Close, in.Close)
}
