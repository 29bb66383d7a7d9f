package scrape

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSyntheticFallbackSourceShape(t *testing.T) {
	src := NewSyntheticFallbackSource(42, zap.NewNop())

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, len(syntheticSymbols))

	for _, rec := range records {
		prev := rec["previousClose"].(float64)
		ltp := rec["ltp"].(float64)
		pct := rec["percentageChange"].(float64)

		assert.NotEmpty(t, rec["symbol"])
		assert.Greater(t, prev, 0.0)
		assert.GreaterOrEqual(t, pct, -5.0)
		assert.LessOrEqual(t, pct, 5.0)

		// ltp must be consistent with prev and pct up to cent rounding
		assert.InDelta(t, prev*(1+pct/100), ltp, 0.01)
		assert.InDelta(t, ltp-prev, rec["pointChange"].(float64), 0.011)
	}
}

func TestSyntheticFallbackSourceDeterministicBySeed(t *testing.T) {
	a, err := NewSyntheticFallbackSource(7, zap.NewNop()).Fetch(context.Background())
	require.NoError(t, err)
	b, err := NewSyntheticFallbackSource(7, zap.NewNop()).Fetch(context.Background())
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i]["symbol"], b[i]["symbol"])
		assert.Equal(t, a[i]["ltp"], b[i]["ltp"])
	}
}

func TestSyntheticRecordsSurviveNormalization(t *testing.T) {
	raw, err := NewSyntheticFallbackSource(1, zap.NewNop()).Fetch(context.Background())
	require.NoError(t, err)

	records, dropped := NewNormalizer(zap.NewNop()).Normalize(raw)
	assert.Equal(t, 0, dropped)
	require.Len(t, records, len(syntheticSymbols))

	for _, rec := range records {
		assert.NotNil(t, rec.PreviousClose)
		assert.NotNil(t, rec.PercentageChange)
		assert.False(t, math.IsNaN(rec.LastTradedPrice))
	}
}
