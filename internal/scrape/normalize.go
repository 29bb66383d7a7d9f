package scrape

import (
	"math"
	"strconv"
	"strings"

	"github.com/bishal-2630/Nepse-Scrapper/internal/model"
	"go.uber.org/zap"
)

// Candidate field names per logical field, probed in order. Sources disagree
// on naming; the first present, non-sentinel value wins.
var (
	symbolKeys    = []string{"symbol", "stockSymbol", "ticker", "scrip"}
	nameKeys      = []string{"securityName", "companyName", "name", "security"}
	ltpKeys       = []string{"ltp", "lastTradedPrice", "lastPrice", "cp", "closePrice", "close_price"}
	prevCloseKeys = []string{"previousClose", "prevClose", "previousPrice", "previous_close"}
	pointKeys     = []string{"pointChange", "change", "difference", "point_change"}
	percentKeys   = []string{"percentageChange", "percentChange", "perChange", "changePercent", "percentage_change"}
)

// Normalizer converts heterogeneous raw records into canonical observation
// records. It is pure over its input; records it cannot salvage are dropped
// and counted rather than silently discarded.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize maps raw records to observation records. A record is dropped when
// no symbol or no last-traded price can be resolved; the count of dropped
// records is returned for observability.
func (n *Normalizer) Normalize(raw []RawRecord) ([]model.ObservationRecord, int) {
	out := make([]model.ObservationRecord, 0, len(raw))
	dropped := 0

	for _, rec := range raw {
		symbol := strings.ToUpper(strings.TrimSpace(probeString(rec, symbolKeys)))
		ltp := probeNumber(rec, ltpKeys)

		if symbol == "" || ltp == nil {
			dropped++
			n.logger.Debug("Dropping unresolvable record",
				zap.String("symbol", symbol),
				zap.Bool("has_ltp", ltp != nil))
			continue
		}

		obs := model.ObservationRecord{
			Symbol:           symbol,
			SecurityName:     strings.TrimSpace(probeString(rec, nameKeys)),
			LastTradedPrice:  *ltp,
			PreviousClose:    probeNumber(rec, prevCloseKeys),
			PointChange:      probeNumber(rec, pointKeys),
			PercentageChange: probeNumber(rec, percentKeys),
		}
		deriveChanges(&obs)
		out = append(out, obs)
	}

	if dropped > 0 {
		n.logger.Warn("Dropped unresolvable records during normalization",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(out)))
	}
	return out, dropped
}

// deriveChanges fills in point and percentage change from last price and
// previous close when the source omits them. A zero previous close yields nil
// rather than an infinite percentage.
func deriveChanges(obs *model.ObservationRecord) {
	prev := obs.PreviousClose
	if prev == nil {
		return
	}
	if obs.PointChange == nil {
		point := round2(obs.LastTradedPrice - *prev)
		obs.PointChange = &point
	}
	if obs.PercentageChange == nil && *prev != 0 {
		pct := round2((obs.LastTradedPrice - *prev) / *prev * 100)
		obs.PercentageChange = &pct
	}
}

// probeString returns the first non-empty, non-sentinel string value among
// the candidate keys.
func probeString(rec RawRecord, keys []string) string {
	for _, key := range keys {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if isSentinel(s) {
			continue
		}
		return s
	}
	return ""
}

// probeNumber returns the first parseable numeric value among the candidate
// keys, or nil.
func probeNumber(rec RawRecord, keys []string) *float64 {
	for _, key := range keys {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			if math.IsNaN(t) || math.IsInf(t, 0) {
				continue
			}
			f := t
			return &f
		case int:
			f := float64(t)
			return &f
		case int64:
			f := float64(t)
			return &f
		case string:
			if f := parseNumber(t); f != nil {
				return f
			}
		}
	}
	return nil
}

// parseNumber parses messy numeric strings: thousands separators, currency
// prefixes, percent signs, and parenthesis-style negatives like "(12.3)".
// Unparseable input yields nil, never an error.
func parseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if isSentinel(s) {
		return nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	replacer := strings.NewReplacer(",", "", "%", "", "Rs.", "", "Rs", "", "रू", "")
	s = strings.TrimSpace(replacer.Replace(s))
	if s == "" {
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if negative {
		f = -f
	}
	return &f
}

func isSentinel(s string) bool {
	switch strings.ToUpper(s) {
	case "", "-", "--", "N/A", "NA", "NULL":
		return true
	}
	return false
}
