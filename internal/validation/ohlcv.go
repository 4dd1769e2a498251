package validation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
)

// OHLCVIssueKind classifies a single data-quality finding raised while
// validating a candle series.
type OHLCVIssueKind string

const (
	IssueInvertedRange  OHLCVIssueKind = "inverted_high_low"
	IssueHighBelowBody  OHLCVIssueKind = "high_below_body"
	IssueLowAboveBody   OHLCVIssueKind = "low_above_body"
	IssueMissingValues  OHLCVIssueKind = "missing_values"
	IssueNegativePrice  OHLCVIssueKind = "negative_price"
	IssueNegativeVolume OHLCVIssueKind = "negative_volume"
	IssueUnsortedSeries OHLCVIssueKind = "unsorted_series"
	IssueDuplicateBar   OHLCVIssueKind = "duplicate_timestamp"
	IssueLargeGap       OHLCVIssueKind = "large_gap"
)

// OHLCVIssue records one data-quality finding. Corrected is true when
// ValidateOHLCV repaired the issue in place; issues with Corrected false are
// left in the returned series and should downgrade the ticker to FAIL.
type OHLCVIssue struct {
	Kind      OHLCVIssueKind
	Detail    string
	Corrected bool
}

// ValidateOHLCV checks a candle series for the data-quality problems §7.2
// names — missing columns, negative values, high<low, large gaps — and
// corrects what is safe to correct in place: it swaps high/low when
// inverted, widens high/low to cover the open/close body, forward-fills
// missing candles, zeroes negative volume, takes the absolute value of
// negative prices, drops duplicate timestamps (last write wins), and sorts
// monotonically. It never mutates the caller's series; it returns a new one.
//
// Uncorrectable issues — currently only large gaps — are returned alongside
// the corrected series rather than fixed, since fabricating bars to paper
// over a missing stretch of history would misrepresent the data. Callers
// that require a complete history should treat any returned issue with
// Corrected == false as grounds to downgrade the ticker.
//
// ValidateOHLCV is idempotent: running it again on its own output reproduces
// the same series and the same (already-corrected) issue list, satisfying
// the validate(validate(x)) == validate(x) round-trip property.
func ValidateOHLCV(series *domain.OHLCVSeries) (*domain.OHLCVSeries, []OHLCVIssue, error) {
	if series == nil || len(series.Candles) == 0 {
		return series, nil, nil
	}

	candles := make([]domain.Candle, len(series.Candles))
	copy(candles, series.Candles)

	var issues []OHLCVIssue

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	if !sort.SliceIsSorted(series.Candles, func(i, j int) bool {
		return series.Candles[i].Timestamp.Before(series.Candles[j].Timestamp)
	}) {
		issues = append(issues, OHLCVIssue{Kind: IssueUnsortedSeries, Detail: "candles were not in timestamp order", Corrected: true})
	}

	candles, dupCount := dedupeByTimestamp(candles)
	if dupCount > 0 {
		issues = append(issues, OHLCVIssue{
			Kind:      IssueDuplicateBar,
			Detail:    fmt.Sprintf("%d duplicate timestamp(s) collapsed, last write kept", dupCount),
			Corrected: true,
		})
	}

	var missingCount, negPriceCount, negVolCount, invertedCount, highBelowCount, lowAboveCount int
	for i := range candles {
		c := &candles[i]

		if isMissing(c) {
			missingCount++
			continue // forward-fill pass below handles these
		}

		for _, price := range []*decimal.Decimal{&c.Open, &c.High, &c.Low, &c.Close} {
			if price.IsNegative() {
				negPriceCount++
				*price = price.Abs()
			}
		}
		if c.Volume.IsNegative() {
			negVolCount++
			c.Volume = decimal.Zero
		}

		body := []decimal.Decimal{c.Open, c.Close}
		maxBody := decimal.Max(body[0], body[1])
		minBody := decimal.Min(body[0], body[1])

		if c.High.LessThan(c.Low) {
			invertedCount++
			c.High, c.Low = c.Low, c.High
			// Re-derive the body bound after the swap so the widen pass
			// below still sees a consistent High/Low for this bar.
			maxBody = decimal.Max(decimal.Max(c.Open, c.Close), c.High)
			minBody = decimal.Min(decimal.Min(c.Open, c.Close), c.Low)
		}
		if c.High.LessThan(maxBody) {
			highBelowCount++
			c.High = maxBody
		}
		if c.Low.GreaterThan(minBody) {
			lowAboveCount++
			c.Low = minBody
		}
	}

	forwardFillMissing(candles)

	if missingCount > 0 {
		issues = append(issues, OHLCVIssue{
			Kind:      IssueMissingValues,
			Detail:    fmt.Sprintf("%d candle(s) had missing OHLCV fields, forward-filled", missingCount),
			Corrected: true,
		})
	}
	if negPriceCount > 0 {
		issues = append(issues, OHLCVIssue{
			Kind:      IssueNegativePrice,
			Detail:    fmt.Sprintf("%d negative price value(s) corrected to their absolute value", negPriceCount),
			Corrected: true,
		})
	}
	if negVolCount > 0 {
		issues = append(issues, OHLCVIssue{
			Kind:      IssueNegativeVolume,
			Detail:    fmt.Sprintf("%d negative volume value(s) zeroed", negVolCount),
			Corrected: true,
		})
	}
	if invertedCount > 0 {
		issues = append(issues, OHLCVIssue{
			Kind:      IssueInvertedRange,
			Detail:    fmt.Sprintf("%d candle(s) had high < low, swapped", invertedCount),
			Corrected: true,
		})
	}
	if highBelowCount > 0 {
		issues = append(issues, OHLCVIssue{
			Kind:      IssueHighBelowBody,
			Detail:    fmt.Sprintf("%d candle(s) had high below max(open,close), widened", highBelowCount),
			Corrected: true,
		})
	}
	if lowAboveCount > 0 {
		issues = append(issues, OHLCVIssue{
			Kind:      IssueLowAboveBody,
			Detail:    fmt.Sprintf("%d candle(s) had low above min(open,close), widened", lowAboveCount),
			Corrected: true,
		})
	}

	if gapIssue, ok := checkGaps(candles, series.Interval); ok {
		issues = append(issues, gapIssue)
	}

	return &domain.OHLCVSeries{
		Ticker:   series.Ticker,
		Interval: series.Interval,
		Candles:  candles,
	}, issues, nil
}

// isMissing treats a candle whose open, high, low, and close are all the
// decimal zero value as missing rather than a genuine zero-price bar — a
// real market never prices an asset at exactly zero, so an all-zero OHLC
// quadruple is the shape a gap in upstream data takes once decoded.
func isMissing(c *domain.Candle) bool {
	return c.Open.IsZero() && c.High.IsZero() && c.Low.IsZero() && c.Close.IsZero()
}

// forwardFillMissing carries the last known-good OHLC values into any
// missing candle, matching the original system's ffill().bfill() pass: a
// leading run of missing candles (nothing yet to forward-fill from) is
// back-filled from the first known-good bar instead.
func forwardFillMissing(candles []domain.Candle) {
	lastGood := -1
	for i := range candles {
		if isMissing(&candles[i]) {
			continue
		}
		if lastGood == -1 {
			// Back-fill every leading missing candle from this first good one.
			for j := 0; j < i; j++ {
				fillFrom(&candles[j], &candles[i])
			}
		}
		lastGood = i
	}
	for i := range candles {
		if isMissing(&candles[i]) && lastGood != -1 {
			fillFrom(&candles[i], &candles[lastGood])
		}
		if !isMissing(&candles[i]) {
			lastGood = i
		}
	}
}

func fillFrom(dst, src *domain.Candle) {
	dst.Open = src.Close
	dst.High = src.Close
	dst.Low = src.Close
	dst.Close = src.Close
	dst.Volume = decimal.Zero
}

// dedupeByTimestamp collapses candles sharing a timestamp, keeping the last
// one seen (the freshest write, matching ohlcvcache's merge-on-refresh
// semantics). Input must already be sorted by timestamp.
func dedupeByTimestamp(candles []domain.Candle) ([]domain.Candle, int) {
	if len(candles) == 0 {
		return candles, 0
	}
	out := make([]domain.Candle, 0, len(candles))
	dupCount := 0
	for i, c := range candles {
		if i > 0 && c.Timestamp.Equal(candles[i-1].Timestamp) {
			out[len(out)-1] = c
			dupCount++
			continue
		}
		out = append(out, c)
	}
	return out, dupCount
}

// checkGaps flags, but does not correct, any stretch of missing bars longer
// than three intervals — the OHLCVSeries invariant's "no gaps > 3 intervals
// without flag". Fabricating bars to close a multi-interval gap would
// misrepresent history the exchange never reported, so this is the one
// uncorrectable finding ValidateOHLCV returns.
func checkGaps(candles []domain.Candle, interval domain.Interval) (OHLCVIssue, bool) {
	step := interval.Duration()
	if step <= 0 || len(candles) < 2 {
		return OHLCVIssue{}, false
	}

	maxGap := 3 * step
	var worstGaps int
	for i := 1; i < len(candles); i++ {
		gap := candles[i].Timestamp.Sub(candles[i-1].Timestamp)
		if gap > maxGap {
			worstGaps++
		}
	}
	if worstGaps == 0 {
		return OHLCVIssue{}, false
	}
	return OHLCVIssue{
		Kind:      IssueLargeGap,
		Detail:    fmt.Sprintf("%d gap(s) exceed 3 intervals (%s) of missing history", worstGaps, step),
		Corrected: false,
	}, true
}
