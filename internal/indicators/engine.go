// Package indicators computes the derived series spec.md §3 and §4.6.1 name,
// as parallel arrays indexed by bar position rather than by timestamp —
// grounded on the "Arena + index" design note (spec.md §9): sharing an index
// with the input series is both faster and makes look-ahead bias impossible
// by construction, since a rolling window at bar i only ever reads
// [i-period, i-1] or [i-period+1, i].
//
// cinar/indicator/v2 supplies EMA, RSI, MACD, and Bollinger the way
// internal/indicators did in the teacher codebase; ADX, ATR, OBV, Donchian,
// CCI, MFI, Williams %R, Stochastic, Keltner, noise-ratio, and dynamic-K have
// no cinar/indicator/v2 analogue (the teacher's own ADX is hand-rolled for
// the same reason) and are computed directly over the parallel arrays here.
package indicators

import (
	"fmt"
	"math"

	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
)

// Config holds the periods the indicator engine uses. Zero values fall back
// to the defaults spec.md §4.6.1 names.
type Config struct {
	BBPeriod       int
	TrendMAPeriod  int // default 50, minimum 20
	ATRPeriod      int
	ADXPeriod      int
	OBVFastPeriod  int
	OBVSlowPeriod  int
	DonchianPeriod int
	NoisePeriod    int
	RSIPeriod      int
	EMAPeriod      int
	MACDFast       int
	MACDSlow       int
	MACDSignal     int
	CCIPeriod      int
	MFIPeriod      int
	WilliamsPeriod int
	StochPeriod    int
	KeltnerPeriod  int
}

// DefaultConfig returns spec.md's named defaults.
func DefaultConfig() Config {
	return Config{
		BBPeriod:       20,
		TrendMAPeriod:  50,
		ATRPeriod:      14,
		ADXPeriod:      14,
		OBVFastPeriod:  5,
		OBVSlowPeriod:  20,
		DonchianPeriod: 20,
		NoisePeriod:    20,
		RSIPeriod:      14,
		EMAPeriod:      20,
		MACDFast:       12,
		MACDSlow:       26,
		MACDSignal:     9,
		CCIPeriod:      20,
		MFIPeriod:      14,
		WilliamsPeriod: 14,
		StochPeriod:    14,
		KeltnerPeriod:  20,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.TrendMAPeriod == 0 {
		c.TrendMAPeriod = d.TrendMAPeriod
	}
	if c.TrendMAPeriod < 20 {
		c.TrendMAPeriod = 20
	}
	if c.BBPeriod == 0 {
		c.BBPeriod = d.BBPeriod
	}
	if c.ATRPeriod == 0 {
		c.ATRPeriod = d.ATRPeriod
	}
	if c.ADXPeriod == 0 {
		c.ADXPeriod = d.ADXPeriod
	}
	if c.OBVFastPeriod == 0 {
		c.OBVFastPeriod = d.OBVFastPeriod
	}
	if c.OBVSlowPeriod == 0 {
		c.OBVSlowPeriod = d.OBVSlowPeriod
	}
	if c.DonchianPeriod == 0 {
		c.DonchianPeriod = d.DonchianPeriod
	}
	if c.NoisePeriod == 0 {
		c.NoisePeriod = d.NoisePeriod
	}
	if c.RSIPeriod == 0 {
		c.RSIPeriod = d.RSIPeriod
	}
	if c.EMAPeriod == 0 {
		c.EMAPeriod = d.EMAPeriod
	}
	if c.MACDFast == 0 {
		c.MACDFast = d.MACDFast
	}
	if c.MACDSlow == 0 {
		c.MACDSlow = d.MACDSlow
	}
	if c.MACDSignal == 0 {
		c.MACDSignal = d.MACDSignal
	}
	if c.CCIPeriod == 0 {
		c.CCIPeriod = d.CCIPeriod
	}
	if c.MFIPeriod == 0 {
		c.MFIPeriod = d.MFIPeriod
	}
	if c.WilliamsPeriod == 0 {
		c.WilliamsPeriod = d.WilliamsPeriod
	}
	if c.StochPeriod == 0 {
		c.StochPeriod = d.StochPeriod
	}
	if c.KeltnerPeriod == 0 {
		c.KeltnerPeriod = d.KeltnerPeriod
	}
	return c
}

// Series is the full set of per-bar derived columns, same length as the
// source series (leading NaNs during warmup, per spec.md §3).
type Series struct {
	Open, High, Low, Close, Volume []float64

	SMA20, StdDev20                  []float64
	BBUpper, BBMiddle, BBLower       []float64
	BBWidth                          []float64
	BBWidthMean20                    []float64
	VolumeMean20                     []float64
	TrendMA                          []float64
	ATR                              []float64
	ADX                              []float64
	OBV, OBVMA5, OBVMA20             []float64
	DonchianHigh                     []float64 // previous-bar rolling max of high; bar i excluded
	NoiseRatio, NoiseRatioMean20     []float64
	DynamicK                         []float64
	RSI                              []float64
	EMA                              []float64
	MACD, MACDSignal, MACDHist       []float64
	CCI                              []float64
	MFI                              []float64
	WilliamsR                        []float64
	StochK, StochD                   []float64
	KeltnerUpper, KeltnerLower       []float64
}

// Service computes indicator Series for OHLCV input. It holds only a logger,
// the way internal/indicators.Service did in the teacher — all state lives
// in the returned Series, never in the Service itself, so one Service is
// safely shared across concurrent backtests.
type Service struct {
	log zerolog.Logger
}

// NewService creates a new indicator service.
func NewService(log zerolog.Logger) *Service {
	return &Service{log: log.With().Str("component", "indicators").Logger()}
}

// Compute runs the full indicator preparation pass of spec.md §4.6.1 once,
// producing O(N) work (cinar's streaming indicators aside, every hand-rolled
// column below is a single left-to-right pass with a bounded window).
func (s *Service) Compute(series *domain.OHLCVSeries, cfg Config) (*Series, error) {
	if series == nil || len(series.Candles) == 0 {
		return nil, fmt.Errorf("indicators: empty series")
	}
	cfg = cfg.normalized()
	n := len(series.Candles)

	out := &Series{
		Open:   series.Opens(),
		High:   series.Highs(),
		Low:    series.Lows(),
		Close:  series.Closes(),
		Volume: series.Volumes(),
	}

	out.SMA20, out.StdDev20 = rollingMeanStdDev(out.Close, cfg.BBPeriod)
	out.BBUpper = make([]float64, n)
	out.BBMiddle = make([]float64, n)
	out.BBLower = make([]float64, n)
	out.BBWidth = make([]float64, n)
	for i := 0; i < n; i++ {
		out.BBMiddle[i] = out.SMA20[i]
		if math.IsNaN(out.SMA20[i]) {
			out.BBUpper[i], out.BBLower[i], out.BBWidth[i] = math.NaN(), math.NaN(), math.NaN()
			continue
		}
		out.BBUpper[i] = out.SMA20[i] + 2*out.StdDev20[i]
		out.BBLower[i] = out.SMA20[i] - 2*out.StdDev20[i]
		if out.SMA20[i] != 0 {
			out.BBWidth[i] = (out.BBUpper[i] - out.BBLower[i]) / out.SMA20[i]
		}
	}
	out.BBWidthMean20, _ = rollingMeanStdDev(out.BBWidth, cfg.BBPeriod)
	out.VolumeMean20, _ = rollingMeanStdDev(out.Volume, cfg.BBPeriod)
	out.TrendMA, _ = rollingMeanStdDev(out.Close, cfg.TrendMAPeriod)

	out.ATR = atr(out.High, out.Low, out.Close, cfg.ATRPeriod)
	out.ADX = adx(out.High, out.Low, out.Close, cfg.ADXPeriod)

	out.OBV = obv(out.Close, out.Volume)
	out.OBVMA5, _ = rollingMeanStdDev(out.OBV, cfg.OBVFastPeriod)
	out.OBVMA20, _ = rollingMeanStdDev(out.OBV, cfg.OBVSlowPeriod)

	out.DonchianHigh = donchianHighExcludingCurrent(out.High, cfg.DonchianPeriod)

	out.NoiseRatio = make([]float64, n)
	for i := 0; i < n; i++ {
		rng := out.High[i] - out.Low[i]
		if rng < 1e-9 {
			rng = 1e-9
		}
		out.NoiseRatio[i] = 1 - math.Abs(out.Open[i]-out.Close[i])/rng
	}
	out.NoiseRatioMean20, _ = rollingMeanStdDev(out.NoiseRatio, cfg.NoisePeriod)
	out.DynamicK = make([]float64, n)
	for i := 0; i < n; i++ {
		k := out.NoiseRatioMean20[i]
		if math.IsNaN(k) {
			out.DynamicK[i] = math.NaN()
			continue
		}
		if k < 0.3 {
			k = 0.3
		}
		if k > 0.7 {
			k = 0.7
		}
		out.DynamicK[i] = k
	}

	out.RSI = cinarRSI(out.Close, cfg.RSIPeriod)
	out.EMA = cinarEMA(out.Close, cfg.EMAPeriod)
	out.MACD, out.MACDSignal, out.MACDHist = cinarMACD(out.Close, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)

	out.CCI = cci(out.High, out.Low, out.Close, cfg.CCIPeriod)
	out.MFI = mfi(out.High, out.Low, out.Close, out.Volume, cfg.MFIPeriod)
	out.WilliamsR = williamsR(out.High, out.Low, out.Close, cfg.WilliamsPeriod)
	out.StochK, out.StochD = stochastic(out.High, out.Low, out.Close, cfg.StochPeriod)
	out.KeltnerUpper, out.KeltnerLower = keltner(out.High, out.Low, out.Close, cfg.KeltnerPeriod)

	return out, nil
}

// Latest returns the last-bar snapshot spec.md §4.3 asks DataCollection to
// compute on the daily series.
func (sr *Series) Latest() domain.IndicatorSnapshot {
	n := len(sr.Close)
	if n == 0 {
		return domain.IndicatorSnapshot{}
	}
	i := n - 1
	return domain.IndicatorSnapshot{
		SMA20:        sr.SMA20[i],
		StdDev20:     sr.StdDev20[i],
		BBUpper:      sr.BBUpper[i],
		BBMiddle:     sr.BBMiddle[i],
		BBLower:      sr.BBLower[i],
		BBWidth:      sr.BBWidth[i],
		EMA:          sr.EMA[i],
		RSI:          sr.RSI[i],
		MACD:         sr.MACD[i],
		MACDSignal:   sr.MACDSignal[i],
		ATR14:        sr.ATR[i],
		ADX14:        sr.ADX[i],
		OBV:          sr.OBV[i],
		CCI:          sr.CCI[i],
		MFI:          sr.MFI[i],
		WilliamsR:    sr.WilliamsR[i],
		StochK:       sr.StochK[i],
		StochD:       sr.StochD[i],
		KeltnerUpper: sr.KeltnerUpper[i],
		KeltnerLower: sr.KeltnerLower[i],
		DonchianHigh: sr.DonchianHigh[i],
		NoiseRatio:   sr.NoiseRatio[i],
		DynamicK:     sr.DynamicK[i],
	}
}

// --- rolling helpers -------------------------------------------------------

// rollingMeanStdDev returns the trailing `period`-bar mean and population
// stdev ending at (and including) bar i. Leading indices before the window
// fills are NaN.
func rollingMeanStdDev(x []float64, period int) (mean, std []float64) {
	n := len(x)
	mean = make([]float64, n)
	std = make([]float64, n)
	for i := 0; i < n; i++ {
		if i+1 < period {
			mean[i], std[i] = math.NaN(), math.NaN()
			continue
		}
		var sum float64
		for j := i - period + 1; j <= i; j++ {
			sum += x[j]
		}
		m := sum / float64(period)
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			d := x[j] - m
			variance += d * d
		}
		mean[i] = m
		std[i] = math.Sqrt(variance / float64(period))
	}
	return
}

func rollingMax(x []float64, period int) []float64 {
	n := len(x)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if i+1 < period {
			out[i] = math.NaN()
			continue
		}
		m := x[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if x[j] > m {
				m = x[j]
			}
		}
		out[i] = m
	}
	return out
}

func rollingMin(x []float64, period int) []float64 {
	n := len(x)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if i+1 < period {
			out[i] = math.NaN()
			continue
		}
		m := x[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if x[j] < m {
				m = x[j]
			}
		}
		out[i] = m
	}
	return out
}

// donchianHighExcludingCurrent is the rolling `period`-bar max of high,
// shifted so bar i sees only [i-period, i-1] — current bar excluded to
// prevent look-ahead bias (spec.md §4.6.1, §9).
func donchianHighExcludingCurrent(high []float64, period int) []float64 {
	n := len(high)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < period {
			out[i] = math.NaN()
			continue
		}
		m := high[i-period]
		for j := i - period + 1; j < i; j++ {
			if high[j] > m {
				m = high[j]
			}
		}
		out[i] = m
	}
	return out
}

func atr(high, low, close []float64, period int) []float64 {
	n := len(high)
	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		if i == 0 {
			tr[i] = high[i] - low[i]
			continue
		}
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	mean, _ := rollingMeanStdDev(tr, period)
	return mean
}

// adx is a hand-rolled Wilder-smoothed Average Directional Index, the same
// way the teacher's internal/indicators/adx.go notes cinar/indicator/v2 has
// no ADX implementation.
func adx(high, low, close []float64, period int) []float64 {
	n := len(high)
	out := make([]float64, n)
	if n < period*2 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		upMove := high[i] - high[i-1]
		downMove := low[i-1] - low[i]
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	smoothTR := wilderSmooth(tr, period)
	smoothPlusDM := wilderSmooth(plusDM, period)
	smoothMinusDM := wilderSmooth(minusDM, period)

	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(smoothTR[i]) || smoothTR[i] == 0 {
			dx[i] = math.NaN()
			continue
		}
		plusDI := 100 * smoothPlusDM[i] / smoothTR[i]
		minusDI := 100 * smoothMinusDM[i] / smoothTR[i]
		sum := plusDI + minusDI
		if sum == 0 {
			dx[i] = 0
			continue
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / sum
	}

	adxVal, _ := rollingMeanStdDev(dx, period)
	return adxVal
}

// wilderSmooth applies Wilder's smoothing (an EMA with alpha=1/period)
// starting once `period` values have accumulated.
func wilderSmooth(x []float64, period int) []float64 {
	n := len(x)
	out := make([]float64, n)
	var sum float64
	for i := 0; i < n; i++ {
		if i < period {
			sum += x[i]
			if i == period-1 {
				out[i] = sum
			} else {
				out[i] = math.NaN()
			}
			continue
		}
		out[i] = out[i-1] - out[i-1]/float64(period) + x[i]
	}
	return out
}

func obv(close, volume []float64) []float64 {
	n := len(close)
	out := make([]float64, n)
	for i := 1; i < n; i++ {
		switch {
		case close[i] > close[i-1]:
			out[i] = out[i-1] + volume[i]
		case close[i] < close[i-1]:
			out[i] = out[i-1] - volume[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

func cci(high, low, close []float64, period int) []float64 {
	n := len(high)
	tp := make([]float64, n)
	for i := 0; i < n; i++ {
		tp[i] = (high[i] + low[i] + close[i]) / 3
	}
	mean, _ := rollingMeanStdDev(tp, period)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if i+1 < period {
			out[i] = math.NaN()
			continue
		}
		var meanDev float64
		for j := i - period + 1; j <= i; j++ {
			meanDev += math.Abs(tp[j] - mean[i])
		}
		meanDev /= float64(period)
		if meanDev == 0 {
			out[i] = 0
			continue
		}
		out[i] = (tp[i] - mean[i]) / (0.015 * meanDev)
	}
	return out
}

func mfi(high, low, close, volume []float64, period int) []float64 {
	n := len(high)
	tp := make([]float64, n)
	rawFlow := make([]float64, n)
	for i := 0; i < n; i++ {
		tp[i] = (high[i] + low[i] + close[i]) / 3
		rawFlow[i] = tp[i] * volume[i]
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if i+1 < period+1 {
			out[i] = math.NaN()
			continue
		}
		var posFlow, negFlow float64
		for j := i - period + 1; j <= i; j++ {
			if tp[j] > tp[j-1] {
				posFlow += rawFlow[j]
			} else if tp[j] < tp[j-1] {
				negFlow += rawFlow[j]
			}
		}
		if negFlow == 0 {
			out[i] = 100
			continue
		}
		moneyRatio := posFlow / negFlow
		out[i] = 100 - 100/(1+moneyRatio)
	}
	return out
}

func williamsR(high, low, close []float64, period int) []float64 {
	hh := rollingMax(high, period)
	ll := rollingMin(low, period)
	n := len(close)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(hh[i]) || hh[i] == ll[i] {
			out[i] = math.NaN()
			continue
		}
		out[i] = -100 * (hh[i] - close[i]) / (hh[i] - ll[i])
	}
	return out
}

func stochastic(high, low, close []float64, period int) (k, d []float64) {
	hh := rollingMax(high, period)
	ll := rollingMin(low, period)
	n := len(close)
	k = make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(hh[i]) || hh[i] == ll[i] {
			k[i] = math.NaN()
			continue
		}
		k[i] = 100 * (close[i] - ll[i]) / (hh[i] - ll[i])
	}
	d, _ = rollingMeanStdDev(k, 3)
	return
}

func keltner(high, low, close []float64, period int) (upper, lower []float64) {
	mid, _ := rollingMeanStdDev(close, period)
	a := atr(high, low, close, period)
	n := len(close)
	upper = make([]float64, n)
	lower = make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(mid[i]) || math.IsNaN(a[i]) {
			upper[i], lower[i] = math.NaN(), math.NaN()
			continue
		}
		upper[i] = mid[i] + 2*a[i]
		lower[i] = mid[i] - 2*a[i]
	}
	return
}

// --- cinar/indicator/v2-backed columns -------------------------------------

func cinarRSI(close []float64, period int) []float64 {
	return viaChannel(close, func(in <-chan float64) <-chan float64 {
		return momentum.NewRsiWithPeriod[float64](period).Compute(in)
	}, period)
}

func cinarEMA(close []float64, period int) []float64 {
	return viaChannel(close, func(in <-chan float64) <-chan float64 {
		return trend.NewEmaWithPeriod[float64](period).Compute(in)
	}, period-1)
}

func cinarMACD(close []float64, fast, slow, signalPeriod int) (macd, signal, hist []float64) {
	n := len(close)
	macd = make([]float64, n)
	signal = make([]float64, n)
	hist = make([]float64, n)
	fastEMA := cinarEMA(close, fast)
	slowEMA := cinarEMA(close, slow)
	for i := 0; i < n; i++ {
		if math.IsNaN(fastEMA[i]) || math.IsNaN(slowEMA[i]) {
			macd[i] = math.NaN()
			continue
		}
		macd[i] = fastEMA[i] - slowEMA[i]
	}
	sig := cinarEMA(macd, signalPeriod)
	copy(signal, sig)
	for i := 0; i < n; i++ {
		if math.IsNaN(macd[i]) || math.IsNaN(signal[i]) {
			hist[i] = math.NaN()
			continue
		}
		hist[i] = macd[i] - signal[i]
	}
	return
}

// viaChannel drives a cinar/indicator/v2 streaming indicator over a slice
// and left-pads the (shorter) output with NaN so it lines up with the
// input's bar index — the "Arena + index" invariant every other column
// here already honors.
func viaChannel(in []float64, compute func(<-chan float64) <-chan float64, warmup int) []float64 {
	n := len(in)
	ch := make(chan float64, n)
	for _, v := range in {
		ch <- v
	}
	close(ch)

	outCh := compute(ch)
	var vals []float64
	for v := range outCh {
		vals = append(vals, v)
	}

	out := make([]float64, n)
	pad := n - len(vals)
	if pad < 0 {
		pad = 0
	}
	for i := 0; i < pad && i < n; i++ {
		out[i] = math.NaN()
	}
	for i, v := range vals {
		idx := pad + i
		if idx >= n {
			break
		}
		out[idx] = v
	}
	return out
}
