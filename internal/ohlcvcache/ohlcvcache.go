// Package ohlcvcache is the on-disk OHLCV cache layer of §6/§9: one file
// per (ticker, interval), columnar, with per-ticker writes serialised and
// reads proceeding unsynchronised because writes are atomic-replace.
// Grounded on internal/market/sync.go's incremental-sync idiom (look up
// the last stored timestamp, fetch only the gap, merge and persist) and
// internal/market/cache.go's Redis value-cache idiom for the in-process
// hot read path, adapted from TimescaleDB-backed row storage to a flat
// file per series because this core has no database of its own for
// market data — domain.Portfolio/internal/audit own the only durable
// state SPEC_FULL.md actually requires a database for.
package ohlcvcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/validation"
)

// Store is a file-per-(ticker, interval) columnar OHLCV cache.
type Store struct {
	dir string

	mu       sync.Mutex // guards locks map only
	locks    map[string]*sync.Mutex
	hot      map[string]*domain.OHLCVSeries // in-process read-through cache
	hotMu    sync.RWMutex
}

// NewStore creates (if needed) dir and returns a Store rooted there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ohlcv cache dir %q: %w", dir, err)
	}
	return &Store{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
		hot:   make(map[string]*domain.OHLCVSeries),
	}, nil
}

func seriesKey(ticker string, interval domain.Interval) string {
	return ticker + "_" + string(interval)
}

func (s *Store) fileLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *Store) filePath(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// columnarFile is the on-disk representation: parallel arrays instead of a
// row-per-candle struct, matching SPEC_FULL.md's "columnar" cache format.
type columnarFile struct {
	Ticker     string   `json:"ticker"`
	Interval   string   `json:"interval"`
	Timestamps []int64  `json:"timestamps"` // unix seconds
	Open       []string `json:"open"`
	High       []string `json:"high"`
	Low        []string `json:"low"`
	Close      []string `json:"close"`
	Volume     []string `json:"volume"`
}

func toColumnar(series *domain.OHLCVSeries) columnarFile {
	cf := columnarFile{
		Ticker:     series.Ticker,
		Interval:   string(series.Interval),
		Timestamps: make([]int64, len(series.Candles)),
		Open:       make([]string, len(series.Candles)),
		High:       make([]string, len(series.Candles)),
		Low:        make([]string, len(series.Candles)),
		Close:      make([]string, len(series.Candles)),
		Volume:     make([]string, len(series.Candles)),
	}
	for i, c := range series.Candles {
		cf.Timestamps[i] = c.Timestamp.Unix()
		cf.Open[i] = c.Open.String()
		cf.High[i] = c.High.String()
		cf.Low[i] = c.Low.String()
		cf.Close[i] = c.Close.String()
		cf.Volume[i] = c.Volume.String()
	}
	return cf
}

func unixToTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func fromColumnar(cf columnarFile) (*domain.OHLCVSeries, error) {
	candles := make([]domain.Candle, len(cf.Timestamps))
	for i := range cf.Timestamps {
		open, err := decimal.NewFromString(cf.Open[i])
		if err != nil {
			return nil, fmt.Errorf("bad open at index %d: %w", i, err)
		}
		high, err := decimal.NewFromString(cf.High[i])
		if err != nil {
			return nil, fmt.Errorf("bad high at index %d: %w", i, err)
		}
		low, err := decimal.NewFromString(cf.Low[i])
		if err != nil {
			return nil, fmt.Errorf("bad low at index %d: %w", i, err)
		}
		closeP, err := decimal.NewFromString(cf.Close[i])
		if err != nil {
			return nil, fmt.Errorf("bad close at index %d: %w", i, err)
		}
		volume, err := decimal.NewFromString(cf.Volume[i])
		if err != nil {
			return nil, fmt.Errorf("bad volume at index %d: %w", i, err)
		}
		candles[i] = domain.Candle{
			Timestamp: unixToTime(cf.Timestamps[i]),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closeP,
			Volume:    volume,
		}
	}

	return &domain.OHLCVSeries{
		Ticker:   cf.Ticker,
		Interval: domain.Interval(cf.Interval),
		Candles:  candles,
	}, nil
}

// Load reads the cached series for (ticker, interval), consulting the
// in-process hot cache before the filesystem. Returns (nil, nil) on a cold
// miss — no file yet written — rather than an error, since that is the
// expected state before the first sync. Any uncorrectable data-quality
// issue found is logged but does not fail the load; callers that need the
// full issue list to decide whether to downgrade a ticker should use
// LoadWithIssues instead.
func (s *Store) Load(ticker string, interval domain.Interval) (*domain.OHLCVSeries, error) {
	series, _, err := s.LoadWithIssues(ticker, interval)
	return series, err
}

// LoadWithIssues is Load plus the data-quality issue list §7.2's OHLCV
// validator raised on this read. The validator runs on every on-disk read —
// a series already in the hot cache was validated the load or merge that
// put it there, so it is returned as-is rather than re-validated.
func (s *Store) LoadWithIssues(ticker string, interval domain.Interval) (*domain.OHLCVSeries, []validation.OHLCVIssue, error) {
	key := seriesKey(ticker, interval)

	s.hotMu.RLock()
	if cached, ok := s.hot[key]; ok {
		s.hotMu.RUnlock()
		return cached, nil, nil
	}
	s.hotMu.RUnlock()

	data, err := os.ReadFile(s.filePath(key))
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read ohlcv cache file for %s: %w", key, err)
	}

	var cf columnarFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, nil, fmt.Errorf("failed to decode ohlcv cache file for %s: %w", key, err)
	}

	raw, err := fromColumnar(cf)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reconstruct series for %s: %w", key, err)
	}

	series, issues, err := validation.ValidateOHLCV(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to validate series for %s: %w", key, err)
	}
	for _, issue := range issues {
		ev := log.Warn().Str("ticker", ticker).Str("interval", string(interval)).Str("kind", string(issue.Kind)).Bool("corrected", issue.Corrected)
		ev.Msg(issue.Detail)
	}

	s.hotMu.Lock()
	s.hot[key] = series
	s.hotMu.Unlock()

	return series, issues, nil
}

// Merge appends fresh candles to the cached series for (ticker, interval),
// deduplicating on timestamp (fresh wins on overlap) and keeping the
// result sorted. Writers for the same key are serialised via a per-key
// mutex; the file itself is replaced atomically (write to a temp file,
// then rename) so concurrent readers never observe a partial write.
func (s *Store) Merge(ticker string, interval domain.Interval, fresh []domain.Candle) (*domain.OHLCVSeries, error) {
	key := seriesKey(ticker, interval)
	lock := s.fileLock(key)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.Load(ticker, interval)
	if err != nil {
		return nil, err
	}

	byTimestamp := make(map[int64]domain.Candle)
	if existing != nil {
		for _, c := range existing.Candles {
			byTimestamp[c.Timestamp.Unix()] = c
		}
	}
	for _, c := range fresh {
		byTimestamp[c.Timestamp.Unix()] = c
	}

	merged := make([]domain.Candle, 0, len(byTimestamp))
	for _, c := range byTimestamp {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp.Before(merged[j].Timestamp) })

	series, issues, err := validation.ValidateOHLCV(&domain.OHLCVSeries{Ticker: ticker, Interval: interval, Candles: merged})
	if err != nil {
		return nil, fmt.Errorf("failed to validate merged series for %s: %w", key, err)
	}
	for _, issue := range issues {
		log.Warn().Str("ticker", ticker).Str("interval", string(interval)).Str("kind", string(issue.Kind)).Bool("corrected", issue.Corrected).Msg(issue.Detail)
	}

	if err := s.writeAtomic(key, series); err != nil {
		return nil, err
	}

	s.hotMu.Lock()
	s.hot[key] = series
	s.hotMu.Unlock()

	return series, nil
}

func (s *Store) writeAtomic(key string, series *domain.OHLCVSeries) error {
	data, err := json.Marshal(toColumnar(series))
	if err != nil {
		return fmt.Errorf("failed to encode series for %s: %w", key, err)
	}

	finalPath := s.filePath(key)
	tmpPath := finalPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp cache file for %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("failed to replace cache file for %s: %w", key, err)
	}
	return nil
}

// PurgeOlderThan drops cached candles for (ticker, interval) strictly
// before cutoff, rewriting the file atomically. A no-op (returns the
// existing series unchanged) if nothing is cached yet or nothing is old
// enough to drop — mirrors Merge's "fresh wins, rest stays sorted"
// posture but trims the oldest candles from the front instead of appending.
func (s *Store) PurgeOlderThan(ticker string, interval domain.Interval, cutoff time.Time) (*domain.OHLCVSeries, error) {
	key := seriesKey(ticker, interval)
	lock := s.fileLock(key)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.Load(ticker, interval)
	if err != nil || existing == nil {
		return existing, err
	}

	kept := existing.Candles[:0:0]
	for _, c := range existing.Candles {
		if !c.Timestamp.Before(cutoff) {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(existing.Candles) {
		return existing, nil
	}

	series := &domain.OHLCVSeries{Ticker: ticker, Interval: interval, Candles: kept}
	if err := s.writeAtomic(key, series); err != nil {
		return nil, err
	}

	s.hotMu.Lock()
	s.hot[key] = series
	s.hotMu.Unlock()

	return series, nil
}

// LastTimestamp returns the most recent candle timestamp cached for
// (ticker, interval), or the zero value if nothing is cached yet —
// mirrors internal/market/sync.go's getLastTimestamp, the basis for
// deciding how much of a gap needs fetching on the next sync.
func (s *Store) LastTimestamp(ticker string, interval domain.Interval) (int64, bool, error) {
	series, err := s.Load(ticker, interval)
	if err != nil {
		return 0, false, err
	}
	if series == nil || len(series.Candles) == 0 {
		return 0, false, nil
	}
	return series.Candles[len(series.Candles)-1].Timestamp.Unix(), true, nil
}
