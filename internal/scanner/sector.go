package scanner

import "github.com/ajitpratap0/cryptobreakout/internal/domain"

// sectorDiversify is spec.md §4.7 phase 2 (optional): map each survivor to a
// sector label and, if OnePerSector, keep only the top-scoring (here:
// highest 24h volume, since no backtest score exists yet at this phase)
// ticker per sector. "unknown" sector tickers can be dropped outright via
// DropUnknownSector.
func sectorDiversify(candidates []domain.CoinInfo, cfg Config) []domain.CoinInfo {
	if !cfg.EnableSectorDiversification {
		return candidates
	}

	tagged := make([]domain.CoinInfo, len(candidates))
	copy(tagged, candidates)
	for i := range tagged {
		tagged[i].Sector = cfg.sectorOf(tagged[i].Symbol)
	}

	if cfg.DropUnknownSector {
		filtered := tagged[:0]
		for _, c := range tagged {
			if c.Sector != "unknown" {
				filtered = append(filtered, c)
			}
		}
		tagged = filtered
	}

	if !cfg.OnePerSector {
		return tagged
	}

	best := make(map[string]domain.CoinInfo)
	order := make([]string, 0, len(tagged))
	for _, c := range tagged {
		existing, ok := best[c.Sector]
		if !ok {
			order = append(order, c.Sector)
			best[c.Sector] = c
			continue
		}
		if c.Volume24hQuote.GreaterThan(existing.Volume24hQuote) {
			best[c.Sector] = c
		}
	}

	out := make([]domain.CoinInfo, 0, len(order))
	for _, sector := range order {
		out = append(out, best[sector])
	}
	return out
}
