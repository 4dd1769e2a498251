package scanner

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/indicators"
	"github.com/ajitpratap0/cryptobreakout/internal/strategy"
)

// aiScoreByGrade is the default 70/50/30 AI-score substitute spec.md §4.7
// phase 5 names for when AI review is disabled.
func aiScoreByGrade(grade domain.Grade) float64 {
	switch grade {
	case domain.GradeStrongPass:
		return 70
	case domain.GradeWeakPass:
		return 50
	default:
		return 30
	}
}

const (
	backtestScoreWeight = 0.6
	aiScoreWeight        = 0.4
)

// finalSelect is spec.md §4.7 phase 5: combine each candidate's backtest
// score with an AI score (or the grade-based default when AI review is
// off), derive the final grade, and mark selected=true on candidates that
// clear the bar (backtest trading-pass, AI not a hard veto, final score ≥
// 50). Returns every scored candidate sorted descending by final score;
// the caller keeps only the selected ones and truncates to FinalSelectN.
func finalSelect(ctx context.Context, infos []domain.CoinInfo, scores map[string]domain.BacktestScore, synced map[string]*domain.OHLCVSeries, strat *strategy.Strategy, cfg Config, ai domain.AIPort) []domain.CoinCandidate {
	indicatorSvc := indicators.NewService(zerolog.Nop())

	candidates := make([]domain.CoinCandidate, 0, len(infos))
	for _, info := range infos {
		score, ok := scores[info.Ticker]
		if !ok {
			continue // never synced or never backtest-evaluated: excluded, not a FAIL grade
		}

		candidate := domain.CoinCandidate{
			Ticker:        info.Ticker,
			Info:          info,
			BacktestScore: score,
		}

		if series, ok := synced[info.Ticker]; ok {
			candidate.EntrySignal = latestEntrySignal(indicatorSvc, strat, series)
		}

		aiDecision, aiConfidence := domain.DecisionHold, 0.0
		aiScore := aiScoreByGrade(score.Grade)
		if cfg.EnableAIReview && ai != nil {
			if review, err := aiSelectionReview(ctx, ai, info, score, candidate.EntrySignal); err == nil {
				aiDecision = review.Decision
				aiConfidence = review.Confidence
				aiScore = review.Confidence * 100
			}
		}

		finalScore := score.Score*backtestScoreWeight + aiScore*aiScoreWeight
		finalGrade := finalGradeOf(score, aiDecision, aiConfidence, finalScore)

		veto := aiDecision == domain.DecisionSell || (cfg.EnableAIReview && ai != nil && aiDecision != domain.DecisionBuy && aiConfidence >= 0.7)
		selected := score.Passed && !veto && finalScore >= 50

		candidate.FinalScore = finalScore
		candidate.FinalGrade = finalGrade
		candidate.Selected = selected
		candidate.SelectionReason = selectionReason(score, veto, finalScore)

		candidates = append(candidates, candidate)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FinalScore > candidates[j].FinalScore
	})

	return candidates
}

// topSelected keeps only selected=true candidates from an already
// descending-sorted list, truncated to n.
func topSelected(candidates []domain.CoinCandidate, n int) []domain.CoinCandidate {
	selected := make([]domain.CoinCandidate, 0, n)
	for _, c := range candidates {
		if !c.Selected {
			continue
		}
		selected = append(selected, c)
		if len(selected) == n {
			break
		}
	}
	return selected
}

func finalGradeOf(score domain.BacktestScore, aiDecision domain.Decision, aiConfidence, finalScore float64) domain.Grade {
	switch {
	case score.Grade == domain.GradeStrongPass && aiDecision == domain.DecisionBuy && aiConfidence >= 0.7:
		return domain.GradeStrongBuy
	case score.Passed && aiDecision == domain.DecisionBuy:
		return domain.GradeBuy
	case score.Passed && finalScore >= 50:
		return domain.GradeWeakBuy
	case score.ResearchPass:
		return domain.GradeHold
	default:
		return domain.GradeFail
	}
}

func selectionReason(score domain.BacktestScore, veto bool, finalScore float64) string {
	switch {
	case veto:
		return "ai_veto"
	case !score.Passed:
		return "backtest_trading_pass_failed"
	case finalScore < 50:
		return "final_score_below_threshold"
	default:
		return "selected"
	}
}

// latestEntrySignal runs the same strategy.Evaluate the Analysis stage uses
// for a live tick, against the tail of the candidate's synced history, so a
// selected candidate arrives with an entry signal already attached rather
// than requiring the pipeline to recompute it.
func latestEntrySignal(svc *indicators.Service, strat *strategy.Strategy, series *domain.OHLCVSeries) *domain.Signal {
	ind, err := svc.Compute(series, indicators.DefaultConfig())
	if err != nil || series.Len() == 0 {
		return nil
	}
	sig, err := strat.Evaluate(ind, series.Len()-1)
	if err != nil {
		return nil
	}
	return sig
}

// aiSelectionReview asks the AI port for a scanner-stage opinion on one
// candidate; a thin sibling of the Analysis stage's per-tick synthesize
// call (internal/pipeline/analysis.go), narrowed to the fields phase 5
// needs. Kept local to the scanner rather than calling into
// internal/pipeline since the two packages intentionally don't import each
// other (the scanner is a pipeline.Scanner dependency, not a pipeline
// stage).
func aiSelectionReview(ctx context.Context, ai domain.AIPort, info domain.CoinInfo, score domain.BacktestScore, signal *domain.Signal) (domain.AIReview, error) {
	payload := map[string]interface{}{
		"ticker":          info.Ticker,
		"backtest_score":  score.Score,
		"backtest_grade":  score.Grade,
		"volatility_7d":   info.Volatility7dATR,
		"change_24h":      info.Change24h,
		"has_entry_signal": signal != nil,
	}

	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"decision":   map[string]interface{}{"type": "string", "enum": []string{"buy", "sell", "hold"}},
			"confidence": map[string]interface{}{"type": "number"},
			"reason":     map[string]interface{}{"type": "string"},
		},
		"required": []string{"decision", "confidence", "reason"},
	}

	resp, err := ai.Complete(ctx, scannerAISystemPrompt, fmt.Sprintf("%v", payload), schema)
	if err != nil {
		return domain.AIReview{}, err
	}

	review := domain.AIReview{Decision: domain.DecisionHold}
	if d, ok := resp["decision"].(string); ok {
		review.Decision = domain.Decision(d)
	}
	if c, ok := resp["confidence"].(float64); ok {
		review.Confidence = c
	}
	if r, ok := resp["reason"].(string); ok {
		review.Reason = r
	}
	return review, nil
}

const scannerAISystemPrompt = `You are screening a candidate coin for a rule-based volatility-breakout strategy. Given its backtest grade, volatility, and whether it currently has an entry signal, respond with a strict JSON decision of buy, sell, or hold, a confidence in [0,1], and a one-sentence reason.`
