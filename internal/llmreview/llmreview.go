// Package llmreview is the domain.AIPort adapter: a strict-JSON
// chat-completion boundary used by internal/pipeline's Analysis stage and
// internal/scanner's phase 5 selection to get a model opinion on a trade
// candidate. Grounded on internal/llm, trimmed to the single stateless
// Complete call domain.AIPort names — the teacher's multi-agent types
// (AgentType, per-agent Decision/Signal/RiskAssessment, MarketContext,
// PositionContext, HistoricalDecision) and its DecisionTracker/db-backed
// decision-similarity search are dropped; see DESIGN.md for why.
package llmreview

import "github.com/ajitpratap0/cryptobreakout/internal/domain"

var (
	_ domain.AIPort = (*Client)(nil)
	_ domain.AIPort = (*FallbackClient)(nil)
)
