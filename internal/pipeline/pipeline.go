// Package pipeline runs the per-tick, per-ticker sequential stage pipeline
// of spec.md §4.1: HybridRiskCheck, DataCollection, Analysis, Execution, in
// that fixed order, over a single mutable domain.TickContext. Unlike the
// teacher's orchestrator package (a distributed, NATS-pub/sub multi-agent
// consensus voter — see DESIGN.md), this orchestrator is single-process and
// single-threaded per tick: one ticker's four stages run strictly in order,
// and the only real concurrency in the system lives in the scanner's bounded
// worker pool, not here.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/metrics"
)

// Stage is one named step of the pipeline. PreExecute decides whether the
// stage should run at all for this tick; returning false skips Execute
// silently (no error, no log beyond debug). Execute does the stage's real
// work and mutates ctx. PostExecute inspects the result (and may further
// mutate ctx, e.g. stamping metrics derived from the stage's own output)
// before the orchestrator interprets the returned StageAction. HandleError
// converts a panic/error raised during Execute into a terminal StageResult
// so a single stage's bug can never escape the pipeline as an unhandled
// exception — it can only fail its own tick.
type Stage interface {
	Name() string
	PreExecute(ctx context.Context, tick *domain.TickContext) bool
	Execute(ctx context.Context, tick *domain.TickContext) domain.StageResult
	PostExecute(ctx context.Context, tick *domain.TickContext, result domain.StageResult) domain.StageResult
	HandleError(ctx context.Context, tick *domain.TickContext, err error) domain.StageResult
}

// Pipeline runs an ordered list of stages over one tick.
type Pipeline struct {
	stages []Stage
	log    zerolog.Logger
}

// New builds a pipeline from stages in execution order. Use NewHybrid for
// the full spec.md §4.1-§4.5 four-stage sequence, or compose a custom order
// directly for tests.
func New(log zerolog.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, log: log.With().Str("component", "pipeline").Logger()}
}

// Run executes every stage of the pipeline over one tick, in order, honoring
// the tick deadline already carried on ctx (callers construct it with
// RunTick's deadline or their own context.WithDeadline). A stage's
// StageAction governs what happens next:
//
//   - continue: proceed to the next stage.
//   - skip:     skip the rest of this tick's stages, but do not treat it as
//     an error (e.g. BLOCKED mode skips Analysis/Execution entirely).
//   - stop:     same as skip, but PostExecute logic indicates this is worth
//     surfacing as the tick's final recorded action (e.g. no candidate
//     selected). Handled identically to skip here; the distinction is
//     informational for the caller via the returned TickContext.
//   - exit:     abort the tick immediately, e.g. a fatal error class.
func (p *Pipeline) Run(ctx context.Context, tick *domain.TickContext) *domain.TickContext {
	started := time.Now()
	defer func() {
		metrics.PipelineTickLatency.Observe(float64(time.Since(started).Milliseconds()))
	}()

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			p.log.Warn().Str("ticker", tick.Ticker).Str("stage", stage.Name()).Err(err).Msg("tick deadline exceeded before stage ran")
			metrics.PipelineDeadlineExceeded.Inc()
			tick.Errors = append(tick.Errors, err)
			return tick
		}

		result := p.runStage(ctx, tick, stage)
		metrics.PipelineStageActions.WithLabelValues(stage.Name(), string(result.Action)).Inc()

		if !result.Success {
			p.log.Warn().Str("ticker", tick.Ticker).Str("stage", stage.Name()).Str("message", result.Message).Msg("stage reported failure")
		}

		switch result.Action {
		case domain.ActionContinue:
			continue
		case domain.ActionSkip, domain.ActionStop:
			p.log.Debug().Str("ticker", tick.Ticker).Str("stage", stage.Name()).Str("action", string(result.Action)).Msg("stage ended tick early")
			return tick
		case domain.ActionExit:
			p.log.Error().Str("ticker", tick.Ticker).Str("stage", stage.Name()).Str("message", result.Message).Msg("stage aborted tick")
			return tick
		default:
			// An unrecognised action is treated the same as "stop" rather
			// than silently continuing past a stage that didn't declare an
			// opinion.
			return tick
		}
	}

	return tick
}

// runStage wraps PreExecute/Execute/PostExecute with panic containment, so a
// single stage's bug degrades to a failed StageResult for this ticker's tick
// rather than crashing the tick loop for every other ticker.
func (p *Pipeline) runStage(ctx context.Context, tick *domain.TickContext, stage Stage) (result domain.StageResult) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Str("ticker", tick.Ticker).Str("stage", stage.Name()).Interface("panic", r).Msg("stage panicked")
			result = stage.HandleError(ctx, tick, panicToError(r))
		}
	}()

	if !stage.PreExecute(ctx, tick) {
		return domain.StageResult{Success: true, Action: domain.ActionContinue, Message: "pre-execute condition not met"}
	}

	result = stage.Execute(ctx, tick)
	return stage.PostExecute(ctx, tick, result)
}

func panicToError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &panicError{value: r}
}

type panicError struct{ value interface{} }

func (e *panicError) Error() string { return "pipeline stage panic" }

// BaseStage gives concrete stages a default HandleError that turns any error
// into a terminal StageResult, and a default PostExecute that passes the
// result through unchanged. Stages embed it and override only what differs.
type BaseStage struct{ StageName string }

func (b BaseStage) Name() string { return b.StageName }

func (b BaseStage) PostExecute(_ context.Context, _ *domain.TickContext, result domain.StageResult) domain.StageResult {
	return result
}

func (b BaseStage) HandleError(_ context.Context, tick *domain.TickContext, err error) domain.StageResult {
	tick.Errors = append(tick.Errors, err)
	return domain.StageResult{Success: false, Action: domain.ActionExit, Message: err.Error()}
}

// DeadlineFor computes the absolute deadline for a tick starting now, per
// spec.md §5's 3-minute global tick budget.
func DeadlineFor(now time.Time) time.Time {
	return now.Add(TickBudget)
}

// TickBudget is the spec.md §5 global per-tick deadline.
const TickBudget = 3 * time.Minute
