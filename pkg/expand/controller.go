// Package expand implements the round-based expansion controller that grows
// a knowledge graph by querying an external proposal source.
package expand

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coursegraph/pkg/graph"
	"coursegraph/pkg/logx"
	"coursegraph/pkg/merge"
	"coursegraph/pkg/metrics"
	"coursegraph/pkg/proposal"
	"coursegraph/pkg/utils"
)

// Options tunes one controller run. Zero values fall back to defaults.
type Options struct {
	// FrontierSize is how many frontier concepts feed the round context.
	FrontierSize int
	// SummaryTokenBudget caps the frontier summary handed to the source.
	SummaryTokenBudget int
	// MaxRetries bounds proposal-source retries within one round before the
	// round is skipped.
	MaxRetries int
	// RetryDelay is the base backoff between proposal-source retries.
	RetryDelay time.Duration
	// RoundTimeout caps one proposal-source call.
	RoundTimeout time.Duration
	// Metrics receives per-round observations. Nil disables recording.
	Metrics *metrics.Recorder
	// RunID labels metric series for this run.
	RunID string
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.FrontierSize <= 0 {
		out.FrontierSize = 12
	}
	if out.SummaryTokenBudget <= 0 {
		out.SummaryTokenBudget = 2000
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = 3
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = 2 * time.Second
	}
	if out.RoundTimeout <= 0 {
		out.RoundTimeout = 2 * time.Minute
	}
	if out.Metrics == nil {
		out.Metrics = metrics.NewNopRecorder()
	}
	if out.RunID == "" {
		out.RunID = "latest"
	}
	return out
}

// RoundStatus says whether a round produced a merged batch or was skipped.
type RoundStatus string

const (
	RoundOk      RoundStatus = "ok"
	RoundSkipped RoundStatus = "skipped"
)

// RoundResult records one executed round. A skipped round carries the error
// that exhausted its retries and counts as zero growth.
type RoundResult struct {
	Round  int          `json:"round"`
	Status RoundStatus  `json:"status"`
	Growth uint64       `json:"growth"`
	Report merge.Report `json:"report"`
	Error  string       `json:"error,omitempty"`
}

// RunReport summarizes a controller run. Executing fewer rounds than
// requested is normal; it means the graph converged.
type RunReport struct {
	RoundsRequested int           `json:"rounds_requested"`
	RoundsExecuted  int           `json:"rounds_executed"`
	Rounds          []RoundResult `json:"rounds"`
}

// Controller drives sequential expansion rounds against one graph store.
type Controller struct {
	store   *graph.Store
	engine  *merge.Engine
	source  proposal.Source
	tokens  *utils.TokenCounter
	opts    Options
	logger  *logx.Logger
	sleepFn func(context.Context, time.Duration) error
}

// NewController wires a controller. The token counter trims frontier
// summaries to the source's context budget; if the tokenizer cannot load,
// the counter falls back to character-based estimates.
func NewController(store *graph.Store, engine *merge.Engine, source proposal.Source, opts Options) *Controller {
	tokens, _ := utils.NewTokenCounter("gpt-4")
	return &Controller{
		store:   store,
		engine:  engine,
		source:  source,
		tokens:  tokens,
		opts:    opts.withDefaults(),
		logger:  logx.NewLogger("expand"),
		sleepFn: ctxSleep,
	}
}

// Run executes up to rounds expansion rounds, strictly sequentially. It
// stops early once structural growth stays at zero for consecutive rounds;
// a skipped round counts as zero growth. Cancellation is honored between
// rounds, never mid merge, so the store is always left in a fully merged
// state.
func (c *Controller) Run(ctx context.Context, rounds int) (RunReport, error) {
	if rounds <= 0 {
		return RunReport{}, fmt.Errorf("rounds must be positive, got %d", rounds)
	}

	report := RunReport{RoundsRequested: rounds}
	zeroStreak := 0
	for round := 1; round <= rounds; round++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		before := c.store.Revision()
		result := c.runRound(ctx, round)
		result.Growth = c.store.Revision() - before
		report.Rounds = append(report.Rounds, result)
		report.RoundsExecuted = round

		c.logger.Info("round %d/%d: status=%s growth=%d accepted=%d merged=%d rejected=%d",
			round, rounds, result.Status, result.Growth,
			result.Report.Accepted, result.Report.Merged, len(result.Report.Rejected))

		c.opts.Metrics.ObserveRound(c.opts.RunID, string(result.Status))
		c.opts.Metrics.ObserveMerge(c.opts.RunID,
			result.Report.Accepted, result.Report.Merged, len(result.Report.Rejected))
		c.opts.Metrics.SetGraphSize(c.opts.RunID, c.store.Len(), len(c.store.AllRelationships()))

		// One sparse round can be noise; a repeat means the graph is
		// saturated and further calls are wasted.
		if result.Growth == 0 {
			zeroStreak++
			if zeroStreak >= 2 {
				c.logger.Info("no growth for %d consecutive rounds, stopping after round %d", zeroStreak, round)
				break
			}
		} else {
			zeroStreak = 0
		}
	}
	return report, nil
}

// runRound performs one proposal-merge cycle, retrying source failures with
// backoff before giving up on the round.
func (c *Controller) runRound(ctx context.Context, round int) RoundResult {
	result := RoundResult{Round: round, Status: RoundSkipped}

	req := proposal.Request{
		FrontierSummary: c.frontierSummary(),
		Instruction: "Propose new concepts a learner of this codebase needs next, " +
			"and prerequisite, part-of, related-to or example-of relationships among them " +
			"and the frontier concepts listed above.",
	}

	var lastErr error
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.opts.RetryDelay * time.Duration(1<<(attempt-1))
			c.logger.Warn("round %d attempt %d failed (%v), retrying in %v", round, attempt, lastErr, delay)
			if err := c.sleepFn(ctx, delay); err != nil {
				result.Error = err.Error()
				return result
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.opts.RoundTimeout)
		batch, err := c.source.Propose(callCtx, req)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}

		if batch.Provenance == "" {
			batch.Provenance = fmt.Sprintf("expand-round-%d", round)
		}
		result.Report = c.engine.Ingest(batch)
		result.Status = RoundOk
		return result
	}

	result.Error = fmt.Sprintf("proposal source failed after %d attempts: %v", c.opts.MaxRetries, lastErr)
	c.logger.Warn("round %d skipped: %s", round, result.Error)
	return result
}

// frontierSummary renders the current frontier concepts as round context,
// trimmed to the configured token budget.
func (c *Controller) frontierSummary() string {
	frontier := c.store.Frontier(c.opts.FrontierSize)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("The knowledge graph currently holds %d concepts. Frontier concepts:\n", c.store.Len()))
	for _, concept := range frontier {
		sb.WriteString(fmt.Sprintf("- %s: %s", concept.Name, concept.Description))
		if len(concept.KeyIdeas) > 0 {
			sb.WriteString(" (key ideas: " + strings.Join(concept.KeyIdeas, ", ") + ")")
		}
		sb.WriteString("\n")
	}
	return c.tokens.TrimToTokens(sb.String(), c.opts.SummaryTokenBudget)
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
