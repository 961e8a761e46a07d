package extract

import (
	"context"
	"fmt"
	"strings"

	"coursegraph/pkg/llm"
	"coursegraph/pkg/logx"
	"coursegraph/pkg/merge"
	"coursegraph/pkg/proposal"
	"coursegraph/pkg/utils"
)

const extractionSystemPrompt = `You are an expert teacher of software systems. Given analysis data from a
source repository, extract a knowledge graph of the concepts a learner needs
to understand the codebase, and the relationships between them.

For each concept provide:
- name: human-readable name
- description: 1-2 sentence description
- category: short topical category
- key_ideas: list of 2-4 key ideas
- confidence: float 0.0-1.0

For each relationship provide:
- source: concept name
- target: concept name
- type: one of prerequisite-of, related-to, part-of, example-of
- weight: float 0.0-1.0

"A prerequisite-of B" means A must be learned before B. Ensure proper
prerequisite chains from foundational concepts to advanced ones.

Return ONLY valid JSON with keys "concepts" and "edges". No other text.`

// Extractor runs the initial extraction round over a repo analysis.
type Extractor struct {
	client llm.Client
	engine *merge.Engine
	logger *logx.Logger
}

// NewExtractor creates an extractor feeding one merge engine.
func NewExtractor(client llm.Client, engine *merge.Engine) *Extractor {
	return &Extractor{
		client: client,
		engine: engine,
		logger: logx.NewLogger("extract"),
	}
}

// Extract asks the model for an initial concept graph and ingests it. An
// empty first response triggers one retry with a much shorter prompt before
// giving up.
func (e *Extractor) Extract(ctx context.Context, analysis *RepoAnalysis) (merge.Report, error) {
	batch, err := e.request(ctx, analysis.Summary()+
		"\n\nExtract a comprehensive knowledge graph of the concepts above, from "+
		"foundational through advanced. Return ONLY valid JSON with keys \"concepts\" and \"edges\".")
	if err != nil {
		return merge.Report{}, err
	}

	if len(batch.Concepts) == 0 {
		e.logger.Warn("no concepts in extraction response, retrying with simpler prompt")
		short := fmt.Sprintf(
			"Extract 30-40 key concepts a learner needs to understand this repository. "+
				"Modules include: %s. Return ONLY valid JSON with keys \"concepts\" and \"edges\".",
			strings.Join(analysis.ModuleNames(30), ", "))
		batch, err = e.request(ctx, short)
		if err != nil {
			return merge.Report{}, err
		}
	}

	batch.Provenance = "extract:" + analysis.RepoName
	report := e.engine.Ingest(batch)
	e.logger.Info("extraction ingested: accepted=%d merged=%d rejected=%d",
		report.Accepted, report.Merged, len(report.Rejected))
	return report, nil
}

func (e *Extractor) request(ctx context.Context, prompt string) (proposal.Batch, error) {
	resp, err := e.client.Complete(ctx, llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(extractionSystemPrompt),
		llm.NewUserMessage(prompt),
	}))
	if err != nil {
		return proposal.Batch{}, fmt.Errorf("extraction completion failed: %w", err)
	}

	var batch proposal.Batch
	if err := utils.ExtractJSON(resp.Content, &batch); err != nil {
		return proposal.Batch{}, fmt.Errorf("extraction response: %w", err)
	}
	return batch, nil
}
