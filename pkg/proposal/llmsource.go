package proposal

import (
	"context"
	"fmt"

	"coursegraph/pkg/llm"
	"coursegraph/pkg/logx"
	"coursegraph/pkg/utils"
)

const proposalSystemPrompt = `You are an expert teacher of software systems. Given a summary of the
concepts already present in a knowledge graph about a codebase, identify NEW
concepts a learner needs that are not yet in the graph, and relationships
connecting new and existing concepts.

For each new concept provide:
- name: human-readable name
- description: 1-2 sentence description
- category: short topical category
- key_ideas: list of 2-4 key ideas
- confidence: float 0.0-1.0 (how certain you are this belongs in the graph)

For each relationship provide:
- source: concept name
- target: concept name
- type: one of prerequisite-of, related-to, part-of, example-of
- weight: float 0.0-1.0

"A prerequisite-of B" means A must be learned before B.

Return ONLY valid JSON with keys "concepts" and "edges". Only include truly
new concepts not already in the provided summary. No other text.`

// wireBatch is the JSON shape the model is asked to return.
type wireBatch struct {
	Concepts []ConceptCandidate `json:"concepts"`
	Edges    []EdgeCandidate    `json:"edges"`
}

// LLMSource asks a chat model for candidate batches. One instance is safe
// for sequential rounds; the controller never calls it concurrently.
type LLMSource struct {
	client     llm.Client
	provenance string
	logger     *logx.Logger
	seq        int
}

// NewLLMSource wraps an LLM client as a proposal source. provenance tags
// every batch, typically the model name or a run identifier.
func NewLLMSource(client llm.Client, provenance string) *LLMSource {
	if provenance == "" {
		provenance = client.GetModelName()
	}
	return &LLMSource{
		client:     client,
		provenance: provenance,
		logger:     logx.NewLogger("proposal"),
	}
}

// Propose implements Source. An unparsable response is an error; the
// controller decides whether to retry or skip the round. Individually
// malformed candidates inside a parsable response are passed through and
// rejected item by item at merge time.
func (s *LLMSource) Propose(ctx context.Context, req Request) (Batch, error) {
	s.seq++

	prompt := req.FrontierSummary
	if req.Instruction != "" {
		prompt += "\n\n" + req.Instruction
	}
	prompt += "\n\nReturn ONLY valid JSON with keys \"concepts\" and \"edges\"."

	completion := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(proposalSystemPrompt),
		llm.NewUserMessage(prompt),
	})

	resp, err := s.client.Complete(ctx, completion)
	if err != nil {
		return Batch{}, fmt.Errorf("proposal completion failed: %w", err)
	}

	var wire wireBatch
	if err := utils.ExtractJSON(resp.Content, &wire); err != nil {
		s.logger.Warn("unparsable proposal response (stop_reason=%s): %v", resp.StopReason, err)
		return Batch{}, fmt.Errorf("proposal response: %w", err)
	}

	s.logger.Debug("proposal batch %d: %d concepts, %d edges", s.seq, len(wire.Concepts), len(wire.Edges))
	return Batch{
		Concepts:   wire.Concepts,
		Edges:      wire.Edges,
		Provenance: fmt.Sprintf("%s#%d", s.provenance, s.seq),
	}, nil
}

// ScriptedSource replays a fixed sequence of batches, then empty batches.
// It exists for tests and dry runs.
type ScriptedSource struct {
	Batches []Batch
	Errs    []error
	calls   int
}

// Propose returns the next scripted batch. A nil entry in Errs (or running
// past the end of Errs) means success; past the end of Batches it returns
// empty batches so callers can observe convergence.
func (s *ScriptedSource) Propose(_ context.Context, _ Request) (Batch, error) {
	i := s.calls
	s.calls++
	if i < len(s.Errs) && s.Errs[i] != nil {
		return Batch{}, s.Errs[i]
	}
	if i < len(s.Batches) {
		return s.Batches[i], nil
	}
	return Batch{Provenance: fmt.Sprintf("scripted#%d", i+1)}, nil
}

// Calls returns how many times Propose has been invoked.
func (s *ScriptedSource) Calls() int { return s.calls }
