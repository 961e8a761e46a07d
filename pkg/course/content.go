package course

import (
	"context"
	"fmt"
	"strings"

	"coursegraph/pkg/graph"
	"coursegraph/pkg/llm"
	"coursegraph/pkg/logx"
	"coursegraph/pkg/utils"
)

const lessonSystemPrompt = `You are writing ONE short lesson for an interactive course delivered in a
CLI chat. The learner cannot open files or run GUIs.

Rules for the "explanation" field (MUST be under 800 words):
1. Open with the core problem the concepts address and why it matters.
2. Short paragraphs, 2-3 sentences each, at most 3 paragraphs total.
3. Include exactly one concrete analogy or mental image.
4. Small inline code snippets in markdown fences are fine; never tell the
   learner to open a file.

Rules for the "exercise" field: write ONE quiz-style exercise answerable by
typing a number or a short sentence (multiple choice, predict the output,
fill in the blank, short answer, or true/false). Never ask the learner to
write or run code.

Return ONLY valid JSON with keys "explanation" and "exercise". No other text.`

// ContentWriter fills lesson explanation and exercise slots with generated
// text. Generation failures fall back to the concept descriptions so a
// curriculum is always complete.
type ContentWriter struct {
	client llm.Client
	logger *logx.Logger
}

// NewContentWriter creates a content writer backed by an LLM client.
func NewContentWriter(client llm.Client) *ContentWriter {
	return &ContentWriter{
		client: client,
		logger: logx.NewLogger("content"),
	}
}

type lessonContent struct {
	Explanation string `json:"explanation"`
	Exercise    string `json:"exercise"`
}

// FillCourses generates content for every lesson in place. Per-lesson
// failures are logged and replaced by fallbacks; only cancellation stops
// the sweep.
func (w *ContentWriter) FillCourses(ctx context.Context, store *graph.Store, courses []Course) error {
	for ci := range courses {
		for li := range courses[ci].Lessons {
			if err := ctx.Err(); err != nil {
				return err
			}
			w.fillLesson(ctx, store, &courses[ci].Lessons[li])
		}
	}
	return nil
}

func (w *ContentWriter) fillLesson(ctx context.Context, store *graph.Store, lesson *Lesson) {
	concepts := make([]graph.Concept, 0, len(lesson.ConceptIDs))
	for _, id := range lesson.ConceptIDs {
		if c, ok := store.Get(id); ok {
			concepts = append(concepts, c)
		}
	}
	if len(concepts) == 0 {
		return
	}

	resp, err := w.client.Complete(ctx, llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(lessonSystemPrompt),
		llm.NewUserMessage(lessonPrompt(store, concepts)),
	}))
	if err != nil {
		w.logger.Warn("lesson %q content generation failed: %v", lesson.Title, err)
		w.fallback(lesson, concepts)
		return
	}

	var content lessonContent
	if err := utils.ExtractJSON(resp.Content, &content); err != nil {
		w.logger.Warn("lesson %q content unparsable: %v", lesson.Title, err)
		w.fallback(lesson, concepts)
		return
	}
	if content.Explanation == "" || content.Exercise == "" {
		w.fallback(lesson, concepts)
		if content.Explanation != "" {
			lesson.Explanation = content.Explanation
		}
		if content.Exercise != "" {
			lesson.Exercise = content.Exercise
		}
		return
	}
	lesson.Explanation = content.Explanation
	lesson.Exercise = content.Exercise
}

// fallback fills the lesson from graph data alone.
func (w *ContentWriter) fallback(lesson *Lesson, concepts []graph.Concept) {
	var sb strings.Builder
	for _, c := range concepts {
		sb.WriteString(fmt.Sprintf("%s: %s\n", c.Name, c.Description))
	}
	lesson.Explanation = strings.TrimSpace(sb.String())
	lesson.Exercise = fmt.Sprintf(
		"True or false: %s was introduced to solve a problem with earlier approaches. Explain your answer in one sentence.",
		concepts[0].Name)
}

func lessonPrompt(store *graph.Store, concepts []graph.Concept) string {
	var sb strings.Builder
	sb.WriteString("Concepts for this lesson:\n")
	for _, c := range concepts {
		sb.WriteString(fmt.Sprintf("- %s: %s", c.Name, c.Description))
		if len(c.KeyIdeas) > 0 {
			sb.WriteString(" (key ideas: " + strings.Join(c.KeyIdeas, ", ") + ")")
		}
		sb.WriteString("\n")
	}

	var prereqs []string
	seen := make(map[string]bool)
	for _, c := range concepts {
		for _, rel := range store.AllRelationships() {
			if rel.Type == graph.RelPrerequisite && rel.Target == c.ID && !seen[rel.Source] {
				seen[rel.Source] = true
				if p, ok := store.Get(rel.Source); ok {
					prereqs = append(prereqs, p.Name)
				}
			}
		}
	}
	if len(prereqs) > 0 {
		sb.WriteString("Prerequisites the learner already knows: " + strings.Join(prereqs, ", ") + "\n")
	}
	return sb.String()
}
