package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursegraph/pkg/course"
	"coursegraph/pkg/graph"
)

func openTestStore(t *testing.T, runID string) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), runID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedGraph(t *testing.T) *graph.Store {
	t.Helper()
	g := graph.NewStore()
	concepts := []graph.Concept{
		{Name: "Tokenizer", Description: "splits text into tokens", Category: "parsing", Confidence: 0.9},
		{Name: "Attention", Description: "weighs token relevance", Category: "core", Confidence: 1.0},
	}
	for _, c := range concepts {
		if _, _, err := g.UpsertConcept(c); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := g.UpsertEdge(graph.Relationship{
		Source: "tokenizer", Target: "attention", Type: graph.RelPrerequisite, Weight: 0.8,
		Provenance: []string{"extract"},
	}); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestOpenRequiresRunID(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "x.db"), "")
	assert.Error(t, err)
}

func TestIndexGraphAndStats(t *testing.T) {
	s := openTestStore(t, "run-1")
	g := seedGraph(t)

	require.NoError(t, s.IndexGraph(g))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, "run-1", stats.RunID)
	assert.Equal(t, 2, stats.ConceptCount)
	assert.Equal(t, 1, stats.EdgeCount)
	assert.Equal(t, g.Revision(), stats.Revision)
	assert.NotEmpty(t, stats.IndexedAt)
	assert.Equal(t, map[string]int{"parsing": 1, "core": 1}, stats.ByCategory)
	assert.Equal(t, map[string]int{"prerequisite-of": 1}, stats.ByRelationType)
}

func TestIndexGraphReplacesPreviousRows(t *testing.T) {
	s := openTestStore(t, "run-1")
	g := seedGraph(t)
	require.NoError(t, s.IndexGraph(g))

	// Re-index after growth: old rows replaced, not duplicated.
	if _, _, err := g.UpsertConcept(graph.Concept{Name: "Softmax", Description: "normalizes", Confidence: 1}); err != nil {
		t.Fatal(err)
	}
	require.NoError(t, s.IndexGraph(g))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ConceptCount)
}

func TestRunsAreIsolated(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shared.db")
	first, err := Open(dbPath, "run-a")
	require.NoError(t, err)
	require.NoError(t, first.IndexGraph(seedGraph(t)))
	require.NoError(t, first.Close())

	second, err := Open(dbPath, "run-b")
	require.NoError(t, err)
	defer second.Close()

	stats, err := second.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.ConceptCount, "run-b sees none of run-a's rows")

	found, err := second.SearchConcepts("tokenizer", 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestIndexCoursesAndCounts(t *testing.T) {
	s := openTestStore(t, "run-1")
	courses := []course.Course{
		{
			Rank: 1, Title: "Parsing", Description: "parsing fundamentals",
			Lessons: []course.Lesson{
				{Rank: 1, Title: "Tokenizer", ConceptIDs: []string{"tokenizer"}, Explanation: "how text splits"},
				{Rank: 2, Title: "Attention", ConceptIDs: []string{"attention"}, Exercise: "true or false"},
			},
		},
		{Rank: 2, Title: "Core", Lessons: []course.Lesson{{Rank: 3, Title: "Softmax", ConceptIDs: []string{"softmax"}}}},
	}
	require.NoError(t, s.IndexCourses(courses))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.CourseCount)
	assert.Equal(t, 3, stats.LessonCount)
}

func TestSearchConcepts(t *testing.T) {
	s := openTestStore(t, "run-1")
	require.NoError(t, s.IndexGraph(seedGraph(t)))

	// Case-insensitive match against name or description.
	found, err := s.SearchConcepts("TOKEN", 10)
	require.NoError(t, err)
	require.Len(t, found, 2, "matches 'Tokenizer' by name and 'Attention' by description")
	assert.Equal(t, "tokenizer", found[0].ID)
	assert.Equal(t, "parsing", found[0].Category)

	none, err := s.SearchConcepts("nonexistent", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
