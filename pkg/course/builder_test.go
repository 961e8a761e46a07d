package course

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursegraph/pkg/graph"
)

func chainStore(t *testing.T, names []string) *graph.Store {
	t.Helper()
	s := graph.NewStore()
	for _, n := range names {
		if _, _, err := s.UpsertConcept(graph.Concept{Name: n, Description: "about " + n, Confidence: 1}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i+1 < len(names); i++ {
		if _, err := s.UpsertEdge(graph.Relationship{
			Source: graph.NormalizeName(names[i]),
			Target: graph.NormalizeName(names[i+1]),
			Type:   graph.RelPrerequisite,
			Weight: 1,
		}); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func orderedIDs(courses []Course) []string {
	var out []string
	for _, c := range courses {
		for _, l := range c.Lessons {
			out = append(out, l.ConceptIDs...)
		}
	}
	return out
}

func TestBuildRespectsPrerequisiteChain(t *testing.T) {
	store := chainStore(t, []string{"A", "B", "C"})
	builder := NewBuilder(Options{LessonSize: 2})

	courses, err := builder.Build(store)
	require.NoError(t, err)
	require.NotEmpty(t, courses)

	ids := orderedIDs(courses)
	require.Equal(t, []string{"a", "b", "c"}, ids, "C never before B, B never before A")

	// With lesson size 2 the chain packs as [{a,b},{c}].
	var lessons []Lesson
	for _, c := range courses {
		lessons = append(lessons, c.Lessons...)
	}
	require.Len(t, lessons, 2)
	assert.Equal(t, []string{"a", "b"}, lessons[0].ConceptIDs)
	assert.Equal(t, []string{"c"}, lessons[1].ConceptIDs)
}

func TestBuildDeterministicAndIdempotent(t *testing.T) {
	store := chainStore(t, []string{"parsing", "lexing", "codegen", "optimization", "linking"})
	builder := NewBuilder(Options{LessonSize: 2, CourseSize: 2})

	first, err := builder.Build(store)
	require.NoError(t, err)
	second, err := builder.Build(store)
	require.NoError(t, err)

	assert.True(t, reflect.DeepEqual(first, second), "rebuild on unchanged graph differs")
}

func TestBuildRanksAscendAcrossCourses(t *testing.T) {
	store := chainStore(t, []string{"a", "b", "c", "d", "e", "f", "g", "h"})
	builder := NewBuilder(Options{LessonSize: 1, CourseSize: 2})

	courses, err := builder.Build(store)
	require.NoError(t, err)

	prevCourse, prevLesson := 0, 0
	for _, c := range courses {
		assert.Equal(t, prevCourse+1, c.Rank)
		prevCourse = c.Rank
		for _, l := range c.Lessons {
			assert.Equal(t, prevLesson+1, l.Rank)
			prevLesson = l.Rank
		}
	}
}

func TestBuildInsertionOrderBreaksTies(t *testing.T) {
	// No edges at all: topological order falls back to insertion order.
	s := graph.NewStore()
	for _, n := range []string{"zeta", "alpha", "mid"} {
		if _, _, err := s.UpsertConcept(graph.Concept{Name: n, Description: n, Confidence: 1}); err != nil {
			t.Fatal(err)
		}
	}
	courses, err := NewBuilder(Options{LessonSize: 1}).Build(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, orderedIDs(courses))
}

func TestBuildAffinityExtendsLesson(t *testing.T) {
	s := graph.NewStore()
	for _, n := range []string{"a", "b", "c"} {
		if _, _, err := s.UpsertConcept(graph.Concept{Name: n, Description: n, Confidence: 1}); err != nil {
			t.Fatal(err)
		}
	}
	// c is part of b; with lesson size 2 the lesson absorbs c rather than
	// splitting the cluster.
	if _, err := s.UpsertEdge(graph.Relationship{Source: "c", Target: "b", Type: graph.RelPartOf, Weight: 1}); err != nil {
		t.Fatal(err)
	}

	courses, err := NewBuilder(Options{LessonSize: 2}).Build(s)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Len(t, courses[0].Lessons, 1)
	assert.Equal(t, []string{"a", "b", "c"}, courses[0].Lessons[0].ConceptIDs)
}

func TestBuildCourseBoundaryKeepsImmediatePrereqTogether(t *testing.T) {
	store := chainStore(t, []string{"a", "b", "c"})
	// One concept per lesson, one lesson per course: the chain would split
	// b from c at every boundary, so the builder must keep extending.
	courses, err := NewBuilder(Options{LessonSize: 1, CourseSize: 1}).Build(store)
	require.NoError(t, err)
	require.Len(t, courses, 1, "immediate prerequisites never split across courses")
	assert.Len(t, courses[0].Lessons, 3)
}

func TestBuildFailsOnCorruptedGraph(t *testing.T) {
	// A cycle cannot come out of the merge engine; build one by hand to
	// exercise the defensive check.
	s := graph.NewStore()
	for _, n := range []string{"a", "b"} {
		if _, _, err := s.UpsertConcept(graph.Concept{Name: n, Description: n, Confidence: 1}); err != nil {
			t.Fatal(err)
		}
	}
	for _, pair := range [][2]string{{"a", "b"}, {"b", "a"}} {
		if _, err := s.UpsertEdge(graph.Relationship{Source: pair[0], Target: pair[1], Type: graph.RelPrerequisite, Weight: 1}); err != nil {
			t.Fatal(err)
		}
	}

	_, err := NewBuilder(Options{}).Build(s)
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestBuildEmptyGraph(t *testing.T) {
	courses, err := NewBuilder(Options{}).Build(graph.NewStore())
	require.NoError(t, err)
	assert.Empty(t, courses)
}
