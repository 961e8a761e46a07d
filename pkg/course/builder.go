package course

import (
	"fmt"
	"sort"
	"strings"

	"coursegraph/pkg/graph"
	"coursegraph/pkg/logx"
)

// Builder produces courses from a graph snapshot. Building never mutates
// the graph; rebuilding on an unchanged graph yields identical output.
type Builder struct {
	opts   Options
	logger *logx.Logger
}

// NewBuilder creates a course builder.
func NewBuilder(opts Options) *Builder {
	return &Builder{
		opts:   opts.withDefaults(),
		logger: logx.NewLogger("course"),
	}
}

// Build orders the graph's concepts by prerequisites, packs them into
// lessons, and groups lessons into courses. Fails with ErrCycleDetected if
// the prerequisite subgraph is not acyclic, which should be unreachable when
// the graph came out of the merge engine.
func (b *Builder) Build(store *graph.Store) ([]Course, error) {
	order, err := topoSort(store)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, nil
	}

	lessons := b.packLessons(store, order)
	courses := b.packCourses(store, lessons)

	rank := 0
	for ci := range courses {
		courses[ci].Rank = ci + 1
		for li := range courses[ci].Lessons {
			rank++
			courses[ci].Lessons[li].Rank = rank
		}
	}

	b.logger.Info("built %d courses, %d lessons, %d concepts",
		len(courses), rank, len(order))
	return courses, nil
}

// topoSort runs a stable Kahn's algorithm over the prerequisite subgraph.
// "A prerequisite-of B" orders A before B. Ties between ready nodes break
// on insertion order so identical graphs always order identically.
func topoSort(store *graph.Store) ([]graph.Concept, error) {
	concepts := store.AllConcepts()
	index := make(map[string]int, len(concepts))
	for i, c := range concepts {
		index[c.ID] = i
	}

	inDegree := make([]int, len(concepts))
	successors := make([][]int, len(concepts))
	for _, rel := range store.AllRelationships() {
		if rel.Type != graph.RelPrerequisite {
			continue
		}
		src, okSrc := index[rel.Source]
		dst, okDst := index[rel.Target]
		if !okSrc || !okDst {
			continue
		}
		successors[src] = append(successors[src], dst)
		inDegree[dst]++
	}

	// Ready set ordered by Seq, maintained sorted.
	var ready []int
	for i := range concepts {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	sort.Ints(ready)

	out := make([]graph.Concept, 0, len(concepts))
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		out = append(out, concepts[i])
		for _, succ := range successors[i] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				pos := sort.SearchInts(ready, succ)
				ready = append(ready, 0)
				copy(ready[pos+1:], ready[pos:])
				ready[pos] = succ
			}
		}
	}

	if len(out) != len(concepts) {
		return nil, fmt.Errorf("%w: %d of %d concepts unreachable by topological order",
			ErrCycleDetected, len(concepts)-len(out), len(concepts))
	}
	return out, nil
}

// packLessons chunks the linear order into lessons of the target size. When
// a lesson is full but the next concept has a part-of or related-to edge
// into it, the lesson absorbs one extra concept instead of splitting the
// cluster.
func (b *Builder) packLessons(store *graph.Store, order []graph.Concept) []Lesson {
	var lessons []Lesson
	var current []graph.Concept

	flush := func() {
		if len(current) == 0 {
			return
		}
		lessons = append(lessons, Lesson{
			Title:      lessonTitle(current),
			ConceptIDs: conceptIDs(current),
		})
		current = nil
	}

	for _, c := range order {
		if len(current) >= b.opts.LessonSize {
			if len(current) == b.opts.LessonSize && hasAffinity(store, current, c.ID) {
				current = append(current, c)
				flush()
				continue
			}
			flush()
		}
		current = append(current, c)
	}
	flush()
	return lessons
}

// packCourses groups lessons into courses of the target size. A course
// grows past the target when the next lesson holds a concept whose
// immediate prerequisite sits in the current course's last lesson; the
// order never separates those two across a course boundary.
func (b *Builder) packCourses(store *graph.Store, lessons []Lesson) []Course {
	var courses []Course
	var current []Lesson

	flush := func() {
		if len(current) == 0 {
			return
		}
		courses = append(courses, Course{
			Title:       courseTitle(store, current, len(courses)+1),
			Description: courseDescription(current),
			Lessons:     current,
		})
		current = nil
	}

	for _, lesson := range lessons {
		if len(current) >= b.opts.CourseSize && !prereqInLesson(store, lesson, current[len(current)-1]) {
			flush()
		}
		current = append(current, lesson)
	}
	flush()
	return courses
}

// hasAffinity reports whether concept id shares a part-of or related-to
// edge (either direction) with any concept already in the lesson.
func hasAffinity(store *graph.Store, lesson []graph.Concept, id string) bool {
	in := make(map[string]bool, len(lesson))
	for _, c := range lesson {
		in[c.ID] = true
	}
	for _, t := range []graph.RelationType{graph.RelPartOf, graph.RelRelated} {
		for _, other := range store.Neighbors(id, t) {
			if in[other] {
				return true
			}
		}
		for _, c := range lesson {
			for _, other := range store.Neighbors(c.ID, t) {
				if other == id {
					return true
				}
			}
		}
	}
	return false
}

// prereqInLesson reports whether any concept of next has an immediate
// prerequisite inside prev.
func prereqInLesson(store *graph.Store, next Lesson, prev Lesson) bool {
	for _, id := range prev.ConceptIDs {
		// Edges run prerequisite -> dependent, so scan prev's outgoing edges.
		for _, dependent := range store.Neighbors(id, graph.RelPrerequisite) {
			for _, nid := range next.ConceptIDs {
				if dependent == nid {
					return true
				}
			}
		}
	}
	return false
}

func conceptIDs(concepts []graph.Concept) []string {
	out := make([]string, 0, len(concepts))
	for _, c := range concepts {
		out = append(out, c.ID)
	}
	return out
}

func lessonTitle(concepts []graph.Concept) string {
	names := make([]string, 0, len(concepts))
	for _, c := range concepts {
		names = append(names, c.Name)
	}
	return strings.Join(names, " / ")
}

// courseTitle names a course after the dominant category of its concepts,
// falling back to a positional name. Ties break alphabetically.
func courseTitle(store *graph.Store, lessons []Lesson, position int) string {
	counts := make(map[string]int)
	for _, lesson := range lessons {
		for _, id := range lesson.ConceptIDs {
			if c, ok := store.Get(id); ok && c.Category != "" {
				counts[c.Category]++
			}
		}
	}
	best := ""
	for cat, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && cat < best) {
			best = cat
		}
	}
	if best == "" {
		return fmt.Sprintf("Course %d", position)
	}
	return strings.ToUpper(best[:1]) + best[1:]
}

func courseDescription(lessons []Lesson) string {
	total := 0
	for _, l := range lessons {
		total += len(l.ConceptIDs)
	}
	return fmt.Sprintf("%d lessons covering %d concepts", len(lessons), total)
}
