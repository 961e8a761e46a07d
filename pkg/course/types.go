// Package course turns a finished knowledge graph into an ordered curriculum:
// topological ordering over prerequisites, lesson packing, and course grouping.
package course

import "errors"

// ErrCycleDetected means the prerequisite subgraph contained a cycle at
// build time. The merge engine keeps that subgraph acyclic, so hitting this
// indicates an upstream invariant violation and the build fails outright.
var ErrCycleDetected = errors.New("prerequisite cycle detected at build time")

// Lesson wraps one or more concepts at one position in the curriculum.
// Explanation and Exercise are filled by the content generator; the builder
// leaves them empty.
type Lesson struct {
	Rank        int      `json:"rank"`
	Title       string   `json:"title"`
	ConceptIDs  []string `json:"concept_ids"`
	Explanation string   `json:"explanation,omitempty"`
	Exercise    string   `json:"exercise,omitempty"`
}

// Course is an ordered sequence of lessons under one theme.
type Course struct {
	Rank        int      `json:"rank"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Lessons     []Lesson `json:"lessons"`
}

// Options tunes the builder. Zero values fall back to defaults.
type Options struct {
	// LessonSize is the target number of concepts per lesson. A lesson may
	// hold one extra concept when affinity edges argue for keeping it.
	LessonSize int
	// CourseSize is the target number of lessons per course. A course grows
	// past it rather than split a concept from its immediate prerequisite.
	CourseSize int
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.LessonSize <= 0 {
		out.LessonSize = 3
	}
	if out.CourseSize <= 0 {
		out.CourseSize = 6
	}
	return out
}
