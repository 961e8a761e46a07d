package graph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"
)

// ToDOT renders the graph in DOT format for inspection with graphviz tools.
// Nodes and edges come out in insertion order so the output is stable.
//
//nolint:gocritic // We need literal quotes in DOT format, not Go-escaped quotes
func (s *Store) ToDOT() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sb strings.Builder
	sb.WriteString("digraph CourseKnowledge {\n")

	for _, id := range s.conceptOrder {
		c := s.concepts[id]
		sb.WriteString(fmt.Sprintf("    \"%s\" [\n", c.ID))
		sb.WriteString(fmt.Sprintf("        name=\"%s\"\n", escapeQuotes(c.Name)))
		sb.WriteString(fmt.Sprintf("        description=\"%s\"\n", escapeQuotes(c.Description)))
		if c.Category != "" {
			sb.WriteString(fmt.Sprintf("        category=\"%s\"\n", escapeQuotes(c.Category)))
		}
		sb.WriteString(fmt.Sprintf("        confidence=\"%.2f\"\n", c.Confidence))
		sb.WriteString("    ];\n\n")
	}

	for _, key := range s.edgeOrder {
		e := s.edges[key]
		sb.WriteString(fmt.Sprintf("    \"%s\" -> \"%s\" [relation=\"%s\", weight=\"%.2f\"];\n",
			e.Source, e.Target, e.Type, e.Weight))
	}

	sb.WriteString("}\n")
	return sb.String()
}

// FromDOT parses a DOT document previously produced by ToDOT (or edited by
// hand) into a fresh store. Unknown relation attributes default to related-to
// rather than failing the whole import.
func FromDOT(content string) (*Store, error) {
	s := NewStore()
	if strings.TrimSpace(content) == "" {
		return s, nil
	}

	graphAst, err := gographviz.ParseString(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DOT: %w", err)
	}
	parsed := gographviz.NewGraph()
	if err := gographviz.Analyse(graphAst, parsed); err != nil {
		return nil, fmt.Errorf("failed to analyze DOT: %w", err)
	}

	for nodeName, node := range parsed.Nodes.Lookup {
		id := unquote(nodeName)
		name := getAttr(node.Attrs, "name")
		if name == "" {
			name = id
		}
		confidence := 1.0
		if v := getAttr(node.Attrs, "confidence"); v != "" {
			if f, perr := strconv.ParseFloat(v, 64); perr == nil {
				confidence = f
			}
		}
		_, _, uerr := s.UpsertConcept(Concept{
			Name:        name,
			Description: getAttr(node.Attrs, "description"),
			Category:    getAttr(node.Attrs, "category"),
			Confidence:  confidence,
			Provenance:  []string{"dot-import"},
		})
		if uerr != nil {
			return nil, fmt.Errorf("DOT node %q: %w", id, uerr)
		}
	}

	for _, edge := range parsed.Edges.Edges {
		relType := RelationType(getAttr(edge.Attrs, "relation"))
		if !relType.IsValid() {
			relType = RelRelated
		}
		weight := 1.0
		if v := getAttr(edge.Attrs, "weight"); v != "" {
			if f, perr := strconv.ParseFloat(v, 64); perr == nil {
				weight = f
			}
		}
		rel := Relationship{
			Source:     NormalizeName(unquote(edge.Src)),
			Target:     NormalizeName(unquote(edge.Dst)),
			Type:       relType,
			Weight:     weight,
			Provenance: []string{"dot-import"},
		}
		if _, uerr := s.UpsertEdge(rel); uerr != nil {
			return nil, fmt.Errorf("DOT edge %s -> %s: %w", edge.Src, edge.Dst, uerr)
		}
	}

	return s, nil
}

// unquote removes surrounding quotes from a string if present.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// getAttr extracts an attribute value from gographviz Attrs, unquoting it.
func getAttr(attrs gographviz.Attrs, key string) string {
	for k, v := range attrs {
		if string(k) == key {
			return unquote(v)
		}
	}
	return ""
}

// escapeQuotes escapes double quotes in strings for DOT format.
func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
