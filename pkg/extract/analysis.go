// Package extract performs the initial extraction round: it turns a repo
// scanner's analysis output into the first batch of concept and edge
// candidates via an LLM.
package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"coursegraph/pkg/utils"
)

// RepoAnalysis is the repo scanner's output consumed as extraction context.
// The extraction core treats it as opaque descriptive data.
type RepoAnalysis struct {
	RepoName    string       `json:"repo_name"`
	Modules     []ModuleInfo `json:"modules"`
	Components  []Component  `json:"components"`
	KeyCommits  []Commit     `json:"key_commits"`
	DocSummary  []DocEntry   `json:"doc_summaries"`
	AnalyzedAt  string       `json:"analyzed_at,omitempty"`
	CommitCount int          `json:"commit_count,omitempty"`
}

// ModuleInfo describes one module or model family found in the repo.
type ModuleInfo struct {
	Name            string   `json:"name"`
	FirstCommitDate string   `json:"first_commit_date,omitempty"`
	Classes         []string `json:"classes,omitempty"`
}

// Component describes a shared component of the repo.
type Component struct {
	Name     string   `json:"name"`
	Type     string   `json:"type,omitempty"`
	File     string   `json:"file,omitempty"`
	Count    int      `json:"count,omitempty"`
	Examples []string `json:"examples,omitempty"`
}

// Commit is one architecturally significant commit.
type Commit struct {
	Date    string `json:"date"`
	Message string `json:"message"`
	Keyword string `json:"keyword,omitempty"`
}

// DocEntry is a summarized documentation page.
type DocEntry struct {
	Module  string `json:"module"`
	Summary string `json:"summary"`
}

// LoadAnalysis reads a repo analysis JSON file.
func LoadAnalysis(path string) (*RepoAnalysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis file: %w", err)
	}
	var a RepoAnalysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse analysis file %s: %w", path, err)
	}
	return &a, nil
}

// Summary renders the analysis as prompt context, capping each section so
// huge repos do not blow the context window.
func (a *RepoAnalysis) Summary() string {
	const (
		maxModules = 50
		maxCommits = 40
		maxDocs    = 40
	)

	var sb strings.Builder
	name := a.RepoName
	if name == "" {
		name = "the repository"
	}
	sb.WriteString(fmt.Sprintf("Analysis of %s:\n\n", name))

	sb.WriteString(fmt.Sprintf("## Modules (%d total, showing first %d):\n", len(a.Modules), capped(len(a.Modules), maxModules)))
	for _, m := range firstN(a.Modules, maxModules) {
		date := m.FirstCommitDate
		if date == "" {
			date = "unknown"
		}
		sb.WriteString(fmt.Sprintf("- **%s** (first commit: %s): %s\n", m.Name, date, strings.Join(firstN(m.Classes, 5), ", ")))
	}

	sb.WriteString("\n## Shared components:\n")
	for _, c := range a.Components {
		if len(c.Examples) > 0 {
			sb.WriteString(fmt.Sprintf("- %s: %d variants, e.g. %s\n", c.Name, c.Count, strings.Join(firstN(c.Examples, 5), ", ")))
		} else {
			sb.WriteString(fmt.Sprintf("- %s (%s)\n", c.Name, c.File))
		}
	}

	sb.WriteString(fmt.Sprintf("\n## Key commits (%d total, showing first %d):\n", len(a.KeyCommits), capped(len(a.KeyCommits), maxCommits)))
	for _, c := range firstN(a.KeyCommits, maxCommits) {
		sb.WriteString(fmt.Sprintf("- [%s] %s\n", c.Date, c.Message))
	}

	sb.WriteString(fmt.Sprintf("\n## Documentation summaries (%d total, showing first %d):\n", len(a.DocSummary), capped(len(a.DocSummary), maxDocs)))
	for _, d := range firstN(a.DocSummary, maxDocs) {
		sb.WriteString(fmt.Sprintf("- **%s**: %s\n", d.Module, utils.Truncate(d.Summary, 200)))
	}

	return sb.String()
}

// ModuleNames returns up to n module names, for the simplified retry prompt.
func (a *RepoAnalysis) ModuleNames(n int) []string {
	out := make([]string, 0, n)
	for _, m := range firstN(a.Modules, n) {
		out = append(out, m.Name)
	}
	return out
}

func firstN[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func capped(n, limit int) int {
	if n < limit {
		return n
	}
	return limit
}
