package utils

import (
	"testing"
	"unicode/utf8"
)

type payload struct {
	Concepts []struct {
		Name string `json:"name"`
	} `json:"concepts"`
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantNames int
		wantErr   bool
	}{
		{
			name:      "plain JSON",
			input:     `{"concepts":[{"name":"attention"}]}`,
			wantNames: 1,
		},
		{
			name:      "json code fence",
			input:     "Here you go:\n```json\n{\"concepts\":[{\"name\":\"attention\"}]}\n```",
			wantNames: 1,
		},
		{
			name:      "bare code fence",
			input:     "```\n{\"concepts\":[{\"name\":\"attention\"}]}\n```",
			wantNames: 1,
		},
		{
			name:      "truncated after array element",
			input:     `{"concepts":[{"name":"attention"}`,
			wantNames: 1,
		},
		{
			name:    "not JSON at all",
			input:   "I could not produce a graph, sorry.",
			wantErr: true,
		},
		{
			name:    "array instead of object",
			input:   `[1,2,3`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			err := ExtractJSON(tt.input, &p)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractJSON failed: %v", err)
			}
			if len(p.Concepts) != tt.wantNames {
				t.Errorf("got %d concepts, want %d", len(p.Concepts), tt.wantNames)
			}
		})
	}
}

func TestRepairTruncatedString(t *testing.T) {
	var got struct {
		Names []string `json:"names"`
	}
	// Cut off inside a string value: the repair closes the string, the
	// array, and the object.
	if err := ExtractJSON(`{"names":["attention","softm`, &got); err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	if len(got.Names) != 2 || got.Names[1] != "softm" {
		t.Errorf("repaired names = %v", got.Names)
	}
}

func TestStripCodeFencesKeepsNestedFences(t *testing.T) {
	input := "```json\n{\"text\":\"use ```go blocks```\"}\n```"
	got := StripCodeFences(input)
	if got != `{"text":"use ` + "```go blocks```" + `"}` {
		t.Errorf("nested fences mangled: %q", got)
	}
}

func TestTrimToTokens(t *testing.T) {
	tc, err := NewTokenCounter("gpt-4")
	if err != nil {
		t.Fatalf("failed to create counter: %v", err)
	}

	text := "line one about transformers\nline two about attention\nline three about caches"
	budget := tc.CountTokens("line one about transformers\nline two about attention")
	got := tc.TrimToTokens(text, budget)
	if got != "line one about transformers\nline two about attention" {
		t.Errorf("trim result = %q", got)
	}

	// Within budget: untouched.
	if tc.TrimToTokens(text, 10000) != text {
		t.Error("text within budget was modified")
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  string
	}{
		{"ascii cut", "abcdef", 3, "abc"},
		{"within limit", "abc", 10, "abc"},
		{"cut lands mid rune", "aé", 2, "a"}, // é is two bytes starting at index 1
		{"cut after full rune", "aé", 3, "aé"},
		{"multibyte only", "ééé", 3, "é"},
		{"zero limit", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.input, tt.limit)
			if got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.limit, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("Truncate produced invalid UTF-8: %q", got)
			}
		})
	}
}

func TestCountTokensFallback(t *testing.T) {
	var tc *TokenCounter // nil counter falls back to character estimate
	if got := tc.CountTokens("12345678"); got != 2 {
		t.Errorf("fallback estimate = %d, want 2", got)
	}
}
