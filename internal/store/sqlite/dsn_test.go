package sqlite

import (
	"strings"
	"testing"
)

func TestParseDSN(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantPath   string
		wantMemory bool
		wantQuery  string
	}{
		{name: "memory", input: "sqlite://:memory:", wantPath: ":memory:", wantMemory: true},
		{name: "absolute path", input: "sqlite:///var/lib/pipeworks.db", wantPath: "/var/lib/pipeworks.db"},
		{name: "dot relative path", input: "sqlite://./pipeworks.db", wantPath: "./pipeworks.db"},
		{name: "bare relative path", input: "sqlite://data/pipeworks.db", wantPath: "./data/pipeworks.db"},
		{name: "escaped path", input: "sqlite://my%20data.db", wantPath: "./my data.db"},
		{name: "keeps caller query", input: "sqlite://data.db?cache=shared", wantPath: "./data.db", wantQuery: "cache=shared"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, memory, err := parseDSN(tt.input)
			if err != nil {
				t.Fatalf("parseDSN(%q) error: %v", tt.input, err)
			}
			if memory != tt.wantMemory {
				t.Fatalf("parseDSN(%q) memory = %v, want %v", tt.input, memory, tt.wantMemory)
			}
			path, query, _ := strings.Cut(got, "?")
			if path != tt.wantPath {
				t.Errorf("parseDSN(%q) path = %q, want %q", tt.input, path, tt.wantPath)
			}
			if !strings.Contains(query, "_txlock=immediate") {
				t.Errorf("parseDSN(%q) = %q, missing _txlock", tt.input, got)
			}
			if tt.wantQuery != "" && !strings.HasPrefix(query, tt.wantQuery+"&") {
				t.Errorf("parseDSN(%q) = %q, want caller query first", tt.input, got)
			}
		})
	}
}

func TestParseDSNRejectsOtherSchemes(t *testing.T) {
	for _, input := range []string{"postgres://localhost/db", "file:test.db", "sqlite://"} {
		if _, _, err := parseDSN(input); err == nil {
			t.Errorf("parseDSN(%q) expected error", input)
		}
	}
}
