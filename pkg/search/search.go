// Package search defines the search provider collaborator consumed by
// the searching phase, plus a web-backed implementation and a mock for
// tests. The workflow core only requires that results be renderable as
// text for summarization.
package search

import (
	"context"
	"fmt"
	"strings"
)

// Result is one search hit.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Provider is the search collaborator interface.
type Provider interface {
	// Search runs one query and returns ordered results.
	Search(ctx context.Context, query string) ([]Result, error)

	// Name identifies the provider for logging.
	Name() string
}

// RenderResults flattens results into text suitable for summarization.
func RenderResults(results []Result) string {
	if len(results) == 0 {
		return "(no results)"
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, r.Title)
		if r.URL != "" {
			fmt.Fprintf(&b, "%s\n", r.URL)
		}
		if r.Snippet != "" {
			b.WriteString(strings.TrimSpace(r.Snippet))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
