// Package search provides case-insensitive substring search over clipboard
// items, with match highlighting for terminal and web frontends. It operates
// on in-memory item slices; persistent-store queries live in the storage
// layer and this engine refines or decorates their results.
package search

import (
	"strings"

	"clipvault/pkg/types"
)

// Match pairs an item with the positions of the query inside its content.
type Match struct {
	Item      *types.Item
	Positions []Position
}

// Position is a half-open byte range [Start, End) of one occurrence.
type Position struct {
	Start int
	End   int
}

// Engine performs case-insensitive substring matching. The zero value is
// ready to use.
type Engine struct{}

// NewEngine creates a search engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Search returns the items whose content contains query, preserving input
// order. An empty or whitespace-only query matches everything. Image items
// match on their preview text since their content is a file path.
func (e *Engine) Search(items []*types.Item, query string) []*types.Item {
	query = strings.TrimSpace(query)
	if query == "" {
		return items
	}

	lq := strings.ToLower(query)
	var out []*types.Item
	for _, item := range items {
		if strings.Contains(strings.ToLower(e.searchText(item)), lq) {
			out = append(out, item)
		}
	}
	return out
}

// SearchWithPositions is Search plus the byte ranges of every occurrence,
// for callers that render highlights.
func (e *Engine) SearchWithPositions(items []*types.Item, query string) []Match {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	var out []Match
	for _, item := range items {
		positions := findPositions(e.searchText(item), query)
		if len(positions) > 0 {
			out = append(out, Match{Item: item, Positions: positions})
		}
	}
	return out
}

// Highlight wraps every occurrence of query in text with the given markers,
// preserving the original casing of the matched runs.
func (e *Engine) Highlight(text, query, openTag, closeTag string) string {
	positions := findPositions(text, query)
	if len(positions) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(positions)*(len(openTag)+len(closeTag)))

	prev := 0
	for _, p := range positions {
		b.WriteString(text[prev:p.Start])
		b.WriteString(openTag)
		b.WriteString(text[p.Start:p.End])
		b.WriteString(closeTag)
		prev = p.End
	}
	b.WriteString(text[prev:])
	return b.String()
}

func (e *Engine) searchText(item *types.Item) string {
	if item.ContentType == types.TypeImage {
		return item.Preview
	}
	return item.Content
}

// findPositions locates non-overlapping case-insensitive occurrences of
// query in text.
func findPositions(text, query string) []Position {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	lt := strings.ToLower(text)
	lq := strings.ToLower(query)

	var positions []Position
	for start := 0; ; {
		i := strings.Index(lt[start:], lq)
		if i < 0 {
			break
		}
		abs := start + i
		positions = append(positions, Position{Start: abs, End: abs + len(lq)})
		start = abs + len(lq)
	}
	return positions
}
