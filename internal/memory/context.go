package memory

import (
	"fmt"
	"strings"
	"time"
)

// ContextBlock is a chunk of memory-derived context for LLM injection.
type ContextBlock struct {
	Source        string  `json:"source"` // layer name or concept name
	Content       string  `json:"content"`
	Relevance     float64 `json:"relevance"`
	TokenEstimate int     `json:"token_estimate"`
}

// ContextBudget controls how much memory context to inject.
type ContextBudget struct {
	MaxTokens int // total token budget for memory context
	MaxBlocks int // max number of context blocks
}

// DefaultContextBudget returns sensible defaults.
func DefaultContextBudget() ContextBudget {
	return ContextBudget{
		MaxTokens: 2000,
		MaxBlocks: 10,
	}
}

// BuildContext assembles memory context for a completion call: the working
// set first, then ranked episodic recall, then matching concepts, packed
// into blocks within budget.
func (b *Bank) BuildContext(query string, queryEmb []float32, budget ContextBudget, now time.Time) []ContextBlock {
	if budget.MaxTokens == 0 {
		budget = DefaultContextBudget()
	}

	var blocks []ContextBlock
	usedTokens := 0
	add := func(source, content string, relevance float64) bool {
		if len(blocks) >= budget.MaxBlocks {
			return false
		}
		est := estimateTokens(content)
		if usedTokens+est > budget.MaxTokens {
			return true // skip this block, smaller ones may still fit
		}
		blocks = append(blocks, ContextBlock{
			Source:        source,
			Content:       content,
			Relevance:     relevance,
			TokenEstimate: est,
		})
		usedTokens += est
		return true
	}

	for _, rec := range b.WorkingSnapshot() {
		if !add("working", rec.Content, rec.Salience) {
			break
		}
	}
	for _, s := range b.Retrieve(query, queryEmb, budget.MaxBlocks, now) {
		if !add("episodic", s.Record.Content, s.Score) {
			break
		}
	}
	for _, c := range b.Concepts(query, queryEmb, 3) {
		if !add("concept:"+c.Name, c.Description, c.Strength) {
			break
		}
	}
	return blocks
}

// FormatContextPrompt renders memory blocks as a system prompt section.
func FormatContextPrompt(blocks []ContextBlock) string {
	if len(blocks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[Memory Context]\n")
	for _, block := range blocks {
		fmt.Fprintf(&b, "- %s (relevance: %.2f): %s\n", block.Source, block.Relevance, block.Content)
	}
	return b.String()
}

// estimateTokens gives a rough token count (~4 chars per token).
func estimateTokens(s string) int {
	n := len(s) / 4
	if n < 1 {
		return 1
	}
	return n
}
