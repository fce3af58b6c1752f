package memory

import (
	"math"
	"sort"
	"strings"
)

// stopwords excluded from keyword extraction.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "for": true,
	"with": true, "that": true, "this": true, "it": true, "as": true, "by": true,
	"from": true, "you": true, "your": true, "my": true, "me": true, "we": true,
	"they": true, "he": true, "she": true, "his": true, "her": true, "their": true,
	"not": true, "no": true, "so": true, "do": true, "did": true, "have": true,
	"has": true, "had": true, "will": true, "would": true, "can": true, "could": true,
}

// extractKeywords pulls the content-bearing tokens out of text, deduplicated
// in first-seen order.
func extractKeywords(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range tokenize(text) {
		if stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// tokenize splits text into lowercase word tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '_' || r == '-' ||
			r > 127) // keep unicode chars
	})
	result := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.ToLower(f)
		if len(w) > 1 { // skip single chars
			result = append(result, w)
		}
	}
	return result
}

// keywordSimilarity computes overlap between a query's keywords and a
// record's content. Uses a combination of exact match ratio and TF-like
// weighting.
func keywordSimilarity(keywords []string, content string) float64 {
	if len(keywords) == 0 {
		return 0
	}

	target := strings.ToLower(content)
	targetWords := tokenize(target)
	targetSet := make(map[string]bool, len(targetWords))
	for _, w := range targetWords {
		targetSet[w] = true
	}

	var matched int
	var weightedScore float64
	for _, kw := range keywords {
		kwLower := strings.ToLower(kw)
		if targetSet[kwLower] {
			matched++
			weightedScore += 1.0
		} else if strings.Contains(target, kwLower) {
			matched++
			weightedScore += 0.7 // partial substring match
		}
	}

	if matched == 0 {
		return 0
	}

	// Jaccard-inspired: overlap / union
	overlap := float64(matched)
	union := float64(len(keywords) + len(targetSet) - matched)
	jaccard := overlap / math.Max(union, 1)

	// Coverage: what fraction of input keywords matched
	coverage := weightedScore / float64(len(keywords))

	// Blend both signals
	return 0.4*jaccard + 0.6*coverage
}

// cosineSimilarity between two embedding vectors. Mismatched or empty
// vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// sortScored sorts retrieval results by score descending.
func sortScored(results []Scored) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
