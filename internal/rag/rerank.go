package rag

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

const (
	lexicalLengthScale = float32(10.0)
	maxLexicalScore    = float32(0.4)
	pathMatchBonus     = float32(0.1)
)

var lexicalStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {},
}

// Rerank reorders results by vector similarity plus a lexical bonus for
// query terms found in the chunk text, its source path or its title.
// Distances are left untouched; ties keep their vector order.
func Rerank(query string, results []QueryResult) []QueryResult {
	if len(results) < 2 {
		return results
	}

	scores := make(map[string]float32, len(results))
	for _, r := range results {
		scores[r.ID] = (1 - r.Distance) + lexicalScore(query, r.Document, labelOf(r))
	}

	out := append([]QueryResult(nil), results...)
	sort.SliceStable(out, func(i, j int) bool {
		return scores[out[i].ID] > scores[out[j].ID]
	})
	return out
}

// labelOf joins the source path and markdown title of a result.
func labelOf(r QueryResult) string {
	var parts []string
	if source, ok := r.Metadata[SourceField].(string); ok {
		parts = append(parts, source)
	}
	if title, ok := r.Metadata["title"].(string); ok {
		parts = append(parts, title)
	}
	return strings.Join(parts, " ")
}

// lexicalScore computes a lightweight lexical relevance score for a chunk relative to a query.
// The score is normalized to remain in a predictable range so it can be blended with vector scores.
func lexicalScore(query, chunkText, label string) float32 {
	queryTokens := filterStopwords(tokenize(query))
	if len(queryTokens) == 0 {
		return 0
	}

	chunkTokens := tokenize(chunkText)
	if len(chunkTokens) == 0 {
		return 0
	}

	chunkFreq := make(map[string]int, len(chunkTokens))
	for _, token := range chunkTokens {
		chunkFreq[token]++
	}

	var rawMatches int
	for _, token := range queryTokens {
		rawMatches += chunkFreq[token]
	}

	score := (float32(rawMatches) / (1 + float32(len(chunkTokens)))) * lexicalLengthScale

	if labelTokens := tokenize(label); len(labelTokens) > 0 {
		labelSet := make(map[string]struct{}, len(labelTokens))
		for _, token := range labelTokens {
			labelSet[token] = struct{}{}
		}
		var labelMatches int
		for _, token := range queryTokens {
			if _, ok := labelSet[token]; ok {
				labelMatches++
			}
		}
		score += float32(labelMatches) * pathMatchBonus
	}

	if score > maxLexicalScore {
		return maxLexicalScore
	}
	return score
}

// tokenize lowercases text and splits it on anything that is not a letter or
// digit, so "internal/http/router.go" yields internal, http, router, go.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	tokens := strings.Fields(builder.String())
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

func filterStopwords(tokens []string) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := lexicalStopwords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// String renders a result as "source#chunk (distance)" for CLI output.
func (r QueryResult) String() string {
	source, _ := r.Metadata[SourceField].(string)
	return fmt.Sprintf("%s#%v (distance %.4f)", source, r.Metadata["chunk_index"], r.Distance)
}
