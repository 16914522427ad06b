package match

import (
	"math"
	"strings"

	"github.com/partscope/partscope/pkg/parts"
)

// corpus holds TF-IDF document vectors over the catalog's description text.
// IDF is computed once per catalog snapshot so repeated matches against the
// same snapshot are cheap and reproducible.
type corpus struct {
	idf  map[string]float64
	docs []map[string]float64
}

func buildCorpus(descriptions []string) *corpus {
	tokenized := make([][]string, len(descriptions))
	df := map[string]int{}
	for i, d := range descriptions {
		tokens := tokenize(d)
		tokenized[i] = tokens
		seen := map[string]bool{}
		for _, tok := range tokens {
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}

	n := float64(len(descriptions))
	idf := make(map[string]float64, len(df))
	for tok, count := range df {
		idf[tok] = math.Log((n+1)/(float64(count)+1)) + 1
	}

	c := &corpus{idf: idf, docs: make([]map[string]float64, len(descriptions))}
	for i, tokens := range tokenized {
		c.docs[i] = c.vector(tokens)
	}
	return c
}

// vector builds a TF-IDF weighted term vector. Unknown terms get the IDF of
// an unseen token so a query can still be projected onto the corpus.
func (c *corpus) vector(tokens []string) map[string]float64 {
	if len(tokens) == 0 {
		return nil
	}
	tf := map[string]float64{}
	for _, tok := range tokens {
		tf[tok]++
	}
	unseenIDF := math.Log(float64(len(c.docs)+1)) + 1
	out := make(map[string]float64, len(tf))
	for tok, count := range tf {
		idf, ok := c.idf[tok]
		if !ok {
			idf = unseenIDF
		}
		out[tok] = (count / float64(len(tokens))) * idf
	}
	return out
}

// similarity is the cosine of the query vector and document i.
func (c *corpus) similarity(query map[string]float64, i int) float64 {
	return cosine(query, c.docs[i])
}

func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for tok, wa := range a {
		normA += wa * wa
		if wb, ok := b[tok]; ok {
			dot += wa * wb
		}
	}
	for _, wb := range b {
		normB += wb * wb
	}
	if dot == 0 || normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(parts.NormalizeText(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}
