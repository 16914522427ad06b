// Package match ranks cached catalog records against a query part using a
// weighted blend of part-number edit distance and TF-IDF description
// similarity. An identical normalized manufacturer part number short-circuits
// fuzzy scoring entirely.
package match

import (
	"sort"
	"strconv"

	"github.com/agnivade/levenshtein"

	"github.com/partscope/partscope/pkg/parts"
)

const (
	DefaultTokenWeight = 0.6
	DefaultTFIDFWeight = 0.4
	DefaultMinScore    = 0.3
)

// Result is one ranked candidate for a query.
type Result struct {
	Record  parts.Record `json:"record"`
	Score   float64      `json:"score"`
	IsExact bool         `json:"is_exact"`
}

// Engine holds the scoring configuration. The zero value uses the defaults,
// which favor part-number similarity.
type Engine struct {
	TokenWeight float64
	TFIDFWeight float64
	MinScore    float64
}

func (e Engine) withDefaults() Engine {
	if e.TokenWeight == 0 && e.TFIDFWeight == 0 {
		e.TokenWeight = DefaultTokenWeight
		e.TFIDFWeight = DefaultTFIDFWeight
	}
	if e.MinScore == 0 {
		e.MinScore = DefaultMinScore
	}
	return e
}

// Match scores every catalog record against the query and returns the top K,
// highest similarity first; ties break on lower unit price, then part number.
// Given the same catalog snapshot and query the output is reproducible. An
// empty catalog yields an empty result, never an error.
func (e Engine) Match(query parts.Query, catalog []parts.Record, topK int) []Result {
	if len(catalog) == 0 || topK <= 0 {
		return nil
	}
	e = e.withDefaults()

	queryPN := parts.NormalizePartNumber(query.PartNumber)

	descriptions := make([]string, len(catalog))
	for i, r := range catalog {
		descriptions[i] = r.Description
	}
	c := buildCorpus(descriptions)
	queryVec := c.vector(tokenize(query.Description))

	results := make([]Result, 0, len(catalog))
	for i, r := range catalog {
		if queryPN != "" && queryPN == normalizedMPN(r) {
			results = append(results, Result{Record: r, Score: 1.0, IsExact: true})
			continue
		}

		score := e.score(queryPN, queryVec, c, i, r)
		if score >= e.MinScore {
			results = append(results, Result{Record: r, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.IsExact != b.IsExact {
			return a.IsExact
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		pa, aok := priceValue(a.Record)
		pb, bok := priceValue(b.Record)
		if aok != bok {
			return aok // priced records ahead of unpriced on ties
		}
		if aok && pa != pb {
			return pa < pb
		}
		return a.Record.PartNumber < b.Record.PartNumber
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// score blends the available similarity components, normalizing by the
// weights that actually apply: a query without a description is scored on
// part number alone rather than being penalized for the missing text.
func (e Engine) score(queryPN string, queryVec map[string]float64, c *corpus, i int, r parts.Record) float64 {
	var total, weight float64

	if queryPN != "" {
		if candPN := normalizedMPN(r); candPN != "" {
			total += e.TokenWeight * tokenSimilarity(queryPN, candPN)
			weight += e.TokenWeight
		}
	}
	if len(queryVec) > 0 && r.Description != "" {
		total += e.TFIDFWeight * c.similarity(queryVec, i)
		weight += e.TFIDFWeight
	}

	if weight == 0 {
		return 0
	}
	score := total / weight
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// tokenSimilarity is a normalized edit-distance ratio in [0,1].
func tokenSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(maxLen)
}

// normalizedMPN prefers the manufacturer part number, falling back to the
// supplier's listing number when the MPN was not extracted.
func normalizedMPN(r parts.Record) string {
	if pn := parts.NormalizePartNumber(r.MPN); pn != "" {
		return pn
	}
	return parts.NormalizePartNumber(r.PartNumber)
}

func priceValue(r parts.Record) (float64, bool) {
	if r.Price == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(r.Price, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
