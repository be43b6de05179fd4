package main

import (
	"fmt"
	"math"
	"strings"
)

// Factor weights for the multi-factor scorer. A weight only enters the
// denominator when its signal is present, so items missing optional data
// are renormalized, not penalized.
const (
	weightCategory  = 0.30
	weightFeatures  = 0.25
	weightEmbedding = 0.20
	weightLocation  = 0.15
	weightText      = 0.10

	featureOverlapGate   = 0.3
	embeddingGate        = 0.7
	textOverlapGate      = 0.3
	nearbyLocationCredit = 0.08
)

type SimilarityResult struct {
	Score       float64
	MatchType   string // "visual", "metadata", or "hybrid"
	Confidence  float64
	Explanation []string
}

// ScoreItems compares two item records of opposite type and produces a
// normalized match score with an explanation per applied factor. Pure
// function: no mutation, deterministic for fixed inputs, and numerically
// symmetric in its arguments.
func ScoreItems(a, b Item, groups *LocationGroups) SimilarityResult {
	var explanation []string
	var totalScore, weights float64

	// 1. Category exact match
	if a.Category != "" && a.Category == b.Category {
		totalScore += weightCategory
		weights += weightCategory
		explanation = append(explanation, fmt.Sprintf("Same category: %s", a.Category))
	}

	// 2. AI feature overlap
	if a.Classification != nil && b.Classification != nil {
		overlap := FeatureOverlap(a.Classification.Features, b.Classification.Features)
		if overlap > featureOverlapGate {
			totalScore += overlap * weightFeatures
			weights += weightFeatures
			explanation = append(explanation, fmt.Sprintf("%d%% visual feature match", int(math.Round(overlap*100))))
		}
	}

	// 3. Embedding similarity
	if len(a.Embedding) > 0 && len(b.Embedding) > 0 {
		sim := CosineSimilarity(a.Embedding, b.Embedding)
		if sim > embeddingGate {
			totalScore += sim * weightEmbedding
			weights += weightEmbedding
			explanation = append(explanation, fmt.Sprintf("%d%% visual embedding match", int(math.Round(sim*100))))
		}
	}

	// 4. Location proximity: full weight for the same name, partial credit
	// for the same predefined group. The full weight is applied either way
	// so a nearby-only match is scored against the same denominator.
	if a.LocationName != "" && b.LocationName != "" {
		if strings.EqualFold(a.LocationName, b.LocationName) {
			totalScore += weightLocation
			weights += weightLocation
			explanation = append(explanation, fmt.Sprintf("Found at same location: %s", a.LocationName))
		} else if groups.SameGroup(a.LocationName, b.LocationName) {
			totalScore += nearbyLocationCredit
			weights += weightLocation
			explanation = append(explanation, "Found at nearby location")
		}
	}

	// 5. Description text overlap
	descSim := TextOverlap(a.Description, b.Description)
	if descSim > textOverlapGate {
		totalScore += descSim * weightText
		weights += weightText
		explanation = append(explanation, fmt.Sprintf("%d%% description similarity", int(math.Round(descSim*100))))
	}

	score := 0.0
	if weights > 0 {
		score = totalScore / weights
	}

	matchType := "metadata"
	switch {
	case len(explanation) > 2:
		matchType = "hybrid"
	case a.Classification != nil && b.Classification != nil:
		matchType = "visual"
	}

	confidence := math.Min(0.95, 0.60+float64(len(explanation))*0.08)

	return SimilarityResult{
		Score:       math.Round(score*100) / 100,
		MatchType:   matchType,
		Confidence:  math.Round(confidence*100) / 100,
		Explanation: explanation,
	}
}

// FeatureOverlap is a case-insensitive set intersection over feature tags,
// divided by the larger collection's size.
func FeatureOverlap(features1, features2 []string) float64 {
	if len(features1) == 0 || len(features2) == 0 {
		return 0
	}
	set1 := make(map[string]bool, len(features1))
	for _, f := range features1 {
		set1[strings.ToLower(f)] = true
	}
	set2 := make(map[string]bool, len(features2))
	for _, f := range features2 {
		set2[strings.ToLower(f)] = true
	}

	matches := 0
	for f := range set1 {
		if set2[f] {
			matches++
		}
	}
	larger := len(features1)
	if len(features2) > larger {
		larger = len(features2)
	}
	return float64(matches) / float64(larger)
}

// TextOverlap compares two descriptions by shared words longer than three
// characters, divided by the larger token count.
func TextOverlap(text1, text2 string) float64 {
	words1 := significantWords(text1)
	words2 := significantWords(text2)
	if len(words1) == 0 || len(words2) == 0 {
		return 0
	}

	set1 := make(map[string]bool, len(words1))
	for _, w := range words1 {
		set1[w] = true
	}
	set2 := make(map[string]bool, len(words2))
	for _, w := range words2 {
		set2[w] = true
	}

	matches := 0
	for w := range set1 {
		if set2[w] {
			matches++
		}
	}
	larger := len(words1)
	if len(words2) > larger {
		larger = len(words2)
	}
	return float64(matches) / float64(larger)
}

func significantWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len(w) > 3 {
			out = append(out, w)
		}
	}
	return out
}

// LocationNameOverlap compares two location names word by word, used by the
// metadata search pass (distinct from the scorer's exact/group factor).
func LocationNameOverlap(loc1, loc2 string) float64 {
	if strings.EqualFold(strings.TrimSpace(loc1), strings.TrimSpace(loc2)) {
		return 1.0
	}
	words1 := strings.Fields(strings.ToLower(loc1))
	words2 := strings.Fields(strings.ToLower(loc2))
	if len(words1) == 0 || len(words2) == 0 {
		return 0
	}
	set2 := make(map[string]bool, len(words2))
	for _, w := range words2 {
		set2[w] = true
	}
	matches := 0
	for _, w := range words1 {
		if set2[w] {
			matches++
		}
	}
	larger := len(words1)
	if len(words2) > larger {
		larger = len(words2)
	}
	return float64(matches) / float64(larger)
}
