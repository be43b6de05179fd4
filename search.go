package main

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

const (
	classMatchPoolSize  = 10
	searchResultLimit   = 5
	visualMatchFloor    = 0.5
	metadataMatchFloor  = 0.3
	metadataLocWeight   = 0.4
	metadataDateWeight  = 0.3
	metadataCatWeight   = 0.3
	dateDecayDays       = 30.0
	compositeClassShare = 0.4
	compositeVisualShare = 0.3
	compositeMetaShare  = 0.3
)

type SearchMatch struct {
	ItemID      string
	Similarity  float64
	MatchType   string // "class_match", "visual_match", or "metadata_match"
	Confidence  float64
	Explanation string
}

type MetadataFilter struct {
	LocationName string
	DateFrom     time.Time
	DateTo       time.Time
	Category     string
}

func (f MetadataFilter) empty() bool {
	return f.LocationName == "" && f.Category == "" && f.DateFrom.IsZero() && f.DateTo.IsZero()
}

type HierarchicalSearchResult struct {
	ClassMatches    []SearchMatch
	VisualMatches   []SearchMatch
	MetadataMatches []SearchMatch
	CompositeScore  float64
	SearchTimeMs    int64
}

// HierarchicalSearch runs three independent retrieval passes over the
// candidate population and combines their best scores. The passes never
// short-circuit each other: a query without detections, embedding, or
// metadata is valid and simply leaves that pass empty.
func HierarchicalSearch(
	candidates []Item,
	detectedObjects []DetectedObject,
	queryEmbedding []float64,
	filter MetadataFilter,
	store *EmbeddingStore,
) HierarchicalSearchResult {
	start := time.Now()

	classMatches := findClassMatches(detectedObjects, candidates)
	visualMatches := findVisualMatches(queryEmbedding, candidates, store)
	metadataMatches := findMetadataMatches(filter, candidates)

	composite := compositeClassShare*bestSimilarity(classMatches) +
		compositeVisualShare*bestSimilarity(visualMatches) +
		compositeMetaShare*bestSimilarity(metadataMatches)

	return HierarchicalSearchResult{
		ClassMatches:    topN(classMatches, searchResultLimit),
		VisualMatches:   topN(visualMatches, searchResultLimit),
		MetadataMatches: topN(metadataMatches, searchResultLimit),
		CompositeScore:  composite,
		SearchTimeMs:    time.Since(start).Milliseconds(),
	}
}

// findClassMatches intersects the query's detected classes with each
// candidate's detected classes.
func findClassMatches(detectedObjects []DetectedObject, candidates []Item) []SearchMatch {
	if len(detectedObjects) == 0 {
		return nil
	}
	queryClasses := make(map[string]bool, len(detectedObjects))
	for _, obj := range detectedObjects {
		queryClasses[strings.ToLower(obj.Class)] = true
	}

	var matches []SearchMatch
	for _, item := range candidates {
		if len(item.DetectedObjects) == 0 {
			continue
		}
		itemClasses := make(map[string]bool, len(item.DetectedObjects))
		for _, obj := range item.DetectedObjects {
			itemClasses[strings.ToLower(obj.Class)] = true
		}

		var intersection []string
		for cls := range queryClasses {
			if itemClasses[cls] {
				intersection = append(intersection, cls)
			}
		}
		if len(intersection) == 0 {
			continue
		}

		larger := len(queryClasses)
		if len(itemClasses) > larger {
			larger = len(itemClasses)
		}
		similarity := float64(len(intersection)) / float64(larger)

		// Confidence: mean detection confidence over intersecting classes.
		var confSum float64
		var confCount int
		for _, obj := range item.DetectedObjects {
			cls := strings.ToLower(obj.Class)
			for _, hit := range intersection {
				if cls == hit {
					confSum += obj.Confidence
					confCount++
					break
				}
			}
		}
		confidence := 0.0
		if confCount > 0 {
			confidence = confSum / float64(confCount)
		}

		sort.Strings(intersection)
		matches = append(matches, SearchMatch{
			ItemID:      item.ID,
			Similarity:  similarity,
			MatchType:   "class_match",
			Confidence:  confidence,
			Explanation: fmt.Sprintf("Matched objects: %s", strings.Join(intersection, ", ")),
		})
	}

	sortMatches(matches)
	return topN(matches, classMatchPoolSize)
}

// findVisualMatches ranks candidates by embedding cosine similarity.
func findVisualMatches(queryEmbedding []float64, candidates []Item, store *EmbeddingStore) []SearchMatch {
	if len(queryEmbedding) == 0 {
		return nil
	}
	var matches []SearchMatch
	for _, item := range candidates {
		vec := item.Embedding
		if len(vec) == 0 && store != nil {
			vec, _ = store.Get(item.ID)
		}
		if len(vec) == 0 {
			continue
		}
		sim := CosineSimilarity(queryEmbedding, vec)
		if sim <= visualMatchFloor {
			continue
		}
		matches = append(matches, SearchMatch{
			ItemID:      item.ID,
			Similarity:  sim,
			MatchType:   "visual_match",
			Confidence:  sim,
			Explanation: fmt.Sprintf("Visual similarity: %.1f%%", sim*100),
		})
	}
	sortMatches(matches)
	return matches
}

// findMetadataMatches scores candidates by location, date proximity, and
// category, dropping anything below the combined floor.
func findMetadataMatches(filter MetadataFilter, candidates []Item) []SearchMatch {
	if filter.empty() {
		return nil
	}
	var matches []SearchMatch
	for _, item := range candidates {
		var score float64
		var factors []string

		if filter.LocationName != "" && item.LocationName != "" {
			locSim := LocationNameOverlap(filter.LocationName, item.LocationName)
			if locSim > 0.5 {
				score += locSim * metadataLocWeight
				factors = append(factors, fmt.Sprintf("location (%d%%)", int(math.Round(locSim*100))))
			}
		}

		if !filter.DateFrom.IsZero() && !filter.DateTo.IsZero() && !item.DateReported.IsZero() {
			dateSim := dateRangeProximity(filter.DateFrom, filter.DateTo, item.DateReported)
			if dateSim > 0.3 {
				score += dateSim * metadataDateWeight
				factors = append(factors, fmt.Sprintf("date (%d%%)", int(math.Round(dateSim*100))))
			}
		}

		if filter.Category != "" && filter.Category == item.Category {
			score += metadataCatWeight
			factors = append(factors, "category (exact)")
		}

		if score <= metadataMatchFloor {
			continue
		}
		matches = append(matches, SearchMatch{
			ItemID:      item.ID,
			Similarity:  score,
			MatchType:   "metadata_match",
			Confidence:  score,
			Explanation: fmt.Sprintf("Matched: %s", strings.Join(factors, ", ")),
		})
	}
	sortMatches(matches)
	return matches
}

// dateRangeProximity is 1.0 inside the range and decays linearly to 0 over
// 30 days outside it.
func dateRangeProximity(from, to, itemDate time.Time) float64 {
	if !itemDate.Before(from) && !itemDate.After(to) {
		return 1.0
	}
	var outside time.Duration
	if itemDate.Before(from) {
		outside = from.Sub(itemDate)
	} else {
		outside = itemDate.Sub(to)
	}
	daysOutside := outside.Hours() / 24
	return math.Max(0, 1-daysOutside/dateDecayDays)
}

func bestSimilarity(matches []SearchMatch) float64 {
	if len(matches) == 0 {
		return 0
	}
	return matches[0].Similarity
}

func sortMatches(matches []SearchMatch) {
	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Similarity != matches[b].Similarity {
			return matches[a].Similarity > matches[b].Similarity
		}
		return matches[a].ItemID < matches[b].ItemID
	})
}

func topN(matches []SearchMatch, n int) []SearchMatch {
	if len(matches) > n {
		return matches[:n]
	}
	return matches
}
