package main

import (
	"math"
	"testing"
)

func electronicsItem(id string, features []string, location string) Item {
	return Item{
		ID:           id,
		Type:         TypeLost,
		Category:     "electronics",
		Description:  "item " + id,
		LocationName: location,
		Classification: &AIClassification{
			Category:   "electronics",
			Confidence: 0.9,
			Features:   features,
		},
	}
}

func TestScoreItemsFullScenario(t *testing.T) {
	a := electronicsItem("A", []string{"rectangular", "screen"}, "Library - Main Floor")
	b := electronicsItem("B", []string{"rectangular", "screen", "camera"}, "Library - Main Floor")

	result := ScoreItems(a, b, defaultLocationGroups)

	// Category 0.30 + features (2/3)*0.25 + location 0.15, over 0.70 applied weight.
	if result.Score != 0.88 {
		t.Fatalf("expected score 0.88, got %v", result.Score)
	}
	if result.MatchType != "hybrid" {
		t.Fatalf("expected hybrid match type, got %s", result.MatchType)
	}
	if result.Confidence != 0.84 {
		t.Fatalf("expected confidence 0.84, got %v", result.Confidence)
	}
	if len(result.Explanation) != 3 {
		t.Fatalf("expected 3 explanations, got %d: %v", len(result.Explanation), result.Explanation)
	}
}

func TestScoreItemsRenormalization(t *testing.T) {
	// Only category and location apply; the denominator must be 0.45, not 1.
	a := Item{ID: "A", Category: "keys", LocationName: "Parking Lot A"}
	b := Item{ID: "B", Category: "keys", LocationName: "Parking Lot A"}

	result := ScoreItems(a, b, defaultLocationGroups)
	if result.Score != 1.0 {
		t.Fatalf("expected fully renormalized score 1.0, got %v", result.Score)
	}

	// Nearby location gets partial credit against the full location weight.
	b.LocationName = "Parking Lot B"
	result = ScoreItems(a, b, defaultLocationGroups)
	want := math.Round((0.30+0.08)/0.45*100) / 100
	if result.Score != want {
		t.Fatalf("expected nearby-location score %v, got %v", want, result.Score)
	}
}

func TestScoreItemsSymmetricAndIdempotent(t *testing.T) {
	a := electronicsItem("A", []string{"black", "leather", "zipper"}, "Library - Main Floor")
	a.Description = "black leather wallet with zipper"
	a.Embedding = []float64{0.5, 0.5, 0.5, 0.5}
	b := electronicsItem("B", []string{"black", "leather"}, "Library - 2nd Floor")
	b.Description = "found black leather wallet"
	b.Embedding = []float64{0.5, 0.5, 0.4, 0.6}

	ab := ScoreItems(a, b, defaultLocationGroups)
	ba := ScoreItems(b, a, defaultLocationGroups)
	if ab.Score != ba.Score {
		t.Fatalf("score not symmetric: %v vs %v", ab.Score, ba.Score)
	}
	again := ScoreItems(a, b, defaultLocationGroups)
	if again.Score != ab.Score || again.MatchType != ab.MatchType || again.Confidence != ab.Confidence {
		t.Fatalf("score not idempotent: %+v vs %+v", again, ab)
	}
}

func TestScoreItemsBounds(t *testing.T) {
	pairs := []struct{ a, b Item }{
		{Item{ID: "1"}, Item{ID: "2"}},
		{electronicsItem("3", []string{"red"}, "Gymnasium"), electronicsItem("4", []string{"blue"}, "Parking Lot A")},
		{electronicsItem("5", []string{"screen"}, ""), Item{ID: "6", Category: "books"}},
	}
	for _, p := range pairs {
		r := ScoreItems(p.a, p.b, defaultLocationGroups)
		if r.Score < 0 || r.Score > 1 {
			t.Fatalf("score out of bounds for %s/%s: %v", p.a.ID, p.b.ID, r.Score)
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			t.Fatalf("confidence out of bounds for %s/%s: %v", p.a.ID, p.b.ID, r.Confidence)
		}
	}
}

func TestScoreItemsEmbeddingGate(t *testing.T) {
	a := Item{ID: "A", Category: "bags", Embedding: []float64{1, 0, 0}}
	b := Item{ID: "B", Category: "bags", Embedding: []float64{0, 1, 0}}

	// Orthogonal vectors are below the 0.7 gate and contribute nothing.
	result := ScoreItems(a, b, defaultLocationGroups)
	if result.Score != 1.0 {
		t.Fatalf("expected gated embedding to leave category-only score 1.0, got %v", result.Score)
	}

	b.Embedding = []float64{1, 0, 0}
	result = ScoreItems(a, b, defaultLocationGroups)
	if len(result.Explanation) != 2 {
		t.Fatalf("expected embedding explanation above gate, got %v", result.Explanation)
	}
}

func TestScoreItemsMismatchedEmbeddingLengths(t *testing.T) {
	a := Item{ID: "A", Category: "toys", Embedding: []float64{1, 0}}
	b := Item{ID: "B", Category: "toys", Embedding: []float64{1, 0, 0}}

	result := ScoreItems(a, b, defaultLocationGroups)
	// Cosine of mismatched lengths is 0, below the gate: category only.
	if result.Score != 1.0 {
		t.Fatalf("expected mismatched embeddings to be ignored, got score %v", result.Score)
	}
}

func TestScoreItemsMatchType(t *testing.T) {
	// Both classified, few explanations: visual.
	a := electronicsItem("A", []string{"red"}, "")
	b := electronicsItem("B", []string{"blue"}, "")
	if r := ScoreItems(a, b, defaultLocationGroups); r.MatchType != "visual" {
		t.Fatalf("expected visual match type, got %s", r.MatchType)
	}

	// Unclassified metadata-only pair: metadata.
	c := Item{ID: "C", Category: "books", LocationName: "Library - Main Floor"}
	d := Item{ID: "D", Category: "books", LocationName: "Library - Main Floor"}
	if r := ScoreItems(c, d, defaultLocationGroups); r.MatchType != "metadata" {
		t.Fatalf("expected metadata match type, got %s", r.MatchType)
	}
}

func TestFeatureOverlap(t *testing.T) {
	if got := FeatureOverlap([]string{"Red", "ZIPPER"}, []string{"red", "zipper", "leather"}); math.Abs(got-2.0/3.0) > 1e-9 {
		t.Fatalf("expected case-insensitive overlap 2/3, got %v", got)
	}
	if got := FeatureOverlap(nil, []string{"red"}); got != 0 {
		t.Fatalf("expected empty overlap 0, got %v", got)
	}
}

func TestTextOverlapIgnoresShortWords(t *testing.T) {
	// "the" and "a" are too short to count in either direction.
	got := TextOverlap("the black wallet", "a black wallet")
	if got != 1.0 {
		t.Fatalf("expected overlap 1.0 over significant words, got %v", got)
	}
	if got := TextOverlap("", "black wallet"); got != 0 {
		t.Fatalf("expected empty text overlap 0, got %v", got)
	}
}

func TestLocationNameOverlap(t *testing.T) {
	if got := LocationNameOverlap("Main Library", "main library"); got != 1.0 {
		t.Fatalf("expected exact (case-insensitive) match 1.0, got %v", got)
	}
	got := LocationNameOverlap("Main Library", "Library Entrance")
	if got != 0.5 {
		t.Fatalf("expected one shared word of two = 0.5, got %v", got)
	}
}
