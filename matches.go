package main

import (
	"database/sql"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ComputeMatches scores an item against every active item of the opposite
// type, keeps candidates at or above the acceptance threshold, and persists
// the resulting match records sorted by score.
func ComputeMatches(db *sql.DB, item Item, groups *LocationGroups, store *EmbeddingStore, threshold float64) ([]Match, error) {
	candidates, err := ListActiveItems(db, OppositeType(item.Type), StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	now := time.Now()
	var matches []Match
	for _, candidate := range candidates {
		if candidate.ID == item.ID {
			continue
		}
		a, b := item, candidate
		if len(a.Embedding) == 0 {
			if vec, ok := store.Get(a.ID); ok {
				a.Embedding = vec
			}
		}
		if len(b.Embedding) == 0 {
			if vec, ok := store.Get(b.ID); ok {
				b.Embedding = vec
			}
		}

		result := ScoreItems(a, b, groups)
		if result.Score <= threshold {
			continue
		}
		matches = append(matches, Match{
			ID:            uuid.NewString(),
			SourceItemID:  item.ID,
			MatchedItemID: candidate.ID,
			Score:         result.Score,
			MatchType:     result.MatchType,
			Confidence:    result.Confidence,
			Explanation:   result.Explanation,
			CreatedAt:     now,
		})
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Score != matches[b].Score {
			return matches[a].Score > matches[b].Score
		}
		return matches[a].MatchedItemID < matches[b].MatchedItemID
	})

	if _, err := InsertMatches(db, matches); err != nil {
		return matches, fmt.Errorf("store matches: %w", err)
	}
	log.Printf("matches computed item=%s candidates=%d kept=%d", item.ID, len(candidates), len(matches))
	return matches, nil
}
