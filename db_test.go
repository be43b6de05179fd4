package main

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "matchbot-test.db")
	db, err := InitDB(dbPath)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testItem(id, itemType, category string) Item {
	return Item{
		ID:           id,
		Type:         itemType,
		Category:     category,
		Description:  "test item " + id,
		LocationName: "Library - Main Floor",
		DateReported: time.Now().UTC().Truncate(time.Second),
		Status:       StatusActive,
		Tags:         []string{"black", "test"},
		DetectedObjects: []DetectedObject{
			{Class: "wallet", Confidence: 0.9},
		},
		Classification: &AIClassification{
			Category:   category,
			Confidence: 0.88,
			Features:   []string{"black", "leather"},
		},
		ReporterID: "U001",
	}
}

func TestItemRoundTrip(t *testing.T) {
	db := newTestDB(t)
	item := testItem("item-1", TypeLost, "accessories")
	if err := InsertItem(db, item); err != nil {
		t.Fatalf("InsertItem failed: %v", err)
	}

	got, err := GetItemByID(db, "item-1")
	if err != nil {
		t.Fatalf("GetItemByID failed: %v", err)
	}
	if got.Type != TypeLost || got.Category != "accessories" || got.Status != StatusActive {
		t.Fatalf("unexpected item: %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "black" {
		t.Fatalf("tags not round-tripped: %v", got.Tags)
	}
	if len(got.DetectedObjects) != 1 || got.DetectedObjects[0].Class != "wallet" {
		t.Fatalf("detections not round-tripped: %v", got.DetectedObjects)
	}
	if got.Classification == nil || got.Classification.Category != "accessories" {
		t.Fatalf("classification not round-tripped: %+v", got.Classification)
	}
}

func TestListActiveItemsFiltersTypeAndStatus(t *testing.T) {
	db := newTestDB(t)
	for _, item := range []Item{
		testItem("lost-1", TypeLost, "keys"),
		testItem("found-1", TypeFound, "keys"),
		testItem("found-2", TypeFound, "bags"),
	} {
		if err := InsertItem(db, item); err != nil {
			t.Fatalf("InsertItem failed: %v", err)
		}
	}
	if err := UpdateItemStatus(db, "found-2", StatusClaimed); err != nil {
		t.Fatalf("UpdateItemStatus failed: %v", err)
	}

	found, err := ListActiveItems(db, TypeFound, StatusActive)
	if err != nil {
		t.Fatalf("ListActiveItems failed: %v", err)
	}
	if len(found) != 1 || found[0].ID != "found-1" {
		t.Fatalf("expected only active found-1, got %+v", found)
	}

	all, err := ListActiveItems(db, "", StatusActive)
	if err != nil {
		t.Fatalf("ListActiveItems failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 active items, got %d", len(all))
	}
}

func TestMatchesInsertGetConfirm(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)
	matches := []Match{
		{ID: "m1", SourceItemID: "a", MatchedItemID: "b", Score: 0.9, MatchType: "hybrid", Confidence: 0.84, Explanation: []string{"Same category: keys", "Found at same location: Gym"}, CreatedAt: now},
		{ID: "m2", SourceItemID: "a", MatchedItemID: "c", Score: 0.7, MatchType: "metadata", Confidence: 0.68, CreatedAt: now},
	}
	if n, err := InsertMatches(db, matches); err != nil || n != 2 {
		t.Fatalf("InsertMatches = %d, %v", n, err)
	}

	got, err := GetMatchesForItem(db, "a")
	if err != nil {
		t.Fatalf("GetMatchesForItem failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "m1" {
		t.Fatalf("expected m1 first by score, got %+v", got)
	}
	if len(got[0].Explanation) != 2 {
		t.Fatalf("explanation not round-tripped: %v", got[0].Explanation)
	}
	if got[0].UserConfirmed != nil {
		t.Fatalf("expected unconfirmed match, got %v", *got[0].UserConfirmed)
	}

	// Re-scoring the same pair updates instead of duplicating.
	matches[0].ID = "m1-rescored"
	matches[0].Score = 0.95
	if _, err := InsertMatches(db, matches[:1]); err != nil {
		t.Fatalf("InsertMatches upsert failed: %v", err)
	}
	got, _ = GetMatchesForItem(db, "a")
	if len(got) != 2 || got[0].Score != 0.95 {
		t.Fatalf("expected upserted score 0.95 without duplicate row, got %+v", got)
	}

	if err := SetMatchConfirmed(db, "a", "b", true); err != nil {
		t.Fatalf("SetMatchConfirmed failed: %v", err)
	}
	got, _ = GetMatchesForItem(db, "a")
	if got[0].UserConfirmed == nil || !*got[0].UserConfirmed {
		t.Fatalf("expected confirmed match, got %+v", got[0])
	}

	if err := SetMatchConfirmed(db, "a", "nope", true); err == nil {
		t.Fatalf("expected error for missing match row")
	}
}

func insertTestSample(t *testing.T, db *sql.DB, userID, category, status string, quality float64, used bool) {
	t.Helper()
	err := InsertVerifiedSample(db, VerifiedSample{
		ID:                 uuid.NewString(),
		ItemID:             uuid.NewString(),
		UserID:             userID,
		Category:           category,
		Rating:             4,
		QualityScore:       quality,
		VerificationStatus: status,
		Used:               used,
		CreatedAt:          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("InsertVerifiedSample failed: %v", err)
	}
}

func TestSampleCountsAndAggregates(t *testing.T) {
	db := newTestDB(t)
	insertTestSample(t, db, "U1", "keys", VerificationVerified, 0.9, false)
	insertTestSample(t, db, "U1", "keys", VerificationVerified, 0.7, false)
	insertTestSample(t, db, "U2", "bags", VerificationVerified, 0.8, true)
	insertTestSample(t, db, "U2", "bags", VerificationPending, 0.5, false)
	insertTestSample(t, db, "U3", "toys", VerificationRejected, 0.2, false)

	if count, _ := CountVerifiedUnused(db); count != 2 {
		t.Fatalf("expected 2 verified unused, got %d", count)
	}
	if avg, _ := AvgQualityVerifiedUnused(db); avg != 0.8 {
		t.Fatalf("expected avg quality 0.8, got %v", avg)
	}
	if count, _ := CountSamplesByStatus(db, VerificationPending); count != 1 {
		t.Fatalf("expected 1 pending, got %d", count)
	}
	if count, _ := CountAllSamples(db); count != 5 {
		t.Fatalf("expected 5 samples total, got %d", count)
	}

	categories, err := GetCategoryPerformance(db)
	if err != nil {
		t.Fatalf("GetCategoryPerformance failed: %v", err)
	}
	if len(categories) != 2 || categories[0].Category != "keys" || categories[0].SampleCount != 2 {
		t.Fatalf("unexpected category performance: %+v", categories)
	}

	contributors, err := GetTopContributors(db, 5)
	if err != nil {
		t.Fatalf("GetTopContributors failed: %v", err)
	}
	if len(contributors) != 2 || contributors[0].UserID != "U1" {
		t.Fatalf("unexpected contributors: %+v", contributors)
	}
}

func TestSampleReview(t *testing.T) {
	db := newTestDB(t)
	insertTestSample(t, db, "U1", "keys", VerificationPending, 0.6, false)
	insertTestSample(t, db, "U2", "bags", VerificationPending, 0.5, false)

	pending, err := ListSamplesByStatus(db, VerificationPending, 5)
	if err != nil {
		t.Fatalf("ListSamplesByStatus failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending samples, got %d", len(pending))
	}

	if err := SetSampleVerificationStatus(db, pending[0].ID, VerificationVerified); err != nil {
		t.Fatalf("SetSampleVerificationStatus failed: %v", err)
	}
	if count, _ := CountVerifiedUnused(db); count != 1 {
		t.Fatalf("expected reviewed sample to count as verified, got %d", count)
	}
	if err := SetSampleVerificationStatus(db, "ghost", VerificationRejected); err == nil {
		t.Fatalf("expected error for unknown sample id")
	}
}

func TestTriggerLifecycle(t *testing.T) {
	db := newTestDB(t)
	trigger := RetrainingTrigger{ID: "t1", TriggerType: TriggerThreshold, Threshold: 500, Status: TriggerPending}
	if err := EnsureTrigger(db, trigger); err != nil {
		t.Fatalf("EnsureTrigger failed: %v", err)
	}
	// Idempotent: a second ensure keeps the existing row.
	trigger.ID = "t1-dup"
	trigger.Threshold = 999
	if err := EnsureTrigger(db, trigger); err != nil {
		t.Fatalf("EnsureTrigger (dup) failed: %v", err)
	}

	got, err := GetTrigger(db, TriggerThreshold)
	if err != nil {
		t.Fatalf("GetTrigger failed: %v", err)
	}
	if got.ID != "t1" || got.Threshold != 500 {
		t.Fatalf("expected original trigger preserved, got %+v", got)
	}

	if err := UpdateTriggerProgress(db, TriggerThreshold, 487); err != nil {
		t.Fatalf("UpdateTriggerProgress failed: %v", err)
	}
	if err := SetTriggerStatus(db, TriggerThreshold, TriggerTriggered); err != nil {
		t.Fatalf("SetTriggerStatus failed: %v", err)
	}
	got, _ = GetTrigger(db, TriggerThreshold)
	if got.CurrentValue != 487 || got.Status != TriggerTriggered {
		t.Fatalf("unexpected trigger state: %+v", got)
	}
}

func TestPublishModelVersionAtomicity(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	if err := EnsureTrigger(db, RetrainingTrigger{ID: "t1", TriggerType: TriggerManual, Status: TriggerTriggered}); err != nil {
		t.Fatalf("EnsureTrigger failed: %v", err)
	}
	seed := ModelVersion{ID: "v0", Version: "v1.0.0", Accuracy: 0.87, TrainingStartedAt: now, TrainingCompletedAt: now, IsActive: true}
	if err := InsertModelVersion(db, seed); err != nil {
		t.Fatalf("InsertModelVersion failed: %v", err)
	}

	// Samples created before the training run started get consumed.
	insertTestSample(t, db, "U1", "keys", VerificationVerified, 0.9, false)
	startedAt := time.Now().UTC().Add(time.Minute)

	next := ModelVersion{
		ID: "v1", Version: "v1.0.1", Accuracy: 0.90, Precision: 0.91, Recall: 0.89, F1: 0.90,
		TrainingSamples: 1, TrainingStartedAt: startedAt, TrainingCompletedAt: startedAt.Add(time.Minute),
	}
	if err := PublishModelVersion(db, next, TriggerManual); err != nil {
		t.Fatalf("PublishModelVersion failed: %v", err)
	}

	if count, _ := CountActiveModelVersions(db); count != 1 {
		t.Fatalf("expected exactly one active version, got %d", count)
	}
	active, err := GetActiveModelVersion(db)
	if err != nil {
		t.Fatalf("GetActiveModelVersion failed: %v", err)
	}
	if active.Version != "v1.0.1" {
		t.Fatalf("expected v1.0.1 active, got %s", active.Version)
	}
	if count, _ := CountVerifiedUnused(db); count != 0 {
		t.Fatalf("expected samples marked used, got %d unused", count)
	}
	if count, _ := CountAllSamples(db); count != 1 {
		t.Fatalf("samples must be retained, not deleted; got %d", count)
	}
	trigger, _ := GetTrigger(db, TriggerManual)
	if trigger.Status != TriggerCompleted {
		t.Fatalf("expected trigger completed, got %s", trigger.Status)
	}
}

func TestNextModelVersionString(t *testing.T) {
	db := newTestDB(t)
	if v, err := NextModelVersionString(db); err != nil || v != "v1.0.0" {
		t.Fatalf("expected v1.0.0 on empty history, got %s, %v", v, err)
	}
	now := time.Now().UTC()
	if err := InsertModelVersion(db, ModelVersion{ID: "a", Version: "v1.2.3", Accuracy: 0.9, TrainingStartedAt: now, TrainingCompletedAt: now}); err != nil {
		t.Fatalf("InsertModelVersion failed: %v", err)
	}
	if v, err := NextModelVersionString(db); err != nil || v != "v1.2.4" {
		t.Fatalf("expected v1.2.4, got %s, %v", v, err)
	}
}

func TestLearningProgressRoundTrip(t *testing.T) {
	db := newTestDB(t)
	p := LearningProgress{
		CurrentPhase: PhaseTraining,
		Progress:     42,
		CurrentTask:  "Training detection model",
		Logs:         []string{"started", "halfway"},
	}
	if err := SaveLearningProgress(db, p); err != nil {
		t.Fatalf("SaveLearningProgress failed: %v", err)
	}
	// Upsert replaces the singleton row.
	p.Progress = 90
	p.CurrentPhase = PhaseDeploying
	if err := SaveLearningProgress(db, p); err != nil {
		t.Fatalf("SaveLearningProgress (update) failed: %v", err)
	}

	got, err := LoadLearningProgress(db)
	if err != nil {
		t.Fatalf("LoadLearningProgress failed: %v", err)
	}
	if got.CurrentPhase != PhaseDeploying || got.Progress != 90 || len(got.Logs) != 2 {
		t.Fatalf("unexpected progress: %+v", got)
	}
}
