package main

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestController(t *testing.T, db *sql.DB, threshold int) *AutoLearningController {
	t.Helper()
	ctrl, err := NewAutoLearningController(db, threshold)
	if err != nil {
		t.Fatalf("NewAutoLearningController failed: %v", err)
	}
	ctrl.trainer = func(report func(pct float64)) error {
		report(100)
		return nil
	}
	return ctrl
}

func waitForIdle(t *testing.T, ctrl *AutoLearningController) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for ctrl.Running() {
		if time.Now().After(deadline) {
			t.Fatalf("controller still running after 5s")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestControllerSeedsTriggersAndModel(t *testing.T) {
	db := newTestDB(t)
	newTestController(t, db, 500)

	triggers, err := ListTriggers(db)
	if err != nil {
		t.Fatalf("ListTriggers failed: %v", err)
	}
	if len(triggers) != 3 {
		t.Fatalf("expected 3 seeded triggers, got %d", len(triggers))
	}
	threshold, err := GetTrigger(db, TriggerThreshold)
	if err != nil {
		t.Fatalf("GetTrigger failed: %v", err)
	}
	if threshold.Threshold != 500 || threshold.Status != TriggerPending {
		t.Fatalf("unexpected threshold trigger: %+v", threshold)
	}

	active, err := GetActiveModelVersion(db)
	if err != nil {
		t.Fatalf("GetActiveModelVersion failed: %v", err)
	}
	if active.Version != "v1.0.0" || active.Accuracy != 0.87 {
		t.Fatalf("unexpected seed version: %+v", active)
	}

	// A second controller over the same database must not reseed.
	newTestController(t, db, 500)
	if count, _ := CountActiveModelVersions(db); count != 1 {
		t.Fatalf("expected single active version after restart, got %d", count)
	}
}

func TestThresholdTriggerArithmetic(t *testing.T) {
	db := newTestDB(t)
	ctrl := newTestController(t, db, 10)

	for i := 0; i < 8; i++ {
		insertTestSample(t, db, "U1", "keys", VerificationVerified, 0.9, false)
	}
	if err := ctrl.EvaluateTriggers(); err != nil {
		t.Fatalf("EvaluateTriggers failed: %v", err)
	}

	trigger, _ := GetTrigger(db, TriggerThreshold)
	if trigger.CurrentValue != 8 {
		t.Fatalf("expected current value 8, got %v", trigger.CurrentValue)
	}
	if trigger.Status != TriggerPending {
		t.Fatalf("expected pending below threshold, got %s", trigger.Status)
	}
	if versions, _ := ListModelVersions(db); len(versions) != 1 {
		t.Fatalf("expected no new version below threshold, got %d", len(versions))
	}

	progress := ctrl.GetProgress()
	if progress.CurrentPhase != PhaseDataCollection || progress.Progress != 80 {
		t.Fatalf("expected data_collection at 80%%, got %+v", progress)
	}

	// Crossing the threshold runs exactly one cycle.
	insertTestSample(t, db, "U1", "keys", VerificationVerified, 0.9, false)
	insertTestSample(t, db, "U2", "bags", VerificationVerified, 0.8, false)
	if err := ctrl.EvaluateTriggers(); err != nil {
		t.Fatalf("EvaluateTriggers failed: %v", err)
	}

	trigger, _ = GetTrigger(db, TriggerThreshold)
	if trigger.Status != TriggerCompleted {
		t.Fatalf("expected completed trigger after cycle, got %s", trigger.Status)
	}
	if count, _ := CountActiveModelVersions(db); count != 1 {
		t.Fatalf("expected exactly one active version, got %d", count)
	}
	active, _ := GetActiveModelVersion(db)
	if active.Version != "v1.0.1" || active.TrainingSamples != 10 {
		t.Fatalf("unexpected published version: %+v", active)
	}
	if active.Accuracy <= 0.87 || active.Accuracy > 0.98 {
		t.Fatalf("expected accuracy to improve within bounds, got %v", active.Accuracy)
	}
	if count, _ := CountVerifiedUnused(db); count != 0 {
		t.Fatalf("expected samples consumed, got %d unused", count)
	}
	if count, _ := CountAllSamples(db); count != 10 {
		t.Fatalf("samples must be kept after consumption, got %d", count)
	}

	// The next idle evaluation re-arms the completed trigger.
	if err := ctrl.EvaluateTriggers(); err != nil {
		t.Fatalf("EvaluateTriggers failed: %v", err)
	}
	trigger, _ = GetTrigger(db, TriggerThreshold)
	if trigger.Status != TriggerPending {
		t.Fatalf("expected re-armed trigger, got %s", trigger.Status)
	}
}

func TestManualRetrainingSingleInFlight(t *testing.T) {
	db := newTestDB(t)
	ctrl := newTestController(t, db, 500)
	insertTestSample(t, db, "U1", "keys", VerificationVerified, 0.9, false)

	release := make(chan struct{})
	started := make(chan struct{})
	ctrl.trainer = func(report func(pct float64)) error {
		close(started)
		<-release
		report(100)
		return nil
	}

	trigger, err := ctrl.TriggerManualRetraining()
	if err != nil {
		t.Fatalf("TriggerManualRetraining failed: %v", err)
	}
	if trigger.Status != TriggerTriggered {
		t.Fatalf("expected triggered status, got %s", trigger.Status)
	}
	<-started

	if _, err := ctrl.TriggerManualRetraining(); !errors.Is(err, ErrCycleInFlight) {
		t.Fatalf("expected ErrCycleInFlight, got %v", err)
	}
	// A scheduled fire during the cycle is a logged no-op, not a second cycle.
	ctrl.FireScheduled()

	close(release)
	waitForIdle(t, ctrl)

	if count, _ := CountActiveModelVersions(db); count != 1 {
		t.Fatalf("expected one active version, got %d", count)
	}
	active, _ := GetActiveModelVersion(db)
	if active.Version != "v1.0.1" {
		t.Fatalf("expected single published version v1.0.1, got %s", active.Version)
	}
	trigger, _ = GetTrigger(db, TriggerManual)
	if trigger.Status != TriggerCompleted {
		t.Fatalf("expected completed manual trigger, got %s", trigger.Status)
	}
}

func TestTrainingFailureKeepsPriorVersion(t *testing.T) {
	db := newTestDB(t)
	ctrl := newTestController(t, db, 2)
	ctrl.trainer = func(report func(pct float64)) error {
		report(30)
		return fmt.Errorf("model fit diverged")
	}
	insertTestSample(t, db, "U1", "keys", VerificationVerified, 0.9, false)
	insertTestSample(t, db, "U2", "bags", VerificationVerified, 0.8, false)

	err := ctrl.EvaluateTriggers()
	if err == nil {
		t.Fatalf("expected training failure to surface")
	}

	trigger, _ := GetTrigger(db, TriggerThreshold)
	if trigger.Status != TriggerFailed {
		t.Fatalf("expected failed trigger, got %s", trigger.Status)
	}
	active, aerr := GetActiveModelVersion(db)
	if aerr != nil || active.Version != "v1.0.0" {
		t.Fatalf("expected prior version to stay active, got %+v, %v", active, aerr)
	}
	if count, _ := CountVerifiedUnused(db); count != 2 {
		t.Fatalf("failed cycle must not consume samples, got %d unused", count)
	}
	progress := ctrl.GetProgress()
	if progress.CurrentPhase != PhaseDataCollection {
		t.Fatalf("expected fall back to data_collection, got %s", progress.CurrentPhase)
	}

	// The failure is recoverable: a later evaluation re-arms and retries.
	ctrl.trainer = func(report func(pct float64)) error {
		report(100)
		return nil
	}
	if err := ctrl.EvaluateTriggers(); err != nil {
		t.Fatalf("EvaluateTriggers retry failed: %v", err)
	}
	// First idle pass re-armed the trigger; it fires in the same evaluation.
	active, _ = GetActiveModelVersion(db)
	if active.Version != "v1.0.1" {
		t.Fatalf("expected retry to publish v1.0.1, got %s", active.Version)
	}
}

func TestScheduledCycleWithoutSamplesIsSkipped(t *testing.T) {
	db := newTestDB(t)
	ctrl := newTestController(t, db, 500)

	ctrl.FireScheduled()
	waitForIdle(t, ctrl)

	trigger, _ := GetTrigger(db, TriggerScheduled)
	if trigger.Status != TriggerPending {
		t.Fatalf("expected skipped cycle to reset trigger, got %s", trigger.Status)
	}
	if versions, _ := ListModelVersions(db); len(versions) != 1 {
		t.Fatalf("expected no new version without samples, got %d", len(versions))
	}
}

func TestPhaseForProgressBands(t *testing.T) {
	cases := []struct {
		pct   float64
		phase string
		task  string
	}{
		{10, PhaseTraining, "Preparing training data"},
		{45, PhaseTraining, "Training detection model"},
		{75, PhaseValidating, "Validating model performance"},
		{95, PhaseDeploying, "Deploying updated model"},
	}
	for _, c := range cases {
		phase, task := phaseForProgress(c.pct)
		if phase != c.phase || task != c.task {
			t.Fatalf("pct %v: expected %s/%s, got %s/%s", c.pct, c.phase, c.task, phase, task)
		}
	}
}

func TestGetLearningMetrics(t *testing.T) {
	db := newTestDB(t)
	newTestController(t, db, 500)
	insertTestSample(t, db, "U1", "keys", VerificationVerified, 0.9, false)
	insertTestSample(t, db, "U2", "bags", VerificationPending, 0.5, false)

	m, err := GetLearningMetrics(db)
	if err != nil {
		t.Fatalf("GetLearningMetrics failed: %v", err)
	}
	if m.TotalSamples != 2 || m.VerifiedSamples != 1 || m.PendingSamples != 1 {
		t.Fatalf("unexpected sample counts: %+v", m)
	}
	if m.ActiveVersion != "v1.0.0" || m.ModelAccuracy != 0.87 {
		t.Fatalf("unexpected model info: %+v", m)
	}
	if len(m.Categories) != 1 || m.Categories[0].Category != "keys" {
		t.Fatalf("unexpected categories: %+v", m.Categories)
	}
	if len(m.Contributors) != 1 || m.Contributors[0].UserID != "U1" {
		t.Fatalf("unexpected contributors: %+v", m.Contributors)
	}
}
