package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrCycleInFlight is returned when a retraining cycle is requested while
// another one is still running. At most one cycle runs at a time.
var ErrCycleInFlight = errors.New("retraining already in progress")

const maxProgressLogs = 50

// TrainerFunc performs one model training run, reporting percentage
// progress in [0,100] as it goes. Tests inject short-circuiting doubles;
// production uses the built-in simulated trainer.
type TrainerFunc func(report func(pct float64)) error

// AutoLearningController owns the retraining lifecycle: it watches the
// verified sample pool, fires threshold/scheduled/manual triggers, runs
// training cycles, and publishes model versions atomically.
type AutoLearningController struct {
	db                  *sql.DB
	retrainingThreshold int
	trainer             TrainerFunc
	stepDelay           time.Duration

	mu       sync.Mutex
	running  bool
	progress LearningProgress
}

// NewAutoLearningController seeds the three trigger rows and an initial
// active model version if the database has none, then restores any
// persisted progress state.
func NewAutoLearningController(db *sql.DB, retrainingThreshold int) (*AutoLearningController, error) {
	c := &AutoLearningController{
		db:                  db,
		retrainingThreshold: retrainingThreshold,
		stepDelay:           500 * time.Millisecond,
		progress: LearningProgress{
			CurrentPhase: PhaseDataCollection,
			CurrentTask:  "Collecting verified samples",
		},
	}
	c.trainer = c.simulatedTraining

	triggers := []RetrainingTrigger{
		{ID: uuid.NewString(), TriggerType: TriggerThreshold, Threshold: float64(retrainingThreshold), Status: TriggerPending},
		{ID: uuid.NewString(), TriggerType: TriggerScheduled, Status: TriggerPending},
		{ID: uuid.NewString(), TriggerType: TriggerManual, Status: TriggerPending},
	}
	for _, t := range triggers {
		if err := EnsureTrigger(db, t); err != nil {
			return nil, fmt.Errorf("seed trigger %s: %w", t.TriggerType, err)
		}
	}

	active, err := CountActiveModelVersions(db)
	if err != nil {
		return nil, fmt.Errorf("count model versions: %w", err)
	}
	if active == 0 {
		now := time.Now()
		seed := ModelVersion{
			ID:                  uuid.NewString(),
			Version:             "v1.0.0",
			Accuracy:            0.87,
			Precision:           0.86,
			Recall:              0.85,
			F1:                  0.855,
			TrainingSamples:     0,
			TrainingStartedAt:   now,
			TrainingCompletedAt: now,
			IsActive:            true,
		}
		if err := InsertModelVersion(db, seed); err != nil {
			return nil, fmt.Errorf("seed model version: %w", err)
		}
		log.Printf("learning seeded initial model version=%s accuracy=%.2f", seed.Version, seed.Accuracy)
	}

	if saved, err := LoadLearningProgress(db); err == nil {
		// A process restart mid-cycle leaves a stale training phase behind.
		// The cycle itself is gone, so collapse back to data collection.
		if saved.CurrentPhase == PhaseDataCollection {
			c.progress = saved
		}
	}

	return c, nil
}

// GetProgress returns a snapshot of the current lifecycle state.
func (c *AutoLearningController) GetProgress() LearningProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.progress
	p.Logs = append([]string(nil), c.progress.Logs...)
	return p
}

// Running reports whether a cycle is currently in flight.
func (c *AutoLearningController) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *AutoLearningController) setProgress(phase string, pct float64, task, logLine string) {
	c.mu.Lock()
	c.progress.CurrentPhase = phase
	c.progress.Progress = pct
	c.progress.CurrentTask = task
	if logLine != "" {
		line := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), logLine)
		c.progress.Logs = append(c.progress.Logs, line)
		if len(c.progress.Logs) > maxProgressLogs {
			c.progress.Logs = c.progress.Logs[len(c.progress.Logs)-maxProgressLogs:]
		}
	}
	snapshot := c.progress
	snapshot.Logs = append([]string(nil), c.progress.Logs...)
	c.mu.Unlock()

	if err := SaveLearningProgress(c.db, snapshot); err != nil {
		log.Printf("learning progress save error: %v", err)
	}
}

// EvaluateTriggers refreshes the threshold trigger's counter and fires a
// cycle when the verified unused sample count reaches the threshold. It
// also re-arms completed and failed triggers while the controller is idle.
func (c *AutoLearningController) EvaluateTriggers() error {
	count, err := CountVerifiedUnused(c.db)
	if err != nil {
		return fmt.Errorf("count verified samples: %w", err)
	}
	if err := UpdateTriggerProgress(c.db, TriggerThreshold, float64(count)); err != nil {
		return fmt.Errorf("update threshold trigger: %w", err)
	}

	c.mu.Lock()
	idle := !c.running
	if idle {
		c.progress.Progress = math.Min(100, float64(count)/float64(c.retrainingThreshold)*100)
	}
	c.mu.Unlock()

	if !idle {
		return nil
	}

	triggers, err := ListTriggers(c.db)
	if err != nil {
		return fmt.Errorf("list triggers: %w", err)
	}
	for _, t := range triggers {
		if t.Status == TriggerCompleted || t.Status == TriggerFailed {
			if err := SetTriggerStatus(c.db, t.TriggerType, TriggerPending); err != nil {
				return fmt.Errorf("re-arm %s trigger: %w", t.TriggerType, err)
			}
		}
	}

	if count >= c.retrainingThreshold {
		log.Printf("learning threshold reached samples=%d threshold=%d", count, c.retrainingThreshold)
		if err := c.startCycle(TriggerThreshold, false); err != nil && !errors.Is(err, ErrCycleInFlight) {
			return err
		}
	}
	return nil
}

// FireScheduled runs a scheduled retraining cycle. A cycle already in
// flight is skipped, not queued.
func (c *AutoLearningController) FireScheduled() {
	if err := c.startCycle(TriggerScheduled, false); err != nil {
		if errors.Is(err, ErrCycleInFlight) {
			log.Printf("learning scheduled run skipped: cycle in flight")
			return
		}
		log.Printf("learning scheduled run error: %v", err)
	}
}

// TriggerManualRetraining starts a cycle on demand and returns the manual
// trigger state immediately; the cycle itself runs in the background. A
// second request while one is running gets ErrCycleInFlight.
func (c *AutoLearningController) TriggerManualRetraining() (RetrainingTrigger, error) {
	if err := c.startCycle(TriggerManual, true); err != nil {
		return RetrainingTrigger{}, err
	}
	return GetTrigger(c.db, TriggerManual)
}

// startCycle claims the single in-flight slot and runs (or spawns) the
// cycle for the given trigger type.
func (c *AutoLearningController) startCycle(triggerType string, async bool) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrCycleInFlight
	}
	c.running = true
	c.mu.Unlock()

	if err := SetTriggerStatus(c.db, triggerType, TriggerTriggered); err != nil {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return fmt.Errorf("mark %s trigger: %w", triggerType, err)
	}

	if async {
		go c.runCycle(triggerType)
		return nil
	}
	return c.runCycle(triggerType)
}

// runCycle executes one full retraining cycle. On failure the previously
// active model version stays active and the trigger is marked failed.
func (c *AutoLearningController) runCycle(triggerType string) error {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	count, err := CountVerifiedUnused(c.db)
	if err != nil {
		return c.failCycle(triggerType, fmt.Errorf("count samples: %w", err))
	}
	if count == 0 {
		log.Printf("learning cycle skipped trigger=%s: no verified samples", triggerType)
		if err := SetTriggerStatus(c.db, triggerType, TriggerPending); err != nil {
			log.Printf("learning trigger reset error: %v", err)
		}
		return nil
	}
	avgQuality, err := AvgQualityVerifiedUnused(c.db)
	if err != nil {
		return c.failCycle(triggerType, fmt.Errorf("average quality: %w", err))
	}

	startedAt := time.Now()
	log.Printf("learning cycle started trigger=%s samples=%d avg_quality=%.2f", triggerType, count, avgQuality)
	c.setProgress(PhaseTraining, 0, "Preparing training data",
		fmt.Sprintf("Cycle started (%s trigger, %d samples)", triggerType, count))

	report := func(pct float64) {
		phase, task := phaseForProgress(pct)
		c.setProgress(phase, pct, task, "")
	}
	if err := c.trainer(report); err != nil {
		return c.failCycle(triggerType, fmt.Errorf("training: %w", err))
	}

	prev, err := GetActiveModelVersion(c.db)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return c.failCycle(triggerType, fmt.Errorf("load active version: %w", err))
	}
	version, err := NextModelVersionString(c.db)
	if err != nil {
		return c.failCycle(triggerType, fmt.Errorf("next version: %w", err))
	}

	next := buildModelVersion(version, prev.Accuracy, count, avgQuality, startedAt)
	if err := PublishModelVersion(c.db, next, triggerType); err != nil {
		return c.failCycle(triggerType, fmt.Errorf("publish version: %w", err))
	}

	c.setProgress(PhaseDataCollection, 0, "Collecting verified samples",
		fmt.Sprintf("Deployed %s (accuracy %.1f%%, %d samples)", next.Version, next.Accuracy*100, count))
	log.Printf("learning cycle completed trigger=%s version=%s accuracy=%.3f samples=%d",
		triggerType, next.Version, next.Accuracy, count)
	return nil
}

func (c *AutoLearningController) failCycle(triggerType string, cause error) error {
	log.Printf("learning cycle failed trigger=%s: %v", triggerType, cause)
	if err := SetTriggerStatus(c.db, triggerType, TriggerFailed); err != nil {
		log.Printf("learning trigger status error: %v", err)
	}
	c.setProgress(PhaseDataCollection, 0, "Collecting verified samples",
		fmt.Sprintf("Cycle failed: %v", cause))
	return cause
}

// simulatedTraining is the built-in trainer. There is no real model to
// fit, so it walks the progress bands on a fixed cadence.
func (c *AutoLearningController) simulatedTraining(report func(pct float64)) error {
	for _, pct := range []float64{10, 30, 50, 70, 85, 95, 100} {
		time.Sleep(c.stepDelay)
		report(pct)
	}
	return nil
}

// phaseForProgress maps a cycle's completion percentage to its phase and
// user-facing task label.
func phaseForProgress(pct float64) (phase, task string) {
	switch {
	case pct < 20:
		return PhaseTraining, "Preparing training data"
	case pct < 60:
		return PhaseTraining, "Training detection model"
	case pct < 90:
		return PhaseValidating, "Validating model performance"
	default:
		return PhaseDeploying, "Deploying updated model"
	}
}

// buildModelVersion derives the new version's metrics from the prior
// accuracy and the consumed sample pool. More and better samples move the
// needle further, capped well short of perfection.
func buildModelVersion(version string, prevAccuracy float64, samples int, avgQuality float64, startedAt time.Time) ModelVersion {
	if prevAccuracy == 0 {
		prevAccuracy = 0.87
	}
	increment := avgQuality*0.01 + math.Min(0.02, float64(samples)/5000)
	accuracy := math.Min(0.98, prevAccuracy+increment)
	precision := math.Min(0.98, accuracy+0.005)
	recall := math.Max(0, accuracy-0.015)
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return ModelVersion{
		ID:                  uuid.NewString(),
		Version:             version,
		Accuracy:            round3(accuracy),
		Precision:           round3(precision),
		Recall:              round3(recall),
		F1:                  round3(f1),
		TrainingSamples:     samples,
		TrainingStartedAt:   startedAt,
		TrainingCompletedAt: time.Now(),
		IsActive:            true,
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// GetLearningMetrics assembles the learning dashboard: sample counts, the
// active model, and per-category and per-user breakdowns.
func GetLearningMetrics(db *sql.DB) (LearningMetrics, error) {
	var m LearningMetrics
	var err error

	if m.TotalSamples, err = CountAllSamples(db); err != nil {
		return m, fmt.Errorf("count samples: %w", err)
	}
	if m.VerifiedSamples, err = CountSamplesByStatus(db, VerificationVerified); err != nil {
		return m, fmt.Errorf("count verified: %w", err)
	}
	if m.PendingSamples, err = CountSamplesByStatus(db, VerificationPending); err != nil {
		return m, fmt.Errorf("count pending: %w", err)
	}

	active, err := GetActiveModelVersion(db)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return m, fmt.Errorf("active version: %w", err)
	}
	if err == nil {
		m.ModelAccuracy = active.Accuracy
		m.ActiveVersion = active.Version
		m.LastRetrainedAt = active.TrainingCompletedAt
	}

	if m.Categories, err = GetCategoryPerformance(db); err != nil {
		return m, fmt.Errorf("category performance: %w", err)
	}
	if m.Contributors, err = GetTopContributors(db, 5); err != nil {
		return m, fmt.Errorf("top contributors: %w", err)
	}
	return m, nil
}
