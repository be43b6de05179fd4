package main

import (
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const triggerEvalInterval = time.Minute

// StartTriggerEvaluator polls the verified sample pool and fires a
// retraining cycle when the threshold trigger arms. One evaluation also
// runs immediately at startup so a pool filled while the bot was down is
// not left waiting a full interval.
func StartTriggerEvaluator(ctrl *AutoLearningController) {
	go func() {
		if err := ctrl.EvaluateTriggers(); err != nil {
			log.Printf("trigger evaluation error: %v", err)
		}
		ticker := time.NewTicker(triggerEvalInterval)
		defer ticker.Stop()
		for range ticker.C {
			if err := ctrl.EvaluateTriggers(); err != nil {
				log.Printf("trigger evaluation error: %v", err)
			}
		}
	}()
}

// StartRetrainingScheduler starts a cron-based scheduler for periodic
// retraining, independent of the sample-count threshold.
// The schedule is a standard 5-field cron expression (minute hour day-of-month month day-of-week).
// Examples: "0 3 * * 0" (Sundays 3am), "0 3 * * *" (daily 3am).
func StartRetrainingScheduler(cfg Config, ctrl *AutoLearningController) {
	schedule := strings.TrimSpace(cfg.RetrainingSchedule)
	if schedule == "" {
		log.Println("Scheduled retraining disabled (retraining_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid retraining_schedule '%s': %v — scheduled retraining disabled", schedule, err)
		return
	}
	log.Printf("Retraining scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now().In(cfg.Location)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next scheduled retraining at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)
			ctrl.FireScheduled()
		}
	}()
}
