package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	noCorrectionBonus    = 0.10
	perCorrectionPenalty = 0.05
	rejectQualityFloor   = 0.4
)

// FeedbackQualityScore converts raw user feedback into a bounded quality
// score: base rating/5, a flat bonus when the detection needed no
// corrections, a per-correction penalty otherwise, clamped to [0,1].
func FeedbackQualityScore(fb UserFeedback) float64 {
	score := fb.Rating / 5
	if len(fb.Corrections) == 0 {
		score += noCorrectionBonus
	} else {
		score -= float64(len(fb.Corrections)) * perCorrectionPenalty
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ValidateFeedback rejects malformed submissions at the boundary, before
// they can pollute the sample pool.
func ValidateFeedback(fb UserFeedback) error {
	if strings.TrimSpace(fb.ItemID) == "" {
		return fmt.Errorf("feedback is missing item id")
	}
	if strings.TrimSpace(fb.UserID) == "" {
		return fmt.Errorf("feedback is missing user id")
	}
	if fb.Rating < 1 || fb.Rating > 5 {
		return fmt.Errorf("feedback rating %.1f out of range (1-5)", fb.Rating)
	}
	for _, c := range fb.Corrections {
		if strings.TrimSpace(c.CorrectedClass) == "" {
			return fmt.Errorf("correction for '%s' is missing a corrected class", c.OriginalClass)
		}
	}
	if fb.MatchConfirmation != nil && strings.TrimSpace(fb.MatchConfirmation.MatchedItemID) == "" {
		return fmt.Errorf("match confirmation is missing the matched item id")
	}
	return nil
}

// SubmitFeedback validates the feedback, derives its quality score, admits
// or rejects the sample against the quality threshold, and records any
// match confirmation on the stored match.
func SubmitFeedback(db *sql.DB, fb UserFeedback, qualityThreshold float64) (VerifiedSample, error) {
	if err := ValidateFeedback(fb); err != nil {
		return VerifiedSample{}, err
	}

	item, err := GetItemByID(db, fb.ItemID)
	if err != nil {
		return VerifiedSample{}, fmt.Errorf("load item %s: %w", fb.ItemID, err)
	}

	quality := FeedbackQualityScore(fb)
	status := VerificationPending
	switch {
	case quality >= qualityThreshold:
		status = VerificationVerified
	case quality < rejectQualityFloor:
		status = VerificationRejected
	}

	corrected := make([]DetectedObject, 0, len(fb.Corrections))
	for _, c := range fb.Corrections {
		corrected = append(corrected, DetectedObject{Class: c.CorrectedClass, Confidence: c.Confidence})
	}

	sample := VerifiedSample{
		ID:                 uuid.NewString(),
		ItemID:             fb.ItemID,
		UserID:             fb.UserID,
		Category:           item.Category,
		OriginalDetection:  item.DetectedObjects,
		CorrectedDetection: corrected,
		Rating:             fb.Rating,
		Corrections:        len(fb.Corrections),
		QualityScore:       quality,
		VerificationStatus: status,
		CreatedAt:          time.Now(),
	}
	if err := InsertVerifiedSample(db, sample); err != nil {
		return VerifiedSample{}, fmt.Errorf("store sample: %w", err)
	}

	if fb.MatchConfirmation != nil {
		if err := SetMatchConfirmed(db, fb.ItemID, fb.MatchConfirmation.MatchedItemID, fb.MatchConfirmation.Correct); err != nil {
			// The sample is already admitted; a missing match row is logged, not fatal.
			log.Printf("feedback match confirmation error item=%s matched=%s: %v",
				fb.ItemID, fb.MatchConfirmation.MatchedItemID, err)
		} else if fb.MatchConfirmation.Correct {
			for _, id := range []string{fb.ItemID, fb.MatchConfirmation.MatchedItemID} {
				if err := UpdateItemStatus(db, id, StatusMatched); err != nil {
					log.Printf("feedback item status error item=%s: %v", id, err)
				}
			}
		}
	}

	log.Printf("feedback accepted item=%s user=%s quality=%.2f status=%s corrections=%d",
		fb.ItemID, fb.UserID, quality, status, len(fb.Corrections))
	return sample, nil
}
