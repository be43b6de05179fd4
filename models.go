package main

import "time"

// Item types.
const (
	TypeLost  = "lost"
	TypeFound = "found"
)

// Item statuses.
const (
	StatusActive  = "active"
	StatusMatched = "matched"
	StatusClaimed = "claimed"
)

// Verification statuses for samples.
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// Retraining trigger types and statuses.
const (
	TriggerThreshold = "threshold"
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"

	TriggerPending   = "pending"
	TriggerTriggered = "triggered"
	TriggerCompleted = "completed"
	TriggerFailed    = "failed"
)

// Learning phases.
const (
	PhaseDataCollection = "data_collection"
	PhaseTraining       = "training"
	PhaseValidating     = "validating"
	PhaseDeploying      = "deploying"
)

// AppCategories is the fixed item taxonomy.
var AppCategories = []string{
	"electronics", "clothing", "accessories", "bags", "books", "keys",
	"jewelry", "sports_equipment", "documents", "toys", "tools", "furniture",
}

type AIClassification struct {
	Category   string
	Confidence float64
	Features   []string
}

type DetectedObject struct {
	Class      string
	Confidence float64
}

type Item struct {
	ID              string
	Type            string // "lost" or "found"
	Category        string
	Description     string
	LocationName    string
	Lat             float64
	Lng             float64
	HasCoords       bool
	DateReported    time.Time
	Status          string // "active", "matched", "claimed"
	Tags            []string
	DetectedObjects []DetectedObject
	Classification  *AIClassification
	Embedding       []float64
	ReporterID      string // Slack user ID of the reporter
	CreatedAt       time.Time
}

// OppositeType returns the item type a match candidate must have.
func OppositeType(t string) string {
	if t == TypeLost {
		return TypeFound
	}
	return TypeLost
}

type Match struct {
	ID            string
	SourceItemID  string
	MatchedItemID string
	Score         float64
	MatchType     string // "visual", "metadata", or "hybrid"
	Confidence    float64
	Explanation   []string
	UserConfirmed *bool
	CreatedAt     time.Time
}

type DetectionCorrection struct {
	OriginalClass  string
	CorrectedClass string
	Confidence     float64
}

type MatchConfirmation struct {
	MatchedItemID string
	Correct       bool
}

type UserFeedback struct {
	ItemID            string
	UserID            string
	Rating            float64 // 1-5 stars, fractional allowed
	Corrections       []DetectionCorrection
	MatchConfirmation *MatchConfirmation
	Comments          string
}

type VerifiedSample struct {
	ID                 string
	ItemID             string
	UserID             string
	Category           string
	OriginalDetection  []DetectedObject
	CorrectedDetection []DetectedObject
	Rating             float64
	Corrections        int
	QualityScore       float64
	VerificationStatus string // "pending", "verified", "rejected"
	Used               bool   // consumed by a completed retraining cycle
	CreatedAt          time.Time
}

type RetrainingTrigger struct {
	ID           string
	TriggerType  string // "threshold", "scheduled", or "manual"
	Threshold    float64
	CurrentValue float64
	Status       string // "pending", "triggered", "completed", "failed"
	UpdatedAt    time.Time
}

type ModelVersion struct {
	ID                  string
	Version             string
	Accuracy            float64
	Precision           float64
	Recall              float64
	F1                  float64
	TrainingSamples     int
	TrainingStartedAt   time.Time
	TrainingCompletedAt time.Time
	IsActive            bool
}

type LearningProgress struct {
	CurrentPhase string
	Progress     float64 // 0-100
	CurrentTask  string
	Logs         []string
}

type CategoryPerformance struct {
	Category    string
	SampleCount int
	AvgQuality  float64
	Corrections int
}

type UserContribution struct {
	UserID      string
	Samples     int
	Corrections int
	AvgQuality  float64
}

type LearningMetrics struct {
	TotalSamples    int
	VerifiedSamples int
	PendingSamples  int
	ModelAccuracy   float64
	ActiveVersion   string
	LastRetrainedAt time.Time
	Categories      []CategoryPerformance
	Contributors    []UserContribution
}
