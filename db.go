package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id               TEXT PRIMARY KEY,
		type             TEXT NOT NULL,
		category         TEXT NOT NULL,
		description      TEXT DEFAULT '',
		location_name    TEXT DEFAULT '',
		lat              REAL DEFAULT 0,
		lng              REAL DEFAULT 0,
		has_coords       INTEGER DEFAULT 0,
		date_reported    DATETIME NOT NULL,
		status           TEXT DEFAULT 'active',
		tags             TEXT DEFAULT '',
		detected_objects TEXT DEFAULT '',
		ai_category      TEXT DEFAULT '',
		ai_confidence    REAL DEFAULT 0,
		ai_features      TEXT DEFAULT '',
		reporter_id      TEXT DEFAULT '',
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_items_type_status ON items(type, status);
	CREATE INDEX IF NOT EXISTS idx_items_reporter ON items(reporter_id);

	CREATE TABLE IF NOT EXISTS embeddings (
		item_id    TEXT PRIMARY KEY,
		vector     TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS matches (
		id              TEXT PRIMARY KEY,
		source_item_id  TEXT NOT NULL,
		matched_item_id TEXT NOT NULL,
		score           REAL NOT NULL,
		match_type      TEXT NOT NULL,
		confidence      REAL NOT NULL,
		explanation     TEXT DEFAULT '',
		user_confirmed  INTEGER,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_matches_source ON matches(source_item_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_matches_pair ON matches(source_item_id, matched_item_id);

	CREATE TABLE IF NOT EXISTS verified_samples (
		id                  TEXT PRIMARY KEY,
		item_id             TEXT NOT NULL,
		user_id             TEXT NOT NULL,
		category            TEXT DEFAULT '',
		original_detection  TEXT DEFAULT '',
		corrected_detection TEXT DEFAULT '',
		rating              REAL NOT NULL,
		corrections         INTEGER DEFAULT 0,
		quality_score       REAL NOT NULL,
		verification_status TEXT DEFAULT 'pending',
		used                INTEGER DEFAULT 0,
		created_at          DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_samples_status ON verified_samples(verification_status, used);
	CREATE INDEX IF NOT EXISTS idx_samples_user ON verified_samples(user_id);

	CREATE TABLE IF NOT EXISTS retraining_triggers (
		id            TEXT PRIMARY KEY,
		trigger_type  TEXT NOT NULL UNIQUE,
		threshold     REAL NOT NULL,
		current_value REAL DEFAULT 0,
		status        TEXT DEFAULT 'pending',
		updated_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS model_versions (
		id                    TEXT PRIMARY KEY,
		version               TEXT NOT NULL,
		accuracy              REAL NOT NULL,
		precision             REAL DEFAULT 0,
		recall                REAL DEFAULT 0,
		f1                    REAL DEFAULT 0,
		training_samples      INTEGER DEFAULT 0,
		training_started_at   DATETIME,
		training_completed_at DATETIME,
		is_active             INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_versions_active ON model_versions(is_active);

	CREATE TABLE IF NOT EXISTS learning_progress (
		id       INTEGER PRIMARY KEY CHECK (id = 1),
		phase    TEXT NOT NULL,
		progress REAL DEFAULT 0,
		task     TEXT DEFAULT '',
		logs     TEXT DEFAULT ''
	);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// --- serialization helpers ---

func joinList(vals []string) string {
	return strings.Join(vals, ",")
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func marshalDetections(objs []DetectedObject) string {
	if len(objs) == 0 {
		return ""
	}
	data, err := json.Marshal(objs)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalDetections(s string) []DetectedObject {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var objs []DetectedObject
	if err := json.Unmarshal([]byte(s), &objs); err != nil {
		return nil
	}
	return objs
}

// --- Items ---

func InsertItem(db *sql.DB, item Item) error {
	aiCategory, aiFeatures := "", ""
	aiConfidence := 0.0
	if item.Classification != nil {
		aiCategory = item.Classification.Category
		aiConfidence = item.Classification.Confidence
		aiFeatures = joinList(item.Classification.Features)
	}
	hasCoords := 0
	if item.HasCoords {
		hasCoords = 1
	}
	_, err := db.Exec(
		`INSERT INTO items (id, type, category, description, location_name, lat, lng, has_coords,
		                    date_reported, status, tags, detected_objects, ai_category, ai_confidence, ai_features, reporter_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Type, item.Category, item.Description, item.LocationName,
		item.Lat, item.Lng, hasCoords, item.DateReported, item.Status,
		joinList(item.Tags), marshalDetections(item.DetectedObjects),
		aiCategory, aiConfidence, aiFeatures, item.ReporterID,
	)
	return err
}

func scanItem(scan func(dest ...any) error) (Item, error) {
	var item Item
	var hasCoords int
	var tags, detected, aiCategory, aiFeatures string
	var aiConfidence float64
	err := scan(
		&item.ID, &item.Type, &item.Category, &item.Description, &item.LocationName,
		&item.Lat, &item.Lng, &hasCoords, &item.DateReported, &item.Status,
		&tags, &detected, &aiCategory, &aiConfidence, &aiFeatures,
		&item.ReporterID, &item.CreatedAt,
	)
	if err != nil {
		return item, err
	}
	item.HasCoords = hasCoords != 0
	item.Tags = splitList(tags)
	item.DetectedObjects = unmarshalDetections(detected)
	if aiCategory != "" || aiFeatures != "" {
		item.Classification = &AIClassification{
			Category:   aiCategory,
			Confidence: aiConfidence,
			Features:   splitList(aiFeatures),
		}
	}
	return item, nil
}

const itemColumns = `id, type, category, description, location_name, lat, lng, has_coords,
	date_reported, status, tags, detected_objects, ai_category, ai_confidence, ai_features,
	reporter_id, created_at`

func GetItemByID(db *sql.DB, id string) (Item, error) {
	row := db.QueryRow(`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	return scanItem(row.Scan)
}

// ListActiveItems returns items matching the type filter ("" for all) with
// the given status, newest first.
func ListActiveItems(db *sql.DB, typeFilter, statusFilter string) ([]Item, error) {
	if statusFilter == "" {
		statusFilter = StatusActive
	}
	query := `SELECT ` + itemColumns + ` FROM items WHERE status = ?`
	args := []any{statusFilter}
	if typeFilter != "" {
		query += ` AND type = ?`
		args = append(args, typeFilter)
	}
	query += ` ORDER BY date_reported DESC, id DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func ListItemsByReporter(db *sql.DB, reporterID string) ([]Item, error) {
	rows, err := db.Query(
		`SELECT `+itemColumns+` FROM items WHERE reporter_id = ? ORDER BY date_reported DESC, id DESC`,
		reporterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func UpdateItemStatus(db *sql.DB, id, status string) error {
	_, err := db.Exec(`UPDATE items SET status = ? WHERE id = ?`, status, id)
	return err
}

// --- Embeddings ---

func PutEmbeddingRow(db *sql.DB, itemID string, vector []float64) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	_, err = db.Exec(
		`INSERT INTO embeddings (item_id, vector, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(item_id) DO UPDATE SET vector = excluded.vector, updated_at = CURRENT_TIMESTAMP`,
		itemID, string(data),
	)
	return err
}

func LoadAllEmbeddings(db *sql.DB) (map[string][]float64, error) {
	rows, err := db.Query(`SELECT item_id, vector FROM embeddings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]float64)
	for rows.Next() {
		var itemID, raw string
		if err := rows.Scan(&itemID, &raw); err != nil {
			return nil, err
		}
		var vec []float64
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			continue // one bad row must not abort the load
		}
		out[itemID] = vec
	}
	return out, rows.Err()
}

// --- Matches ---

func InsertMatches(db *sql.DB, matches []Match) (int, error) {
	if len(matches) == 0 {
		return 0, nil
	}
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO matches (id, source_item_id, matched_item_id, score, match_type, confidence, explanation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_item_id, matched_item_id) DO UPDATE
		 SET score = excluded.score, match_type = excluded.match_type,
		     confidence = excluded.confidence, explanation = excluded.explanation`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, m := range matches {
		_, err := stmt.Exec(
			m.ID, m.SourceItemID, m.MatchedItemID, m.Score, m.MatchType,
			m.Confidence, strings.Join(m.Explanation, "|"), m.CreatedAt,
		)
		if err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, tx.Commit()
}

func GetMatchesForItem(db *sql.DB, sourceItemID string) ([]Match, error) {
	rows, err := db.Query(
		`SELECT id, source_item_id, matched_item_id, score, match_type, confidence, explanation, user_confirmed, created_at
		 FROM matches WHERE source_item_id = ? ORDER BY score DESC, created_at DESC`,
		sourceItemID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		var explanation string
		var confirmed sql.NullBool
		if err := rows.Scan(
			&m.ID, &m.SourceItemID, &m.MatchedItemID, &m.Score, &m.MatchType,
			&m.Confidence, &explanation, &confirmed, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		if explanation != "" {
			m.Explanation = strings.Split(explanation, "|")
		}
		if confirmed.Valid {
			v := confirmed.Bool
			m.UserConfirmed = &v
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func SetMatchConfirmed(db *sql.DB, sourceItemID, matchedItemID string, confirmed bool) error {
	res, err := db.Exec(
		`UPDATE matches SET user_confirmed = ? WHERE source_item_id = ? AND matched_item_id = ?`,
		confirmed, sourceItemID, matchedItemID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no match %s -> %s", sourceItemID, matchedItemID)
	}
	return nil
}

// --- Verified samples ---

func InsertVerifiedSample(db *sql.DB, s VerifiedSample) error {
	used := 0
	if s.Used {
		used = 1
	}
	_, err := db.Exec(
		`INSERT INTO verified_samples
		 (id, item_id, user_id, category, original_detection, corrected_detection, rating, corrections, quality_score, verification_status, used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ItemID, s.UserID, s.Category,
		marshalDetections(s.OriginalDetection), marshalDetections(s.CorrectedDetection),
		s.Rating, s.Corrections, s.QualityScore, s.VerificationStatus, used, s.CreatedAt,
	)
	return err
}

func SetSampleVerificationStatus(db *sql.DB, id, status string) error {
	res, err := db.Exec(`UPDATE verified_samples SET verification_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no sample %s", id)
	}
	return nil
}

// ListSamplesByStatus returns the oldest samples in a status, for review.
func ListSamplesByStatus(db *sql.DB, status string, limit int) ([]VerifiedSample, error) {
	rows, err := db.Query(
		`SELECT id, item_id, user_id, category, rating, corrections, quality_score, verification_status, used, created_at
		 FROM verified_samples WHERE verification_status = ? ORDER BY created_at ASC LIMIT ?`,
		status, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VerifiedSample
	for rows.Next() {
		var s VerifiedSample
		var used int
		if err := rows.Scan(&s.ID, &s.ItemID, &s.UserID, &s.Category, &s.Rating,
			&s.Corrections, &s.QualityScore, &s.VerificationStatus, &used, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Used = used != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountVerifiedUnused counts verified samples not yet consumed by a cycle.
func CountVerifiedUnused(db *sql.DB) (int, error) {
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM verified_samples WHERE verification_status = 'verified' AND used = 0`,
	).Scan(&count)
	return count, err
}

func AvgQualityVerifiedUnused(db *sql.DB) (float64, error) {
	var avg float64
	err := db.QueryRow(
		`SELECT COALESCE(AVG(quality_score), 0) FROM verified_samples WHERE verification_status = 'verified' AND used = 0`,
	).Scan(&avg)
	return avg, err
}

func CountSamplesByStatus(db *sql.DB, status string) (int, error) {
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM verified_samples WHERE verification_status = ?`, status,
	).Scan(&count)
	return count, err
}

func CountAllSamples(db *sql.DB) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM verified_samples`).Scan(&count)
	return count, err
}

func GetCategoryPerformance(db *sql.DB) ([]CategoryPerformance, error) {
	rows, err := db.Query(
		`SELECT category, COUNT(*), COALESCE(AVG(quality_score), 0), COALESCE(SUM(corrections), 0)
		 FROM verified_samples
		 WHERE verification_status = 'verified' AND category <> ''
		 GROUP BY category
		 ORDER BY COUNT(*) DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CategoryPerformance
	for rows.Next() {
		var c CategoryPerformance
		if err := rows.Scan(&c.Category, &c.SampleCount, &c.AvgQuality, &c.Corrections); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func GetTopContributors(db *sql.DB, limit int) ([]UserContribution, error) {
	rows, err := db.Query(
		`SELECT user_id, COUNT(*), COALESCE(SUM(corrections), 0), COALESCE(AVG(quality_score), 0)
		 FROM verified_samples
		 WHERE verification_status = 'verified'
		 GROUP BY user_id
		 ORDER BY COUNT(*) DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserContribution
	for rows.Next() {
		var u UserContribution
		if err := rows.Scan(&u.UserID, &u.Samples, &u.Corrections, &u.AvgQuality); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// --- Retraining triggers ---

// EnsureTrigger creates the single live trigger row for a type if missing.
func EnsureTrigger(db *sql.DB, t RetrainingTrigger) error {
	_, err := db.Exec(
		`INSERT INTO retraining_triggers (id, trigger_type, threshold, current_value, status, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(trigger_type) DO NOTHING`,
		t.ID, t.TriggerType, t.Threshold, t.CurrentValue, t.Status,
	)
	return err
}

func GetTrigger(db *sql.DB, triggerType string) (RetrainingTrigger, error) {
	var t RetrainingTrigger
	err := db.QueryRow(
		`SELECT id, trigger_type, threshold, current_value, status, updated_at
		 FROM retraining_triggers WHERE trigger_type = ?`,
		triggerType,
	).Scan(&t.ID, &t.TriggerType, &t.Threshold, &t.CurrentValue, &t.Status, &t.UpdatedAt)
	return t, err
}

func ListTriggers(db *sql.DB) ([]RetrainingTrigger, error) {
	rows, err := db.Query(
		`SELECT id, trigger_type, threshold, current_value, status, updated_at
		 FROM retraining_triggers ORDER BY trigger_type`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RetrainingTrigger
	for rows.Next() {
		var t RetrainingTrigger
		if err := rows.Scan(&t.ID, &t.TriggerType, &t.Threshold, &t.CurrentValue, &t.Status, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func UpdateTriggerProgress(db *sql.DB, triggerType string, currentValue float64) error {
	_, err := db.Exec(
		`UPDATE retraining_triggers SET current_value = ?, updated_at = CURRENT_TIMESTAMP WHERE trigger_type = ?`,
		currentValue, triggerType,
	)
	return err
}

func SetTriggerStatus(db *sql.DB, triggerType, status string) error {
	_, err := db.Exec(
		`UPDATE retraining_triggers SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE trigger_type = ?`,
		status, triggerType,
	)
	return err
}

// --- Model versions ---

func GetActiveModelVersion(db *sql.DB) (ModelVersion, error) {
	var v ModelVersion
	var active int
	err := db.QueryRow(
		`SELECT id, version, accuracy, precision, recall, f1, training_samples,
		        training_started_at, training_completed_at, is_active
		 FROM model_versions WHERE is_active = 1`,
	).Scan(&v.ID, &v.Version, &v.Accuracy, &v.Precision, &v.Recall, &v.F1,
		&v.TrainingSamples, &v.TrainingStartedAt, &v.TrainingCompletedAt, &active)
	v.IsActive = active != 0
	return v, err
}

func ListModelVersions(db *sql.DB) ([]ModelVersion, error) {
	rows, err := db.Query(
		`SELECT id, version, accuracy, precision, recall, f1, training_samples,
		        training_started_at, training_completed_at, is_active
		 FROM model_versions ORDER BY training_completed_at DESC, version DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ModelVersion
	for rows.Next() {
		var v ModelVersion
		var active int
		if err := rows.Scan(&v.ID, &v.Version, &v.Accuracy, &v.Precision, &v.Recall, &v.F1,
			&v.TrainingSamples, &v.TrainingStartedAt, &v.TrainingCompletedAt, &active); err != nil {
			return nil, err
		}
		v.IsActive = active != 0
		out = append(out, v)
	}
	return out, rows.Err()
}

func CountActiveModelVersions(db *sql.DB) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM model_versions WHERE is_active = 1`).Scan(&count)
	return count, err
}

// InsertModelVersion stores an inactive version (seed/bootstrap data).
func InsertModelVersion(db *sql.DB, v ModelVersion) error {
	active := 0
	if v.IsActive {
		active = 1
	}
	_, err := db.Exec(
		`INSERT INTO model_versions
		 (id, version, accuracy, precision, recall, f1, training_samples, training_started_at, training_completed_at, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Version, v.Accuracy, v.Precision, v.Recall, v.F1,
		v.TrainingSamples, v.TrainingStartedAt, v.TrainingCompletedAt, active,
	)
	return err
}

// PublishModelVersion atomically deactivates all prior versions, inserts the
// new version as active, marks the consumed samples used, and completes the
// firing trigger. A reader never observes zero or two active versions.
func PublishModelVersion(db *sql.DB, v ModelVersion, firedTriggerType string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE model_versions SET is_active = 0 WHERE is_active = 1`); err != nil {
		return fmt.Errorf("deactivate versions: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO model_versions
		 (id, version, accuracy, precision, recall, f1, training_samples, training_started_at, training_completed_at, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		v.ID, v.Version, v.Accuracy, v.Precision, v.Recall, v.F1,
		v.TrainingSamples, v.TrainingStartedAt, v.TrainingCompletedAt,
	); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE verified_samples SET used = 1
		 WHERE verification_status = 'verified' AND used = 0 AND created_at <= ?`,
		v.TrainingStartedAt,
	); err != nil {
		return fmt.Errorf("mark samples used: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE retraining_triggers SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE trigger_type = ?`,
		TriggerCompleted, firedTriggerType,
	); err != nil {
		return fmt.Errorf("complete trigger: %w", err)
	}
	return tx.Commit()
}

// --- Learning progress singleton ---

func SaveLearningProgress(db *sql.DB, p LearningProgress) error {
	_, err := db.Exec(
		`INSERT INTO learning_progress (id, phase, progress, task, logs) VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET phase = excluded.phase, progress = excluded.progress,
		     task = excluded.task, logs = excluded.logs`,
		p.CurrentPhase, p.Progress, p.CurrentTask, strings.Join(p.Logs, "\n"),
	)
	return err
}

func LoadLearningProgress(db *sql.DB) (LearningProgress, error) {
	var p LearningProgress
	var logs string
	err := db.QueryRow(
		`SELECT phase, progress, task, logs FROM learning_progress WHERE id = 1`,
	).Scan(&p.CurrentPhase, &p.Progress, &p.CurrentTask, &logs)
	if err != nil {
		return p, err
	}
	if logs != "" {
		p.Logs = strings.Split(logs, "\n")
	}
	return p, nil
}

// NextModelVersionString bumps the patch component of the newest version,
// starting from v1.0.0 on an empty history.
func NextModelVersionString(db *sql.DB) (string, error) {
	versions, err := ListModelVersions(db)
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "v1.0.0", nil
	}
	latest := versions[0].Version
	var major, minor, patch int
	if _, err := fmt.Sscanf(latest, "v%d.%d.%d", &major, &minor, &patch); err != nil {
		return "", fmt.Errorf("parse version '%s': %w", latest, err)
	}
	return fmt.Sprintf("v%d.%d.%d", major, minor, patch+1), nil
}
