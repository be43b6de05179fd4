package main

import (
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

const itemListPageSize = 15

// Bot bundles the long-lived collaborators the slash command handlers need.
type Bot struct {
	cfg    Config
	db     *sql.DB
	api    *slack.Client
	store  *EmbeddingStore
	groups *LocationGroups
	ctrl   *AutoLearningController
}

func StartSlackBot(b *Bot) error {
	client := socketmode.New(b.api)

	go func() {
		for evt := range client.Events {
			switch evt.Type {
			case socketmode.EventTypeSlashCommand:
				client.Ack(*evt.Request)
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				log.Printf("Slash command received: %s from user=%s channel=%s", cmd.Command, cmd.UserID, cmd.ChannelID)
				go b.handleSlashCommand(cmd)
			}
		}
	}()

	log.Println("Slack bot connected via Socket Mode")
	return client.Run()
}

func (b *Bot) handleSlashCommand(cmd slack.SlashCommand) {
	switch cmd.Command {
	case "/lost":
		b.handleReportItem(cmd, TypeLost)
	case "/found":
		b.handleReportItem(cmd, TypeFound)
	case "/items":
		b.handleListItems(cmd)
	case "/matches":
		b.handleMatches(cmd)
	case "/search":
		b.handleSearch(cmd)
	case "/feedback":
		b.handleFeedback(cmd)
	case "/resolve":
		b.handleResolve(cmd)
	case "/learning":
		b.handleLearning(cmd)
	case "/verify":
		b.handleVerify(cmd)
	case "/retrain":
		b.handleRetrain(cmd)
	case "/help":
		b.handleHelp(cmd)
	}
}

// handleReportItem is the intake path for both /lost and /found:
// parse, classify, embed, store, match, notify.
func (b *Bot) handleReportItem(cmd slack.SlashCommand, itemType string) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		postEphemeral(b.api, cmd, fmt.Sprintf(
			"Usage: /%s <description> @ <location> #tag1 #tag2\nExample: /%s black leather wallet with zipper @ Main Library #wallet #black",
			itemType, itemType))
		return
	}

	description, location, tags := parseItemText(text)
	if description == "" {
		postEphemeral(b.api, cmd, "The item needs a description.")
		return
	}

	classification, detected, err := ClassifyItem(b.cfg, description, tags)
	if err != nil {
		postEphemeral(b.api, cmd, fmt.Sprintf("Error classifying item: %v", err))
		log.Printf("report classify error user=%s: %v", cmd.UserID, err)
		return
	}

	now := time.Now()
	item := Item{
		ID:              uuid.NewString(),
		Type:            itemType,
		Category:        classification.Category,
		Description:     description,
		LocationName:    location,
		DateReported:    now,
		Status:          StatusActive,
		Tags:            tags,
		DetectedObjects: detected,
		Classification:  classification,
		Embedding:       TextEmbedding(description, b.cfg.EmbeddingDimension),
		ReporterID:      cmd.UserID,
		CreatedAt:       now,
	}

	if err := InsertItem(b.db, item); err != nil {
		postEphemeral(b.api, cmd, fmt.Sprintf("Error saving item: %v", err))
		log.Printf("report insert error user=%s: %v", cmd.UserID, err)
		return
	}
	if err := b.store.Put(item.ID, item.Embedding); err != nil {
		log.Printf("report embedding store error item=%s: %v", item.ID, err)
	}

	matches, err := ComputeMatches(b.db, item, b.groups, b.store, b.cfg.MatchThreshold)
	if err != nil {
		log.Printf("report match error item=%s: %v", item.ID, err)
	}

	msg := fmt.Sprintf("Registered %s item `%s` (category: %s, confidence %.0f%%).",
		itemType, item.ID, classification.Category, classification.Confidence*100)
	if len(matches) > 0 {
		msg += fmt.Sprintf("\nFound %d potential match(es):\n", len(matches))
		for _, m := range matches {
			msg += formatMatchLine(m)
		}
	} else {
		msg += "\nNo matches yet. You'll be notified when a likely match comes in."
	}
	postEphemeral(b.api, cmd, msg)

	// Ping the reporters on the other side of each strong match.
	go b.notifyCounterparts(item, matches)
}

// notifyCounterparts DMs both sides of strong matches: the new item's
// reporter hears via the command response, so only the matched items'
// reporters need a push.
func (b *Bot) notifyCounterparts(item Item, matches []Match) {
	NotifyMatches(b.api, item, matches, b.cfg.NotifyThreshold)
	for _, m := range matches {
		if m.Score < b.cfg.NotifyThreshold {
			continue
		}
		other, err := GetItemByID(b.db, m.MatchedItemID)
		if err != nil {
			log.Printf("notify counterpart load error item=%s: %v", m.MatchedItemID, err)
			continue
		}
		mirror := m
		mirror.SourceItemID, mirror.MatchedItemID = m.MatchedItemID, m.SourceItemID
		NotifyMatches(b.api, other, []Match{mirror}, b.cfg.NotifyThreshold)
	}
}

func (b *Bot) handleListItems(cmd slack.SlashCommand) {
	items, err := ListItemsByReporter(b.db, cmd.UserID)
	if err != nil {
		postEphemeral(b.api, cmd, fmt.Sprintf("Error listing items: %v", err))
		log.Printf("list error user=%s: %v", cmd.UserID, err)
		return
	}
	if len(items) == 0 {
		postEphemeral(b.api, cmd, "You have no reported items. Use `/lost` or `/found` to report one.")
		return
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("*Your items (%d):*", len(items)))
	for i, item := range items {
		if i >= itemListPageSize {
			lines = append(lines, fmt.Sprintf("_...and %d more_", len(items)-itemListPageSize))
			break
		}
		loc := item.LocationName
		if loc == "" {
			loc = "unknown location"
		}
		lines = append(lines, fmt.Sprintf("• `%s` [%s/%s] %s — %s (%s)",
			item.ID, item.Type, item.Status, item.Category, item.Description, loc))
	}
	postEphemeral(b.api, cmd, strings.Join(lines, "\n"))
}

func (b *Bot) handleMatches(cmd slack.SlashCommand) {
	itemID := strings.TrimSpace(cmd.Text)
	if itemID == "" {
		postEphemeral(b.api, cmd, "Usage: /matches <item_id>")
		return
	}
	item, err := GetItemByID(b.db, itemID)
	if err != nil {
		postEphemeral(b.api, cmd, fmt.Sprintf("Item `%s` not found.", itemID))
		return
	}
	matches, err := GetMatchesForItem(b.db, itemID)
	if err != nil {
		postEphemeral(b.api, cmd, fmt.Sprintf("Error loading matches: %v", err))
		log.Printf("matches error item=%s: %v", itemID, err)
		return
	}
	if len(matches) == 0 {
		postEphemeral(b.api, cmd, fmt.Sprintf("No matches recorded for `%s` yet.", itemID))
		return
	}

	var b2 strings.Builder
	b2.WriteString(fmt.Sprintf("*Matches for %s item `%s`:*\n", item.Type, item.ID))
	for _, m := range matches {
		b2.WriteString(formatMatchLine(m))
		if m.UserConfirmed != nil {
			if *m.UserConfirmed {
				b2.WriteString("    _confirmed correct_\n")
			} else {
				b2.WriteString("    _marked incorrect_\n")
			}
		}
	}
	postEphemeral(b.api, cmd, b2.String())
}

func (b *Bot) handleSearch(cmd slack.SlashCommand) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		postEphemeral(b.api, cmd, "Usage: /search <description> [@ location] [#category]\nExample: /search blue backpack @ Student Center #bags")
		return
	}

	query, location, tags := parseItemText(text)
	category := ""
	for _, t := range tags {
		if validCategory(t) {
			category = t
			break
		}
	}

	candidates, err := ListActiveItems(b.db, "", StatusActive)
	if err != nil {
		postEphemeral(b.api, cmd, fmt.Sprintf("Error loading items: %v", err))
		log.Printf("search error user=%s: %v", cmd.UserID, err)
		return
	}

	var detected []DetectedObject
	var queryEmbedding []float64
	if query != "" {
		_, detected = heuristicClassification(query, tags)
		queryEmbedding = TextEmbedding(query, b.cfg.EmbeddingDimension)
	}
	filter := MetadataFilter{
		LocationName: location,
		Category:     category,
	}
	if query == "" || location != "" || category != "" {
		filter.DateFrom = time.Now().AddDate(0, 0, -30)
		filter.DateTo = time.Now()
	}

	result := HierarchicalSearch(candidates, detected, queryEmbedding, filter, b.store)
	postEphemeral(b.api, cmd, b.formatSearchResult(result))
}

func (b *Bot) formatSearchResult(result HierarchicalSearchResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Search results* (composite %.0f%%, %dms)\n", result.CompositeScore*100, result.SearchTimeMs))

	sections := []struct {
		title   string
		matches []SearchMatch
	}{
		{"Object class matches", result.ClassMatches},
		{"Visual matches", result.VisualMatches},
		{"Metadata matches", result.MetadataMatches},
	}
	hasResults := false
	for _, s := range sections {
		if len(s.matches) == 0 {
			continue
		}
		hasResults = true
		sb.WriteString(fmt.Sprintf("\n*%s:*\n", s.title))
		for _, m := range s.matches {
			item, err := GetItemByID(b.db, m.ItemID)
			desc := m.ItemID
			if err == nil {
				desc = fmt.Sprintf("`%s` %s", item.ID, item.Description)
			}
			sb.WriteString(fmt.Sprintf("• %s — %.0f%% (%s)\n", desc, m.Similarity*100, m.Explanation))
		}
	}
	if !hasResults {
		sb.WriteString("\nNothing matched. Try a broader description or drop the filters.")
	}
	return sb.String()
}

func (b *Bot) handleFeedback(cmd slack.SlashCommand) {
	fb, err := parseFeedbackText(cmd.Text, cmd.UserID)
	if err != nil {
		postEphemeral(b.api, cmd,
			"Usage: /feedback <item_id> <rating 1-5> [fix:<original>=<corrected>] [match:<matched_id>:yes|no] [comments]\n"+
				"Example: /feedback 3f2a... 4 fix:laptop=tablet match:9b1c...:yes spot on")
		if cmd.Text != "" {
			log.Printf("feedback parse error user=%s: %v", cmd.UserID, err)
		}
		return
	}

	sample, err := SubmitFeedback(b.db, fb, b.cfg.QualityThreshold)
	if err != nil {
		postEphemeral(b.api, cmd, fmt.Sprintf("Error recording feedback: %v", err))
		log.Printf("feedback error user=%s: %v", cmd.UserID, err)
		return
	}

	msg := fmt.Sprintf("Thanks! Feedback recorded (quality %.2f, status: %s).", sample.QualityScore, sample.VerificationStatus)
	if sample.VerificationStatus == VerificationVerified {
		msg += " It will be used in the next training cycle."
	}
	postEphemeral(b.api, cmd, msg)

	// Fresh verified samples may have tipped the retraining threshold.
	if err := b.ctrl.EvaluateTriggers(); err != nil {
		log.Printf("feedback trigger evaluation error: %v", err)
	}
}

func (b *Bot) handleResolve(cmd slack.SlashCommand) {
	itemID := strings.TrimSpace(cmd.Text)
	if itemID == "" {
		postEphemeral(b.api, cmd, "Usage: /resolve <item_id>")
		return
	}
	item, err := GetItemByID(b.db, itemID)
	if err != nil {
		postEphemeral(b.api, cmd, fmt.Sprintf("Item `%s` not found.", itemID))
		return
	}
	if item.ReporterID != cmd.UserID && !b.cfg.IsAdminID(cmd.UserID) {
		postEphemeral(b.api, cmd, "Only the reporter or an admin can resolve an item.")
		return
	}
	if err := UpdateItemStatus(b.db, itemID, StatusClaimed); err != nil {
		postEphemeral(b.api, cmd, fmt.Sprintf("Error resolving item: %v", err))
		log.Printf("resolve error item=%s: %v", itemID, err)
		return
	}
	log.Printf("item resolved item=%s user=%s", itemID, cmd.UserID)
	postEphemeral(b.api, cmd, fmt.Sprintf("Item `%s` marked as claimed. Glad it found its way home!", itemID))
}

func (b *Bot) handleLearning(cmd slack.SlashCommand) {
	progress := b.ctrl.GetProgress()
	metrics, err := GetLearningMetrics(b.db)
	if err != nil {
		postEphemeral(b.api, cmd, fmt.Sprintf("Error loading metrics: %v", err))
		log.Printf("learning metrics error: %v", err)
		return
	}

	var sb strings.Builder
	sb.WriteString("*Auto-Learning Status*\n")
	sb.WriteString(fmt.Sprintf("Phase: `%s` (%.0f%%) — %s\n", progress.CurrentPhase, progress.Progress, progress.CurrentTask))
	sb.WriteString(fmt.Sprintf("Model: %s (accuracy %.1f%%)", metrics.ActiveVersion, metrics.ModelAccuracy*100))
	if !metrics.LastRetrainedAt.IsZero() {
		sb.WriteString(fmt.Sprintf(", last retrained %s", metrics.LastRetrainedAt.Format("Jan 2 15:04")))
	}
	sb.WriteString(fmt.Sprintf("\nSamples: %d total, %d verified, %d pending\n",
		metrics.TotalSamples, metrics.VerifiedSamples, metrics.PendingSamples))

	if versions, verr := ListModelVersions(b.db); verr == nil && len(versions) > 1 {
		sb.WriteString("\n*Version history:*\n")
		for i, v := range versions {
			if i >= 5 {
				break
			}
			marker := ""
			if v.IsActive {
				marker = " (active)"
			}
			sb.WriteString(fmt.Sprintf("• %s%s — accuracy %.1f%%, %d samples\n",
				v.Version, marker, v.Accuracy*100, v.TrainingSamples))
		}
	}

	if len(metrics.Categories) > 0 {
		sb.WriteString("\n*Category performance:*\n")
		for _, c := range metrics.Categories {
			sb.WriteString(fmt.Sprintf("• %s: %d samples, avg quality %.2f, %d corrections\n",
				c.Category, c.SampleCount, c.AvgQuality, c.Corrections))
		}
	}
	if len(metrics.Contributors) > 0 {
		sb.WriteString("\n*Top contributors:*\n")
		for _, u := range metrics.Contributors {
			sb.WriteString(fmt.Sprintf("• <@%s>: %d samples, avg quality %.2f\n", u.UserID, u.Samples, u.AvgQuality))
		}
	}
	if b.cfg.IsAdminID(cmd.UserID) && metrics.PendingSamples > 0 {
		pending, perr := ListSamplesByStatus(b.db, VerificationPending, 5)
		if perr != nil {
			log.Printf("learning pending list error: %v", perr)
		} else {
			sb.WriteString("\n*Pending review* (`/verify <sample_id> yes|no`):\n")
			for _, s := range pending {
				sb.WriteString(fmt.Sprintf("• `%s` item `%s` by <@%s> (quality %.2f, %d corrections)\n",
					s.ID, s.ItemID, s.UserID, s.QualityScore, s.Corrections))
			}
		}
	}

	if n := len(progress.Logs); n > 0 {
		sb.WriteString("\n*Recent activity:*\n")
		start := n - 5
		if start < 0 {
			start = 0
		}
		for _, line := range progress.Logs[start:] {
			sb.WriteString("> " + line + "\n")
		}
	}
	postEphemeral(b.api, cmd, sb.String())
}

// handleVerify lets an admin settle a pending sample either way.
func (b *Bot) handleVerify(cmd slack.SlashCommand) {
	if !b.cfg.IsAdminID(cmd.UserID) {
		postEphemeral(b.api, cmd, "Only admins can verify samples.")
		return
	}
	fields := strings.Fields(strings.TrimSpace(cmd.Text))
	if len(fields) != 2 || (!strings.EqualFold(fields[1], "yes") && !strings.EqualFold(fields[1], "no")) {
		postEphemeral(b.api, cmd, "Usage: /verify <sample_id> yes|no")
		return
	}
	status := VerificationVerified
	if strings.EqualFold(fields[1], "no") {
		status = VerificationRejected
	}
	if err := SetSampleVerificationStatus(b.db, fields[0], status); err != nil {
		postEphemeral(b.api, cmd, fmt.Sprintf("Error verifying sample: %v", err))
		log.Printf("verify error sample=%s: %v", fields[0], err)
		return
	}
	log.Printf("sample reviewed sample=%s status=%s by=%s", fields[0], status, cmd.UserID)
	postEphemeral(b.api, cmd, fmt.Sprintf("Sample `%s` marked %s.", fields[0], status))

	if status == VerificationVerified {
		if err := b.ctrl.EvaluateTriggers(); err != nil {
			log.Printf("verify trigger evaluation error: %v", err)
		}
	}
}

func (b *Bot) handleRetrain(cmd slack.SlashCommand) {
	if !b.cfg.IsAdminID(cmd.UserID) {
		postEphemeral(b.api, cmd, "Only admins can trigger retraining.")
		return
	}
	trigger, err := b.ctrl.TriggerManualRetraining()
	if err != nil {
		if err == ErrCycleInFlight {
			postEphemeral(b.api, cmd, "A retraining cycle is already in progress. Check `/learning` for status.")
			return
		}
		postEphemeral(b.api, cmd, fmt.Sprintf("Error starting retraining: %v", err))
		log.Printf("retrain error user=%s: %v", cmd.UserID, err)
		return
	}
	log.Printf("manual retraining started by user=%s", cmd.UserID)
	postEphemeral(b.api, cmd, fmt.Sprintf("Retraining started (trigger status: %s). Follow along with `/learning`.", trigger.Status))
}

func (b *Bot) handleHelp(cmd slack.SlashCommand) {
	lines := []string{
		"*MatchBot Commands*",
		"",
		"`/lost <description> @ <location> #tags` — Report a lost item.",
		"`/found <description> @ <location> #tags` — Report a found item.",
		">*Example:* `/lost black leather wallet @ Main Library #wallet #black`",
		"",
		"`/items` — List your reported items.",
		"`/matches <item_id>` — Show stored matches for an item.",
		"`/search <description> [@ location] [#category]` — Search all active items.",
		"`/feedback <item_id> <rating 1-5> [fix:<orig>=<new>] [match:<id>:yes|no]` — Rate a match or correct a detection.",
		"`/resolve <item_id>` — Mark your item as claimed.",
		"`/learning` — Show learning progress and model metrics.",
		"`/help` — Show this help.",
	}
	if b.cfg.IsAdminID(cmd.UserID) {
		lines = append(lines,
			"",
			"*Admin Commands*",
			"",
			"`/verify <sample_id> yes|no` — Settle a pending feedback sample.",
			"`/retrain` — Start a retraining cycle now.",
		)
	}
	postEphemeral(b.api, cmd, strings.Join(lines, "\n"))
}

func postEphemeral(api *slack.Client, cmd slack.SlashCommand, text string) {
	_, err := api.PostEphemeral(cmd.ChannelID, cmd.UserID, slack.MsgOptionText(text, false))
	if err != nil {
		log.Printf("Error posting ephemeral: %v", err)
	}
}

// parseItemText splits "<description> @ <location> #tag1 #tag2" into its
// parts. Tags can appear anywhere; the location is everything after the
// last " @ " separator, minus any tags.
func parseItemText(text string) (description, location string, tags []string) {
	var descWords, locWords []string
	inLocation := false
	for _, tok := range strings.Fields(text) {
		switch {
		case tok == "@":
			inLocation = true
		case strings.HasPrefix(tok, "#") && len(tok) > 1:
			tags = append(tags, strings.ToLower(tok[1:]))
		case inLocation:
			locWords = append(locWords, tok)
		default:
			descWords = append(descWords, tok)
		}
	}
	sort.Strings(tags)
	return strings.Join(descWords, " "), strings.Join(locWords, " "), tags
}

// parseFeedbackText parses "/feedback <item_id> <rating> [fix:a=b]
// [match:<id>:yes|no] [free-form comments]".
func parseFeedbackText(text, userID string) (UserFeedback, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) < 2 {
		return UserFeedback{}, fmt.Errorf("feedback needs an item id and a rating")
	}

	rating, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return UserFeedback{}, fmt.Errorf("invalid rating '%s': %w", fields[1], err)
	}

	fb := UserFeedback{
		ItemID: fields[0],
		UserID: userID,
		Rating: rating,
	}

	var comments []string
	for _, tok := range fields[2:] {
		switch {
		case strings.HasPrefix(tok, "fix:"):
			parts := strings.SplitN(strings.TrimPrefix(tok, "fix:"), "=", 2)
			if len(parts) != 2 || parts[1] == "" {
				return UserFeedback{}, fmt.Errorf("invalid correction '%s': expected fix:<original>=<corrected>", tok)
			}
			fb.Corrections = append(fb.Corrections, DetectionCorrection{
				OriginalClass:  strings.ToLower(parts[0]),
				CorrectedClass: strings.ToLower(parts[1]),
				Confidence:     1.0,
			})
		case strings.HasPrefix(tok, "match:"):
			parts := strings.SplitN(strings.TrimPrefix(tok, "match:"), ":", 2)
			if len(parts) != 2 {
				return UserFeedback{}, fmt.Errorf("invalid confirmation '%s': expected match:<item_id>:yes|no", tok)
			}
			correct := strings.EqualFold(parts[1], "yes")
			if !correct && !strings.EqualFold(parts[1], "no") {
				return UserFeedback{}, fmt.Errorf("invalid confirmation verdict '%s': expected yes or no", parts[1])
			}
			fb.MatchConfirmation = &MatchConfirmation{MatchedItemID: parts[0], Correct: correct}
		default:
			comments = append(comments, tok)
		}
	}
	fb.Comments = strings.Join(comments, " ")
	return fb, nil
}
