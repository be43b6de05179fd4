package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"
)

// NotifyMatches DMs the reporter of an item about its strong matches.
// Only matches at or above the notify threshold are sent; the weaker ones
// stay queryable via /matches without pinging anyone.
func NotifyMatches(api *slack.Client, item Item, matches []Match, notifyThreshold float64) {
	if api == nil || item.ReporterID == "" {
		return
	}

	var strong []Match
	for _, m := range matches {
		if m.Score >= notifyThreshold {
			strong = append(strong, m)
		}
	}
	if len(strong) == 0 {
		return
	}

	channel, _, _, err := api.OpenConversation(&slack.OpenConversationParameters{
		Users: []string{item.ReporterID},
	})
	if err != nil {
		log.Printf("Error opening DM with %s: %v", item.ReporterID, err)
		return
	}

	var b strings.Builder
	if len(strong) == 1 {
		b.WriteString(fmt.Sprintf("Good news! We found a potential match for your %s item *%s*:\n", item.Type, item.ID))
	} else {
		b.WriteString(fmt.Sprintf("Good news! We found %d potential matches for your %s item *%s*:\n", len(strong), item.Type, item.ID))
	}
	for _, m := range strong {
		b.WriteString(formatMatchLine(m))
	}
	b.WriteString("\nReply with `/feedback` after checking a match to help the system learn.")

	if _, _, err := api.PostMessage(channel.ID, slack.MsgOptionText(b.String(), false)); err != nil {
		log.Printf("Error sending match notification to %s: %v", item.ReporterID, err)
		return
	}
	log.Printf("match notification sent user=%s item=%s matches=%d", item.ReporterID, item.ID, len(strong))
}

func formatMatchLine(m Match) string {
	line := fmt.Sprintf("• `%s` — score %.0f%% (%s, confidence %.0f%%)\n",
		m.MatchedItemID, m.Score*100, m.MatchType, m.Confidence*100)
	if len(m.Explanation) > 0 {
		line += "    " + strings.Join(m.Explanation, "; ") + "\n"
	}
	return line
}
