package main

import (
	"log"

	"github.com/slack-go/slack"
)

func main() {
	cfg := LoadConfig()

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	store, err := NewEmbeddingStore(db, cfg.EmbeddingDimension)
	if err != nil {
		log.Fatalf("Failed to load embeddings: %v", err)
	}

	groups := loadLocationGroupsIfConfigured(cfg)

	ctrl, err := NewAutoLearningController(db, cfg.RetrainingThreshold)
	if err != nil {
		log.Fatalf("Failed to init learning controller: %v", err)
	}

	api := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
	)

	StartTriggerEvaluator(ctrl)
	StartRetrainingScheduler(cfg, ctrl)

	bot := &Bot{
		cfg:    cfg,
		db:     db,
		api:    api,
		store:  store,
		groups: groups,
		ctrl:   ctrl,
	}

	log.Println("Starting Lost & Found Match Bot...")
	if err := StartSlackBot(bot); err != nil {
		log.Fatalf("Slack bot error: %v", err)
	}
}
