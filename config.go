package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	SlackBotToken string `yaml:"slack_bot_token"`
	SlackAppToken string `yaml:"slack_app_token"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	ClassifierModel string `yaml:"classifier_model"`

	DBPath             string `yaml:"db_path"`
	LocationGroupsPath string `yaml:"location_groups_path"`

	MatchThreshold     float64 `yaml:"match_threshold"`
	NotifyThreshold    float64 `yaml:"notify_threshold"`
	EmbeddingDimension int     `yaml:"embedding_dimension"`

	RetrainingThreshold int    `yaml:"retraining_threshold"`
	QualityThreshold    float64 `yaml:"quality_threshold"`
	RetrainingSchedule  string `yaml:"retraining_schedule"`

	AdminUserIDs []string `yaml:"admin_user_ids"`
	Timezone     string   `yaml:"timezone"`

	Location *time.Location `yaml:"-"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.ClassifierModel, "CLASSIFIER_MODEL")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.LocationGroupsPath, "LOCATION_GROUPS_PATH")
	envOverrideFloat(&cfg.MatchThreshold, "MATCH_THRESHOLD")
	envOverrideFloat(&cfg.NotifyThreshold, "NOTIFY_THRESHOLD")
	envOverrideInt(&cfg.EmbeddingDimension, "EMBEDDING_DIMENSION")
	envOverrideInt(&cfg.RetrainingThreshold, "RETRAINING_THRESHOLD")
	envOverrideFloat(&cfg.QualityThreshold, "QUALITY_THRESHOLD")
	envOverride(&cfg.RetrainingSchedule, "RETRAINING_SCHEDULE")
	envOverride(&cfg.Timezone, "TIMEZONE")

	// Defaults
	if cfg.DBPath == "" {
		cfg.DBPath = "./matchbot.db"
	}
	if cfg.MatchThreshold == 0 {
		cfg.MatchThreshold = 0.60
	}
	if cfg.NotifyThreshold == 0 {
		cfg.NotifyThreshold = 0.75
	}
	if cfg.EmbeddingDimension == 0 {
		cfg.EmbeddingDimension = 512
	}
	if cfg.RetrainingThreshold == 0 {
		cfg.RetrainingThreshold = 500
	}
	if cfg.QualityThreshold == 0 {
		cfg.QualityThreshold = 0.8
	}
	if cfg.RetrainingSchedule == "" {
		cfg.RetrainingSchedule = "0 3 * * 0" // weekly, Sunday 03:00
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	// Validate required fields
	required := map[string]string{
		"slack_bot_token": cfg.SlackBotToken,
		"slack_app_token": cfg.SlackAppToken,
	}
	for name, val := range required {
		if val == "" {
			log.Fatalf("Required config '%s' is not set (via config.yaml or env var)", name)
		}
	}

	if cfg.MatchThreshold < 0 || cfg.MatchThreshold > 1 {
		log.Fatalf("invalid match_threshold '%f': must be between 0 and 1", cfg.MatchThreshold)
	}
	if cfg.NotifyThreshold < 0 || cfg.NotifyThreshold > 1 {
		log.Fatalf("invalid notify_threshold '%f': must be between 0 and 1", cfg.NotifyThreshold)
	}
	if cfg.QualityThreshold < 0 || cfg.QualityThreshold > 1 {
		log.Fatalf("invalid quality_threshold '%f': must be between 0 and 1", cfg.QualityThreshold)
	}
	if cfg.RetrainingThreshold < 1 {
		log.Fatalf("invalid retraining_threshold '%d': must be >= 1", cfg.RetrainingThreshold)
	}
	if cfg.EmbeddingDimension < 1 {
		log.Fatalf("invalid embedding_dimension '%d': must be >= 1", cfg.EmbeddingDimension)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(cfg.RetrainingSchedule); err != nil {
		log.Fatalf("invalid retraining_schedule '%s': %v", cfg.RetrainingSchedule, err)
	}

	if cfg.LocationGroupsPath != "" {
		if _, err := LoadLocationGroups(cfg.LocationGroupsPath); err != nil {
			log.Fatalf("invalid location_groups_path '%s': %v", cfg.LocationGroupsPath, err)
		}
	}

	loc := time.Local
	if cfg.Timezone != "Local" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
	}
	cfg.Location = loc

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func (c Config) IsAdminID(userID string) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
