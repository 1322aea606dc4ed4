// Package config loads matchpipe.yml into the resolved AppConfig.
// Priority: matchpipe.yml > defaults. Absent file means all defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alextrx818/matchpipe/internal/app/config"
)

// RawSettings mirrors the structure of matchpipe.yml. Pointer fields
// distinguish "unset" from zero values so defaults only fill gaps.
type RawSettings struct {
	TimeZone        *string `yaml:"time_zone"`
	PollIntervalSec *int    `yaml:"poll_interval_sec"`

	API struct {
		BaseURL     *string `yaml:"base_url"`
		User        *string `yaml:"user"`
		Secret      *string `yaml:"secret"`
		TimeoutSec  *int    `yaml:"timeout_sec"`
		Concurrency *int    `yaml:"concurrency"`
	} `yaml:"api"`

	Archive struct {
		Bucket   *string `yaml:"bucket"`
		Region   *string `yaml:"region"`
		Endpoint *string `yaml:"endpoint"`
		LocalDir *string `yaml:"local_dir"`
	} `yaml:"archive"`

	Telegram struct {
		BotToken *string `yaml:"bot_token"`
		ChatID   *string `yaml:"chat_id"`
	} `yaml:"telegram"`

	Ledger struct {
		Selection       *string `yaml:"selection"`
		DeadLetterAfter *int    `yaml:"dead_letter_after"`
	} `yaml:"ledger"`

	Suppression struct {
		RetentionHours *int `yaml:"retention_hours"`
	} `yaml:"suppression"`

	Stages map[string]RawStage `yaml:"stages"`
}

// RawStage is per-stage tuning in matchpipe.yml.
type RawStage struct {
	RotationThreshold *int    `yaml:"rotation_threshold"`
	RotationPolicy    *string `yaml:"rotation_policy"`
	ArchiveFolder     *string `yaml:"archive_folder"`
}

// stageDefault captures the shipped per-stage tuning. Alert stages
// retain their local logs because the in-log duplicate scan reads them;
// everything upstream truncates after archiving.
type stageDefault struct {
	threshold int
	policy    string
}

var stageDefaults = map[string]stageDefault{
	"fetch":          {threshold: 10, policy: "truncate"},
	"merge":          {threshold: 50, policy: "truncate"},
	"clean":          {threshold: 50, policy: "truncate"},
	"convert":        {threshold: 50, policy: "truncate"},
	"monitor":        {threshold: 50, policy: "truncate"},
	"alert_overs":    {threshold: 50, policy: "retain"},
	"alert_underdog": {threshold: 1440, policy: "retain"},
}

// LoadSettings loads configuration from settingsPath, filling every
// unset field with its default. A missing file yields pure defaults; a
// malformed file is an error.
func LoadSettings(home, settingsPath string) (*config.AppConfig, error) {
	settings := &RawSettings{}

	if data, err := os.ReadFile(settingsPath); err == nil {
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("parse %s: %w", settingsPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", settingsPath, err)
	}

	return buildAppConfig(home, settings), nil
}

func buildAppConfig(home string, s *RawSettings) *config.AppConfig {
	cfg := &config.AppConfig{
		Home:         home,
		TimeZone:     strOr(s.TimeZone, "America/New_York"),
		PollInterval: time.Duration(intOr(s.PollIntervalSec, 60)) * time.Second,
		API: config.APIConfig{
			BaseURL:     strOr(s.API.BaseURL, "https://api.thesports.com/v1/football/"),
			User:        strOr(s.API.User, ""),
			Secret:      strOr(s.API.Secret, ""),
			Timeout:     time.Duration(intOr(s.API.TimeoutSec, 15)) * time.Second,
			Concurrency: intOr(s.API.Concurrency, 30),
		},
		Archive: config.ArchiveConfig{
			Bucket:   strOr(s.Archive.Bucket, ""),
			Region:   strOr(s.Archive.Region, ""),
			Endpoint: strOr(s.Archive.Endpoint, ""),
			LocalDir: strOr(s.Archive.LocalDir, home+"/var/archive"),
		},
		Telegram: config.TelegramConfig{
			BotToken: strOr(s.Telegram.BotToken, ""),
			ChatID:   strOr(s.Telegram.ChatID, ""),
		},
		Ledger: config.LedgerConfig{
			Selection:       strOr(s.Ledger.Selection, "fifo"),
			DeadLetterAfter: intOr(s.Ledger.DeadLetterAfter, 5),
		},
		Suppression: config.SuppressionConfig{
			Retention: time.Duration(intOr(s.Suppression.RetentionHours, 0)) * time.Hour,
		},
		Stages: make(map[string]config.StageConfig),
	}

	for name, def := range stageDefaults {
		raw := s.Stages[name]
		cfg.Stages[name] = config.StageConfig{
			RotationThreshold: intOr(raw.RotationThreshold, def.threshold),
			RotationPolicy:    strOr(raw.RotationPolicy, def.policy),
			ArchiveFolder:     strOr(raw.ArchiveFolder, name+"_rotating_logs"),
		}
	}
	return cfg
}

func strOr(p *string, def string) string {
	if p != nil {
		return *p
	}
	return def
}

func intOr(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}
