// Package config defines the resolved application configuration passed
// to constructors. Nothing reads settings at import time; every
// component receives an explicit AppConfig.
package config

import "time"

// APIConfig configures the sports data provider client.
type APIConfig struct {
	BaseURL     string
	User        string
	Secret      string
	Timeout     time.Duration // per-request bound
	Concurrency int           // fan-out semaphore capacity
}

// ArchiveConfig configures cold storage for rotated frame logs.
// When Bucket is empty, rotated logs go to LocalDir instead.
type ArchiveConfig struct {
	Bucket   string
	Region   string
	Endpoint string
	LocalDir string
}

// TelegramConfig configures the alert messaging endpoint.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// LedgerConfig configures checkpoint ledger behavior.
type LedgerConfig struct {
	Selection       string // "fifo" or "newest"
	DeadLetterAfter int
}

// SuppressionConfig configures notified-id retention. Zero keeps
// entries for the deployment lifetime.
type SuppressionConfig struct {
	Retention time.Duration
}

// StageConfig is per-stage rotation tuning.
type StageConfig struct {
	RotationThreshold int
	RotationPolicy    string // "truncate" or "retain"
	ArchiveFolder     string
}

// AppConfig is the full resolved configuration.
type AppConfig struct {
	Home         string
	TimeZone     string
	PollInterval time.Duration

	API         APIConfig
	Archive     ArchiveConfig
	Telegram    TelegramConfig
	Ledger      LedgerConfig
	Suppression SuppressionConfig
	Stages      map[string]StageConfig
}

// Stage returns the stage's tuning, falling back to zero values for
// unknown names (rotation disabled).
func (c AppConfig) Stage(name string) StageConfig {
	return c.Stages[name]
}
