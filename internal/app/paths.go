package app

import (
	"os"
	"path/filepath"
)

// Paths holds all resolved paths under the matchpipe home directory.
//
//	.matchpipe/
//	  matchpipe.yml          deployment configuration
//	  var/
//	    ledger.db            checkpoint ledger (SQLite)
//	    logs/<stage>.ndjson  per-stage frame logs
//	    locks/<stage>.lock   per-stage cycle locks
//	    rotation/<stage>.json  rotation counters
//	    notified/<stage>.ndjson  duplicate-suppression stores
type Paths struct {
	Home     string
	Var      string
	Logs     string
	Locks    string
	Rotation string
	Notified string

	Settings string // matchpipe.yml
	Ledger   string // var/ledger.db
}

// ResolvePaths returns all paths based on the MATCHPIPE_HOME environment
// variable, defaulting to .matchpipe in the working directory.
func ResolvePaths() Paths {
	home := os.Getenv("MATCHPIPE_HOME")
	if home == "" {
		home = ".matchpipe"
	}

	p := Paths{
		Home: home,
		Var:  filepath.Join(home, "var"),
	}
	p.Logs = filepath.Join(p.Var, "logs")
	p.Locks = filepath.Join(p.Var, "locks")
	p.Rotation = filepath.Join(p.Var, "rotation")
	p.Notified = filepath.Join(p.Var, "notified")
	p.Settings = filepath.Join(home, "matchpipe.yml")
	p.Ledger = filepath.Join(p.Var, "ledger.db")
	return p
}

// FrameLog returns the frame log path for a stage.
func (p Paths) FrameLog(stage string) string {
	return filepath.Join(p.Logs, stage+".ndjson")
}

// CycleLock returns the cycle lock path for a stage.
func (p Paths) CycleLock(stage string) string {
	return filepath.Join(p.Locks, stage+".lock")
}

// RotationState returns the rotation counter path for a stage.
func (p Paths) RotationState(stage string) string {
	return filepath.Join(p.Rotation, stage+".json")
}

// SuppressionStore returns the notified-id store path for a stage.
func (p Paths) SuppressionStore(stage string) string {
	return filepath.Join(p.Notified, stage+".ndjson")
}
