// Package pipeline implements the stage coordination protocol: finding
// unprocessed work in the checkpoint ledger, extracting the upstream
// frame, applying the stage transform, appending downstream, marking
// completion, and handing off to the next stage.
package pipeline

import "strings"

// Stage names as recorded in the checkpoint ledger. The set is fixed at
// deployment time; the origin stage (fetch) owns entry creation and has
// no completion column of its own.
const (
	StageFetch         = "fetch"
	StageMerge         = "merge"
	StageClean         = "clean"
	StageConvert       = "convert"
	StageMonitor       = "monitor"
	StageAlertOvers    = "alert_overs"
	StageAlertUnderdog = "alert_underdog"
)

// Order is the linear pipeline: each stage reads the frame log of the
// stage before it. Both alert stages read the monitor log; the trigger
// chain still visits them one after the other.
var Order = []string{
	StageFetch,
	StageMerge,
	StageClean,
	StageConvert,
	StageMonitor,
	StageAlertOvers,
	StageAlertUnderdog,
}

// Predecessor returns the stage whose frame log and ledger completion
// gate the given stage. The underdog alert consumes monitor frames like
// the overs alert does; it is only *triggered* after it.
func Predecessor(stage string) string {
	switch stage {
	case StageMerge:
		return StageFetch
	case StageClean:
		return StageMerge
	case StageConvert:
		return StageClean
	case StageMonitor:
		return StageConvert
	case StageAlertOvers, StageAlertUnderdog:
		return StageMonitor
	}
	return ""
}

// Next returns the stage to trigger after the given stage completes a
// frame, or "" at the end of the chain.
func Next(stage string) string {
	for i, s := range Order {
		if s == stage && i+1 < len(Order) {
			return Order[i+1]
		}
	}
	return ""
}

// CommandName maps a ledger stage name to its CLI command.
func CommandName(stage string) string {
	return strings.ReplaceAll(stage, "_", "-")
}
