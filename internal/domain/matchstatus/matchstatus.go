// Package matchstatus maps provider match-state ids to display names
// and classifies which states count as in-play.
package matchstatus

import (
	"fmt"
	"sort"
)

// Provider match-state ids.
const (
	Abnormal        = 0
	NotStarted      = 1
	FirstHalf       = 2
	HalfTime        = 3
	SecondHalf      = 4
	Overtime        = 5
	OvertimeOld     = 6
	PenaltyShootOut = 7
	Ended           = 8
	Delayed         = 9
	Interrupted     = 10
	CutInHalf       = 11
	Cancelled       = 12
	ToBeDetermined  = 13
)

var names = map[int]string{
	Abnormal:        "Abnormal(suggest hiding)",
	NotStarted:      "Not started",
	FirstHalf:       "First half",
	HalfTime:        "Half-time",
	SecondHalf:      "Second half",
	Overtime:        "Overtime",
	OvertimeOld:     "Overtime(deprecated)",
	PenaltyShootOut: "Penalty Shoot-out",
	Ended:           "End",
	Delayed:         "Delay",
	Interrupted:     "Interrupt",
	CutInHalf:       "Cut in half",
	Cancelled:       "Cancel",
	ToBeDetermined:  "To be determined",
}

// Name returns the display name for a state id.
func Name(id int) string {
	if n, ok := names[id]; ok {
		return n
	}
	return "Unknown Status"
}

// InPlay reports whether the state id counts as a live, in-progress
// match (first half through penalty shoot-out).
func InPlay(id int) bool { return id >= FirstHalf && id <= PenaltyShootOut }

// Display renders the operator-facing status line, e.g.
// "Status ID: 3 (Half-time)".
func Display(id int) string {
	return fmt.Sprintf("Status ID: %d (%s)", id, Name(id))
}

// Stats summarizes the state distribution of one fetch cycle.
type Stats struct {
	TotalMatches  int            `json:"total_matches"`
	MatchesInPlay int            `json:"matches_in_play"`
	Breakdown     []string       `json:"status_breakdown"`
	RawCounts     map[string]int `json:"raw_status_counts"`
}

// Summarize builds Stats from a state-id histogram.
func Summarize(counts map[int]int) Stats {
	s := Stats{RawCounts: make(map[string]int, len(counts))}

	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		n := counts[id]
		s.TotalMatches += n
		if InPlay(id) {
			s.MatchesInPlay += n
		}
		s.Breakdown = append(s.Breakdown,
			fmt.Sprintf("Status ID %d (%s): %d matches", id, Name(id), n))
		s.RawCounts[fmt.Sprintf("%d", id)] = n
	}
	return s
}
