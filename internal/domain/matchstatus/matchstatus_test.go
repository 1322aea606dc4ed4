package matchstatus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	assert.Equal(t, "Half-time", Name(HalfTime))
	assert.Equal(t, "Penalty Shoot-out", Name(PenaltyShootOut))
	assert.Equal(t, "Unknown Status", Name(99))
}

func TestInPlay(t *testing.T) {
	assert.False(t, InPlay(NotStarted))
	assert.True(t, InPlay(FirstHalf))
	assert.True(t, InPlay(PenaltyShootOut))
	assert.False(t, InPlay(Ended))
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "Status ID: 3 (Half-time)", Display(HalfTime))
}

func TestSummarize(t *testing.T) {
	s := Summarize(map[int]int{
		NotStarted: 4,
		FirstHalf:  2,
		HalfTime:   1,
		Ended:      3,
	})

	assert.Equal(t, 10, s.TotalMatches)
	assert.Equal(t, 3, s.MatchesInPlay)
	assert.Equal(t, []string{
		"Status ID 1 (Not started): 4 matches",
		"Status ID 2 (First half): 2 matches",
		"Status ID 3 (Half-time): 1 matches",
		"Status ID 8 (End): 3 matches",
	}, s.Breakdown)
	assert.Equal(t, map[string]int{"1": 4, "2": 2, "3": 1, "8": 3}, s.RawCounts)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.TotalMatches)
	assert.Empty(t, s.Breakdown)
}
