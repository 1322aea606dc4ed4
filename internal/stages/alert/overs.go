package alert

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/alextrx818/matchpipe/internal/domain/matchstatus"
	"github.com/alextrx818/matchpipe/internal/stages/convert"
	"github.com/alextrx818/matchpipe/internal/stages/monitor"
)

// halftimeGoalless is the exact score line of a match still 0-0 at the
// break.
const halftimeGoalless = "Live Score: 0-0 (HT: 0-0)"

var msgPrinter = message.NewPrinter(language.AmericanEnglish)

// OversRule flags half-time matches that are scoreless with an
// over/under total of at least 3.0 goals still posted.
type OversRule struct{}

func (OversRule) Name() string { return "alert_overs" }

func (OversRule) Qualifies(m monitor.Match) bool {
	if m.Info.StatusID != matchstatus.HalfTime {
		return false
	}
	if m.Info.LiveScore != halftimeGoalless {
		return false
	}
	total, ok := totalLine(m.Odds.OverUnder)
	return ok && total >= 3.0
}

func (OversRule) Message(m monitor.Match, at string) string {
	total := "N/A"
	if v, ok := totalLine(m.Odds.OverUnder); ok {
		total = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return msgPrinter.Sprintf(
		"\U0001F514 *3OU HALF ALERT*\n\n"+
			"⚽ %s vs %s\n"+
			"\U0001F3C6 %s\n"+
			"\U0001F4CA %s\n"+
			"\U0001F3AF O/U Total: %s\n"+
			"⏰ %s",
		orUnknown(m.Info.HomeTeam), orUnknown(m.Info.AwayTeam),
		orUnknown(m.Info.CompetitionName),
		m.Info.LiveScore, total, at)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// totalLine parses the O/U total, which arrives either as a number or
// a numeric string.
func totalLine(q *convert.TotalQuote) (float64, bool) {
	if q == nil {
		return 0, false
	}
	switch v := q.Total.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
