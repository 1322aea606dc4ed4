package alert

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alextrx818/matchpipe/internal/domain/matchstatus"
	"github.com/alextrx818/matchpipe/internal/stages/monitor"
)

// UnderdogRule flags half-time matches where the moneyline underdog
// holds the lead. The underdog is the side quoted at positive American
// odds; with both sides positive, the longer price.
type UnderdogRule struct{}

func (UnderdogRule) Name() string { return "alert_underdog" }

func (UnderdogRule) Qualifies(m monitor.Match) bool {
	side, ok := underdogSide(m)
	if !ok {
		return false
	}
	if m.Info.StatusID != matchstatus.HalfTime {
		return false
	}
	homeHT, awayHT, ok := halftimeScore(m.Info.LiveScore)
	if !ok {
		return false
	}
	switch side {
	case "home":
		return homeHT > awayHT
	case "away":
		return awayHT > homeHT
	}
	return false
}

func (UnderdogRule) Message(m monitor.Match, at string) string {
	side, _ := underdogSide(m)
	underdog, price := orUnknown(m.Info.HomeTeam), ""
	if m.Odds.MoneyLine != nil {
		price = m.Odds.MoneyLine.Home
	}
	if side == "away" {
		underdog = orUnknown(m.Info.AwayTeam)
		if m.Odds.MoneyLine != nil {
			price = m.Odds.MoneyLine.Away
		}
	}
	return msgPrinter.Sprintf(
		"\U0001F514 *UNDERDOG HALF ALERT*\n\n"+
			"⚽ %s vs %s\n"+
			"\U0001F3C6 %s\n"+
			"\U0001F4CA %s\n"+
			"\U0001F4B0 %s leading at %s\n"+
			"⏰ %s",
		orUnknown(m.Info.HomeTeam), orUnknown(m.Info.AwayTeam),
		orUnknown(m.Info.CompetitionName),
		m.Info.LiveScore, underdog, price, at)
}

// underdogSide picks the moneyline underdog from the converted quote.
func underdogSide(m monitor.Match) (string, bool) {
	q := m.Odds.MoneyLine
	if q == nil {
		return "", false
	}
	home, okH := americanValue(q.Home)
	away, okA := americanValue(q.Away)
	if !okH || !okA {
		return "", false
	}
	switch {
	case home > 0 && home > away:
		return "home", true
	case away > 0 && away > home:
		return "away", true
	}
	return "", false
}

// americanValue parses "+150" / "-200" price strings.
func americanValue(s string) (int, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(s, "+"))
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// halftimeScore pulls the HT goals out of the rendered score line.
func halftimeScore(line string) (home, away int, ok bool) {
	var fullHome, fullAway int
	n, err := fmt.Sscanf(line, "Live Score: %d-%d (HT: %d-%d)", &fullHome, &fullAway, &home, &away)
	return home, away, err == nil && n == 4
}
