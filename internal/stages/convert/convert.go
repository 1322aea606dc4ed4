// Package convert applies unit conversions to a clean frame: decimal
// and Hong Kong odds become American price strings, Celsius becomes
// Fahrenheit, wind speed becomes mph with a Beaufort label, numeric
// weather codes become text.
package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/alextrx818/matchpipe/internal/domain/matchstatus"
	"github.com/alextrx818/matchpipe/internal/stages/clean"
	"github.com/alextrx818/matchpipe/internal/stages/merge"
)

// Payload is the convert frame body.
type Payload struct {
	Matches []Match           `json:"matches"`
	Stats   matchstatus.Stats `json:"match_stats"`
}

// Match carries one match with converted odds and environment.
type Match struct {
	MatchID     string             `json:"match_id"`
	ScoreLine   string             `json:"formatted_live_score"`
	Status      string             `json:"status"`
	HomeCorners int                `json:"home_corners"`
	AwayCorners int                `json:"away_corners"`
	Details     *merge.Details     `json:"match_details,omitempty"`
	Parsed      *merge.ParsedScore `json:"parsed_score,omitempty"`
	Odds        Odds               `json:"converted_odds"`
	Environment *Environment       `json:"environment,omitempty"`
	Incidents   []merge.Incident   `json:"var_incidents,omitempty"`
}

// Odds holds at most one converted quote per market, taken from the
// tick closest to minute 3 of the opening window.
type Odds struct {
	Spread    *SpreadQuote    `json:"Spread,omitempty"`
	MoneyLine *MoneyLineQuote `json:"MoneyLine,omitempty"`
	OverUnder *TotalQuote     `json:"O/U,omitempty"`
	Corners   *TotalQuote     `json:"Corners,omitempty"`
}

// SpreadQuote prices both sides of the handicap line.
type SpreadQuote struct {
	TimeOfMatch string `json:"time_of_match"`
	Home        string `json:"Home"`
	Spread      any    `json:"Spread"`
	Away        string `json:"Away"`
}

// MoneyLineQuote prices the three-way result market.
type MoneyLineQuote struct {
	TimeOfMatch string `json:"time_of_match"`
	Home        string `json:"Home"`
	Tie         string `json:"Tie"`
	Away        string `json:"Away"`
}

// TotalQuote prices an over/under market; the line itself is
// untouched so the alert stages can parse it.
type TotalQuote struct {
	TimeOfMatch string `json:"time_of_match"`
	Over        string `json:"Over"`
	Total       any    `json:"Total"`
	Under       string `json:"Under"`
}

// Environment is the converted weather block.
type Environment struct {
	Weather     string `json:"weather"`
	Pressure    string `json:"pressure"`
	Temperature string `json:"temperature_f"`
	Wind        string `json:"wind"`
	Humidity    any    `json:"humidity"`
}

// Transform runs the conversions for one frame.
type Transform struct{}

func (Transform) Apply(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var in clean.Payload
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, fmt.Errorf("convert: decode clean payload: %w", err)
	}

	out := Payload{Matches: make([]Match, 0, len(in.Matches)), Stats: in.Stats}
	for _, m := range in.Matches {
		cm := Match{
			MatchID:     m.MatchID,
			ScoreLine:   m.ScoreLine,
			Status:      m.Status,
			Details:     m.Details,
			Parsed:      m.Parsed,
			Odds:        convertOdds(m.Odds),
			Incidents:   m.Incidents,
			Environment: convertEnvironment(m.Details),
		}
		if m.Parsed != nil {
			cm.HomeCorners = m.Parsed.Home.Corners
			cm.AwayCorners = m.Parsed.Away.Corners
		}
		out.Matches = append(out.Matches, cm)
	}

	doc, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("convert: marshal payload: %w", err)
	}
	return doc, nil
}

func convertOdds(markets map[string]clean.Market) Odds {
	var odds Odds
	if row, ok := bestTick(markets["Spread"]); ok {
		odds.Spread = &SpreadQuote{
			TimeOfMatch: row.Minute(),
			Home:        HongKongToAmerican(row[2]),
			Spread:      row[3],
			Away:        HongKongToAmerican(row[4]),
		}
	}
	if row, ok := bestTick(markets["MoneyLine"]); ok {
		odds.MoneyLine = &MoneyLineQuote{
			TimeOfMatch: row.Minute(),
			Home:        DecimalToAmerican(row[2]),
			Tie:         DecimalToAmerican(row[3]),
			Away:        DecimalToAmerican(row[4]),
		}
	}
	if row, ok := bestTick(markets["O/U"]); ok {
		odds.OverUnder = &TotalQuote{
			TimeOfMatch: row.Minute(),
			Over:        HongKongToAmerican(row[2]),
			Total:       row[3],
			Under:       HongKongToAmerican(row[4]),
		}
	}
	if row, ok := bestTick(markets["Corners"]); ok {
		odds.Corners = &TotalQuote{
			TimeOfMatch: row.Minute(),
			Over:        HongKongToAmerican(row[2]),
			Total:       row[3],
			Under:       HongKongToAmerican(row[4]),
		}
	}
	return odds
}

// bestTick picks the quote nearest the settled early market: minute 3
// when present, else the next minute after 3, else the latest minute
// in the window, else the pre-match tick.
func bestTick(market clean.Market) (merge.OddsRow, bool) {
	var prematch merge.OddsRow
	byMinute := make(map[int]merge.OddsRow)
	for _, row := range market.Rows {
		if len(row) < 5 {
			continue
		}
		m := row.Minute()
		if m == "" {
			prematch = row
			continue
		}
		n, err := strconv.Atoi(m)
		if err != nil || n > 10 {
			continue
		}
		byMinute[n] = row
	}

	if row, ok := byMinute[3]; ok {
		return row, true
	}
	// Next minute after 3 wins; with nothing after 3 the latest
	// earlier minute does.
	after, before := -1, -1
	for n := range byMinute {
		if n > 3 {
			if after == -1 || n < after {
				after = n
			}
		} else if n > before {
			before = n
		}
	}
	if after >= 0 {
		return byMinute[after], true
	}
	if before >= 0 {
		return byMinute[before], true
	}
	if prematch != nil {
		return prematch, true
	}
	return nil, false
}

// DecimalToAmerican converts European decimal odds to an American
// price string. Unparseable input passes through unchanged.
func DecimalToAmerican(v any) string {
	dec, ok := toFloat(v)
	if !ok {
		return fmt.Sprint(v)
	}
	switch {
	case dec <= 1.0:
		return "+100"
	case dec >= 2.0:
		return fmt.Sprintf("+%d", int((dec-1)*100))
	default:
		return fmt.Sprintf("-%d", int(100/(dec-1)))
	}
}

// HongKongToAmerican converts Hong Kong odds to an American price
// string by shifting to decimal first.
func HongKongToAmerican(v any) string {
	hk, ok := toFloat(v)
	if !ok {
		return fmt.Sprint(v)
	}
	dec := hk + 1
	if dec <= 1.0 {
		return fmt.Sprint(v)
	}
	if dec >= 2.0 {
		return fmt.Sprintf("+%d", int((dec-1)*100))
	}
	return fmt.Sprintf("-%d", int(100/(dec-1)))
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// rawEnvironment is the provider's weather block on the match detail.
type rawEnvironment struct {
	Weather     any `json:"weather"`
	Pressure    any `json:"pressure"`
	Temperature any `json:"temperature"`
	Wind        any `json:"wind"`
	Humidity    any `json:"humidity"`
}

func convertEnvironment(d *merge.Details) *Environment {
	if d == nil || len(d.Environment) == 0 {
		return nil
	}
	var raw rawEnvironment
	if err := json.Unmarshal(d.Environment, &raw); err != nil {
		return nil
	}
	return &Environment{
		Weather:     WeatherText(raw.Weather),
		Pressure:    PressureToInHg(raw.Pressure),
		Temperature: CelsiusToFahrenheit(raw.Temperature),
		Wind:        WindToMph(raw.Wind),
		Humidity:    raw.Humidity,
	}
}

var weatherTexts = map[int]string{
	1:  "Clear",
	2:  "Partly Cloudy",
	3:  "Cloudy",
	4:  "Light Rain",
	5:  "Fair",
	6:  "Moderate Rain",
	7:  "Overcast",
	8:  "Heavy Rain",
	9:  "Thunderstorms",
	10: "Snow",
}

// WeatherText converts a numeric weather code to its display name.
func WeatherText(code any) string {
	f, ok := toFloat(code)
	if !ok {
		return fmt.Sprintf("Unknown (%v)", code)
	}
	if text, ok := weatherTexts[int(f)]; ok {
		return text
	}
	return fmt.Sprintf("Unknown (%d)", int(f))
}

// CelsiusToFahrenheit converts "19°C" style readings to "66F".
// Readings already in Fahrenheit or without a unit are normalized the
// same way; anything unparseable passes through.
func CelsiusToFahrenheit(v any) string {
	s, ok := v.(string)
	if !ok {
		if f, ok := toFloat(v); ok {
			return fmt.Sprintf("%dF", int(f*9/5+32))
		}
		return fmt.Sprint(v)
	}
	switch {
	case strings.Contains(s, "F"):
		f, err := parseUnit(s, "°", "F")
		if err != nil {
			return s
		}
		return fmt.Sprintf("%dF", int(f))
	case strings.Contains(s, "C"):
		c, err := parseUnit(s, "°", "C")
		if err != nil {
			return s
		}
		return fmt.Sprintf("%dF", int(c*9/5+32))
	default:
		c, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return s
		}
		return fmt.Sprintf("%dF", int(c*9/5+32))
	}
}

// WindToMph converts "6.8m/s" readings to "15mph (Moderate Breeze)".
func WindToMph(v any) string {
	s, ok := v.(string)
	if !ok || !strings.Contains(s, "m/s") {
		return fmt.Sprint(v)
	}
	ms, err := parseUnit(s, "m/s")
	if err != nil {
		return s
	}
	mph := ms * 2.237
	return fmt.Sprintf("%dmph (%s)", int(mph), BeaufortLabel(mph))
}

// BeaufortLabel classifies a wind speed in mph on the Beaufort scale.
func BeaufortLabel(mph float64) string {
	switch {
	case mph <= 1:
		return "Calm"
	case mph <= 3:
		return "Light Air"
	case mph <= 7:
		return "Light Breeze"
	case mph <= 12:
		return "Gentle Breeze"
	case mph <= 18:
		return "Moderate Breeze"
	case mph <= 24:
		return "Fresh Breeze"
	case mph <= 31:
		return "Strong Breeze"
	case mph <= 38:
		return "Near Gale"
	case mph <= 46:
		return "Gale"
	case mph <= 54:
		return "Strong Gale"
	case mph <= 63:
		return "Storm"
	default:
		return "Hurricane Force"
	}
}

// PressureToInHg normalizes mmHg and hPa readings to inches of
// mercury.
func PressureToInHg(v any) string {
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v)
	}
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "mmHg"):
		mm, err := parseUnit(s, "mmHg")
		if err != nil {
			return s
		}
		return fmt.Sprintf("%.1f inHg", mm*0.03937)
	case strings.Contains(s, "hPa"):
		hpa, err := parseUnit(s, "hPa")
		if err != nil {
			return s
		}
		return fmt.Sprintf("%.1f inHg", hpa*0.02953)
	case strings.Contains(s, "inHg"):
		in, err := parseUnit(s, "inHg")
		if err != nil {
			return s
		}
		return fmt.Sprintf("%.1f inHg", in)
	default:
		return s
	}
}

func parseUnit(s string, units ...string) (float64, error) {
	for _, u := range units {
		s = strings.ReplaceAll(s, u, "")
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
