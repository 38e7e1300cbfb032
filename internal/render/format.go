// Package render turns registration results into Discord text and embeds.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/id-gotta-bike/gottabike-bot/internal/registration"
)

// Discord limits.
const (
	MaxMessageLength   = 2000
	MaxEmbedFieldName  = 256
	MaxEmbedFieldValue = 1024
)

const (
	placeholder       = "_"
	noHandicapRecord  = "No handicap record"
	noPhenotypeRecord = "No phenotype"
)

// FormatHandicaps renders the four terrain handicaps with two decimals.
func FormatHandicaps(stats *registration.RacingStats) string {
	profile, ok := stats.HandicapProfile()
	if !ok {
		return noHandicapRecord
	}
	return strings.Join([]string{
		fmt.Sprintf("Flat: %.2f", profile.Flat),
		fmt.Sprintf("Rolling: %.2f", profile.Rolling),
		fmt.Sprintf("Hilly: %.2f", profile.Hilly),
		fmt.Sprintf("Mountainous: %.2f", profile.Mountainous),
	}, "\n")
}

// FormatPhenotype renders the phenotype label line followed by the five scores
// with one decimal.
func FormatPhenotype(stats *registration.RacingStats) string {
	p, ok := stats.PhenotypeProfile()
	if !ok {
		return noPhenotypeRecord
	}
	return strings.Join([]string{
		fmt.Sprintf("Type: %s: %s ", orPlaceholder(p.Value), orPlaceholder(p.Bias)),
		fmt.Sprintf("Sprinter: %.1f", p.Sprinter),
		fmt.Sprintf("Puncheur: %.1f", p.Puncheur),
		fmt.Sprintf("Pursuiter: %.1f", p.Pursuiter),
		fmt.Sprintf("Climber: %.1f", p.Climber),
		fmt.Sprintf("Time Trial: %.1f", p.TT),
	}, "\n")
}

// Truncate shortens s to at most limit runes, marking the cut with "...".
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= 3 {
		return string([]rune(s)[:limit])
	}
	return string([]rune(s)[:limit-3]) + "..."
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

func formatFloat(v *float64) string {
	if v == nil {
		return placeholder
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatID(v *int64) string {
	if v == nil {
		return placeholder
	}
	return strconv.FormatInt(*v, 10)
}
