package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/use-agent/postpulse/models"
)

// numberRe matches a decimal with an optional magnitude suffix once commas
// and whitespace have been removed.
var numberRe = regexp.MustCompile(`(\d+)(?:\.(\d+))?([KkMmBb])?`)

// countTokenRe finds a count inside free text ("1,234", "76.7M", "12.3 K").
var countTokenRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?(?:\s?[KkMmBb]\b)?`)

var suffixMultiplier = map[byte]int64{
	'k': 1_000,
	'm': 1_000_000,
	'b': 1_000_000_000,
}

// ParseCount normalizes a human-readable count: "76.7M" -> 76700000,
// "12.3K" -> 12300, "1,234" -> 1234. Text without digits yields Unknown.
// Fractions are applied with integer arithmetic so "4.35K" is exactly 4350.
func ParseCount(text string) models.Count {
	cleaned := strings.Map(func(r rune) rune {
		if r == ',' || r == ' ' || r == '\u00a0' || r == '\t' || r == '\n' {
			return -1
		}
		return r
	}, text)

	m := numberRe.FindStringSubmatch(cleaned)
	if m == nil {
		return models.Unknown
	}
	intPart, fracPart, suffix := m[1], m[2], m[3]
	if len(intPart) > 15 {
		return models.Unknown
	}
	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return models.Unknown
	}

	mult := int64(1)
	if suffix != "" {
		mult = suffixMultiplier[strings.ToLower(suffix)[0]]
	}
	value := whole * mult

	if fracPart != "" && mult > 1 {
		// Only as many fraction digits as the multiplier can represent.
		scale := int64(1)
		digits := 0
		for s := mult; s > 1 && digits < len(fracPart); s /= 10 {
			scale *= 10
			digits++
		}
		frac, err := strconv.ParseInt(fracPart[:digits], 10, 64)
		if err != nil {
			return models.Unknown
		}
		value += frac * (mult / scale)
	}
	return models.Count(value)
}

// firstCount parses the first count token found in text.
func firstCount(text string) models.Count {
	tok := countTokenRe.FindString(text)
	if tok == "" {
		return models.Unknown
	}
	return ParseCount(tok)
}

// plausible builds the validator shared by every numeric chain.
func plausible(max int64) func(models.Count) bool {
	return func(c models.Count) bool {
		return c.Known() && int64(c) <= max
	}
}
