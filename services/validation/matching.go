package validation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const ratioEpsilon = 1e-9

// SimilarityRatio is 1 - editDistance/maxLength over the case-folded,
// trimmed inputs. Empty input never matches.
func SimilarityRatio(a, b string) float64 {
	a = normalizeText(a)
	b = normalizeText(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	maxLen := utf8.RuneCountInString(a)
	if l := utf8.RuneCountInString(b); l > maxLen {
		maxLen = l
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(maxLen)
}

// MeetsThreshold compares a ratio with a tolerance for float rounding so that
// a ratio of exactly the threshold matches.
func MeetsThreshold(ratio, threshold float64) bool {
	return ratio+ratioEpsilon >= threshold
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

var (
	ageComponentRegex = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(years?|yrs?|yo|y/o|y|months?|mos?|mths?|m|weeks?|wks?|w|days?|d)\b`)
	bareNumberRegex   = regexp.MustCompile(`^\s*(\d+(?:[.,]\d+)?)\s*$`)
)

// ParseAgeYears converts free text such as "3 years 2 months", "14 weeks" or
// "2.5" into fractional years. A bare number is read as years.
func ParseAgeYears(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	if m := bareNumberRegex.FindStringSubmatch(s); m != nil {
		v, err := parseNumber(m[1])
		return v, err == nil
	}

	matches := ageComponentRegex.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, false
	}
	total := 0.0
	for _, m := range matches {
		v, err := parseNumber(m[1])
		if err != nil {
			return 0, false
		}
		switch unit := m[2]; {
		case strings.HasPrefix(unit, "y"):
			total += v
		case strings.HasPrefix(unit, "m"):
			total += v / 12
		case strings.HasPrefix(unit, "w"):
			total += v * 7 / 365.25
		case strings.HasPrefix(unit, "d"):
			total += v / 365.25
		}
	}
	return total, true
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}

// AgeFromDateOfBirth returns the age in fractional years at now.
func AgeFromDateOfBirth(dob, now time.Time) float64 {
	days := now.Sub(dob).Hours() / 24
	return days / 365.25
}

func AgeMatches(extractedYears, actualYears, tolerance float64) bool {
	return math.Abs(extractedYears-actualYears) <= tolerance+ratioEpsilon
}

const (
	GenderMale   = "male"
	GenderFemale = "female"
)

var (
	femaleTokens = map[string]bool{"f": true, "fs": true, "fn": true, "fi": true, "female": true, "spayed": true, "girl": true, "bitch": true, "queen": true, "hembra": true}
	maleTokens   = map[string]bool{"m": true, "mn": true, "mc": true, "mi": true, "male": true, "neutered": true, "castrated": true, "boy": true, "tom": true, "entire": true, "macho": true}
)

// NormalizeGender maps sex notations to male or female. Female notations are
// checked first because "female" contains "male".
func NormalizeGender(s string) string {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, t := range tokens {
		if femaleTokens[t] {
			return GenderFemale
		}
	}
	for _, t := range tokens {
		if maleTokens[t] {
			return GenderMale
		}
	}
	return ""
}

// NormalizeMicrochip strips whitespace and separators and upper-cases the
// result.
func NormalizeMicrochip(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) || r == '-' || r == '.' {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
