package synth

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tier is the level a user is placed on by title.
type Tier string

const (
	TierDirector     Tier = "director"
	TierDeputy       Tier = "deputy"
	TierDirectorHead Tier = "director-head"
	TierHead         Tier = "head"
	TierStaff        Tier = "staff"
)

// Title keywords, lower-cased.
const (
	kwDirector  = "ředitel"
	kwDirectorF = "ředitelka"
	kwDeputy    = "náměstek"
	kwHead      = "vedoucí"
)

const (
	exactMatchScore = 100
	partialScale    = 80
)

// Classify places a user into a tier by position title. departmentName is
// consulted to tell heads of the director's own unit from other heads.
func Classify(title, departmentName string) Tier {
	lower := cases.Lower(language.Czech)
	t := strings.TrimSpace(lower.String(title))
	dept := lower.String(departmentName)

	switch {
	case t == kwDirector || t == kwDirectorF:
		return TierDirector
	case strings.Contains(t, kwDeputy):
		return TierDeputy
	case strings.Contains(t, kwHead) && (strings.Contains(dept, kwDirector) || strings.Contains(t, kwDirector)):
		return TierDirectorHead
	case strings.Contains(t, kwHead):
		return TierHead
	}
	return TierStaff
}

// DepartmentMatchScore rates how well two department codes match, from 0
// (nothing in common) to 100 (identical after trimming and upper-casing).
// Partial matches score floor(80 * common tokens / larger token count).
func DepartmentMatchScore(code1, code2 string) int {
	c1 := strings.ToUpper(strings.TrimSpace(code1))
	c2 := strings.ToUpper(strings.TrimSpace(code2))
	if c1 == "" || c2 == "" {
		return 0
	}
	if c1 == c2 {
		return exactMatchScore
	}

	parts1 := strings.Fields(c1)
	parts2 := strings.Fields(c2)
	in2 := make(map[string]struct{}, len(parts2))
	for _, p := range parts2 {
		in2[p] = struct{}{}
	}
	common := 0
	for _, p := range parts1 {
		if _, ok := in2[p]; ok {
			common++
		}
	}
	if common == 0 {
		return 0
	}
	maxParts := len(parts1)
	if len(parts2) > maxParts {
		maxParts = len(parts2)
	}
	return int(math.Floor(float64(common) / float64(maxParts) * partialScale))
}

// BestMatch returns the index of the candidate whose department code scores
// strictly highest against code, keeping the first on ties, or -1 when no
// candidate scores above zero. An empty code matches the first candidate.
func BestMatch(code string, candidates []string) int {
	if len(candidates) == 0 {
		return -1
	}
	if strings.TrimSpace(code) == "" {
		return 0
	}
	best, bestScore := -1, 0
	for i, c := range candidates {
		if s := DepartmentMatchScore(code, c); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}
