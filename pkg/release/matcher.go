package release

import (
	"regexp"

	"github.com/hbollon/go-edlib"
)

// numberRegex extracts sequence numbers from titles (e.g., "2", "3")
var numberRegex = regexp.MustCompile(`\b(\d+)\b`)

// MatchConfidence represents the confidence level of a title match.
type MatchConfidence int

const (
	ConfidenceNone   MatchConfidence = iota // Score < 0.70
	ConfidenceLow                           // Score >= 0.70
	ConfidenceMedium                        // Score >= 0.85
	ConfidenceHigh                          // Score >= 0.95
)

func (c MatchConfidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceLow:
		return "low"
	default:
		return "none"
	}
}

// MatchResult represents the result of a fuzzy title match.
type MatchResult struct {
	Title      string          // The matched candidate title
	Score      float64         // Jaro-Winkler similarity score (0.0-1.0)
	Confidence MatchConfidence // Confidence level based on score
}

// MatchTitle finds the candidate closest to query.
// Uses Jaro-Winkler similarity which favors prefix matches, so a mistyped ending still
// lands on the intended title. Sequence numbers that agree earn a small bonus.
// The first candidate wins ties.
func MatchTitle(query string, candidates []string) MatchResult {
	if len(candidates) == 0 {
		return MatchResult{Confidence: ConfidenceNone}
	}

	normalizedQuery := SearchKey(query)
	queryNumbers := extractNumbers(normalizedQuery)

	best := MatchResult{Confidence: ConfidenceNone}

	for _, candidate := range candidates {
		normalizedCandidate := SearchKey(candidate)

		score := float64(edlib.JaroWinklerSimilarity(normalizedQuery, normalizedCandidate))
		score = adjustScoreForNumbers(score, queryNumbers, extractNumbers(normalizedCandidate))

		if score > best.Score {
			best.Title = candidate
			best.Score = score
		}
	}

	switch {
	case best.Score >= 0.95:
		best.Confidence = ConfidenceHigh
	case best.Score >= 0.85:
		best.Confidence = ConfidenceMedium
	case best.Score >= 0.70:
		best.Confidence = ConfidenceLow
	default:
		best.Confidence = ConfidenceNone
		best.Title = "" // Clear title for no-match case
	}

	return best
}

func extractNumbers(title string) []string {
	return numberRegex.FindAllString(title, -1)
}

// adjustScoreForNumbers rewards a candidate sharing a sequence number with the query and
// penalizes one that lacks or contradicts it.
func adjustScoreForNumbers(score float64, queryNums, candidateNums []string) float64 {
	if len(queryNums) == 0 {
		return score
	}
	if len(candidateNums) == 0 {
		return score * 0.85
	}

	candidateSet := make(map[string]bool, len(candidateNums))
	for _, n := range candidateNums {
		candidateSet[n] = true
	}
	for _, n := range queryNums {
		if candidateSet[n] {
			return min(score*1.05, 1.0)
		}
	}
	return score * 0.90
}
