package normalize

import (
	"strings"

	"github.com/theke/citation-graph-service/internal/domain"
)

// Matcher decides whether two records describe the same work when no
// shared identifier settles it.
type Matcher struct {
	// TitleThreshold is the minimum token-set similarity for titles to
	// be considered the same work.
	TitleThreshold float64

	// YearTolerance allows publication years to differ by this much,
	// absorbing preprint-versus-published drift.
	YearTolerance int
}

// NewMatcher creates a matcher with the given thresholds.
func NewMatcher(titleThreshold float64, yearTolerance int) *Matcher {
	return &Matcher{
		TitleThreshold: titleThreshold,
		YearTolerance:  yearTolerance,
	}
}

// TitleSimilarity computes the Jaccard similarity of the two titles'
// token sets after collapsing. Returns a value in [0, 1].
func TitleSimilarity(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	intersection := 0
	for token := range tokensA {
		if _, ok := tokensB[token]; ok {
			intersection++
		}
	}

	union := len(tokensA) + len(tokensB) - intersection
	return float64(intersection) / float64(union)
}

// Match reports whether the reference and the candidate work describe the
// same publication, and the similarity that supported the decision.
//
// A shared normalized DOI is conclusive. Otherwise the titles must clear
// the similarity threshold and the years must fall within tolerance.
func (m *Matcher) Match(ref domain.NormalizedReference, title string, authors []domain.Author, year int, doi string) (bool, float64) {
	if ref.DOI != "" && NormalizeDOI(doi) == ref.DOI {
		return true, 1.0
	}

	similarity := TitleSimilarity(ref.Title, title)
	if similarity < m.TitleThreshold {
		return false, similarity
	}
	if !m.yearsCompatible(ref.Year, year) {
		return false, similarity
	}

	// When both sides name a first author, the surnames must agree.
	refSurname := strings.ToLower(domain.FirstAuthorSurname(ref.Authors))
	candSurname := strings.ToLower(domain.FirstAuthorSurname(authors))
	if refSurname != "" && candSurname != "" && refSurname != candSurname {
		return false, similarity
	}

	return true, similarity
}

// yearsCompatible reports whether two publication years are within
// tolerance. An unknown year on either side matches anything.
func (m *Matcher) yearsCompatible(a, b int) bool {
	if a == 0 || b == 0 {
		return true
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= m.YearTolerance
}

// tokenSet collapses a title and returns its unique tokens.
func tokenSet(title string) map[string]struct{} {
	fields := strings.Fields(CollapseTitle(title))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
