// Package normalize turns raw cited-work records from heterogeneous
// sources into canonical form so records describing the same work can be
// recognized and merged.
//
// The identity key is the unit of deduplication: DOI-bearing records key on
// the lowercased DOI, everything else on a collapsed title plus the first
// author's surname and year.
package normalize

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/theke/citation-graph-service/internal/domain"
)

// foldDiacritics decomposes characters and strips combining marks, so
// "Müller" and "Muller" collapse to the same form.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CollapseTitle reduces a title to its comparable core: lowercase, no
// diacritics, no punctuation, single spaces.
func CollapseTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))

	if folded, _, err := transform.String(foldDiacritics, title); err == nil {
		title = folded
	}

	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeDOI lowercases a DOI and strips URL and scheme prefixes.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.ToLower(strings.TrimSpace(doi))
}

// IdentityKey computes the deduplication key for a cited work.
// DOI identity is exact; title identity combines the collapsed title with
// the first author's surname and the publication year.
func IdentityKey(doi, title string, authors []domain.Author, year int) string {
	if d := NormalizeDOI(doi); d != "" {
		return "doi:" + d
	}

	var b strings.Builder
	b.WriteString("t:")
	b.WriteString(CollapseTitle(title))
	b.WriteString("|a:")
	b.WriteString(strings.ToLower(domain.FirstAuthorSurname(authors)))
	b.WriteString("|y:")
	b.WriteString(strconv.Itoa(year))
	return b.String()
}

// Reference converts a raw cited-work record into canonical form.
func Reference(raw domain.RawReference) domain.NormalizedReference {
	doi := NormalizeDOI(raw.DOI)

	return domain.NormalizedReference{
		IdentityKey: IdentityKey(doi, raw.Title, raw.Authors, raw.Year),
		DOI:         doi,
		Title:       strings.TrimSpace(raw.Title),
		Authors:     raw.Authors,
		Year:        raw.Year,
		Journal:     strings.TrimSpace(raw.Journal),
		ArXivID:     strings.TrimSpace(raw.ArXivID),
		PubMedID:    strings.TrimSpace(raw.PubMedID),
		Sources:     []domain.SourceType{raw.Source},
		Confidence:  raw.Confidence,
		RawText:     strings.TrimSpace(raw.RawText),
	}
}
