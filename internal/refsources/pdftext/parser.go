// Package pdftext provides a reference source that parses the reference
// list out of a locally stored PDF.
//
// Unlike the API-backed sources, extraction here is heuristic: the parser
// locates the references section by keyword, splits it into entries, and
// matches citation formats with decreasing confidence. Records below the
// configured confidence floor are dropped.
package pdftext

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/theke/citation-graph-service/internal/domain"
)

// referenceKeywords mark the start of a reference section heading.
var referenceKeywords = []string{
	"References",
	"REFERENCES",
	"Bibliography",
	"BIBLIOGRAPHY",
	"Works Cited",
	"Literature Cited",
}

var (
	// doiPattern matches DOIs: 10.XXXX/... where XXXX is 4+ digits.
	doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

	// ieeePattern matches numbered entries like
	// [1] Author, A. (2020). "Title." Journal, vol. 1, pp. 1-10.
	ieeePattern = regexp.MustCompile(`\[(\d+)\]\s*([^()\[\]]+?)\s*\((\d{4})\)\.\s*["']([^"']+)["']\.?\s*([^,\n]+)`)

	// apaPattern matches entries like
	// Author, A. (2020). Title. Journal, 1(1), 1-10.
	apaPattern = regexp.MustCompile(`^([^()\n]+?)\s*\((\d{4})\)\.\s*([^.\n]+)\.\s*([^,\n]+)`)

	// inlinePattern matches narrative citations like "Smith et al. (2020)".
	inlinePattern = regexp.MustCompile(`([A-Z][A-Za-z\s,.\-]+?et al\.?)\s*\((\d{4})\)`)

	// entryMarker splits numbered reference lists on [n] markers.
	entryMarker = regexp.MustCompile(`\n(?:\s*)\[\d+\]`)
)

// Confidence tiers per citation format, matched in order of specificity.
const (
	confidenceIEEE   = 0.85
	confidenceAPA    = 0.80
	confidenceDOI    = 0.90
	confidenceInline = 0.60
)

// Parser extracts cited-work records from PDF text.
type Parser struct {
	// MinConfidence drops parsed records below this confidence.
	MinConfidence float64
}

// NewParser creates a parser with the given confidence floor.
func NewParser(minConfidence float64) *Parser {
	return &Parser{MinConfidence: minConfidence}
}

// Parse extracts references from the full text of a paper.
// It prefers the references section; when none is found it falls back to
// scanning the whole text for inline citations and DOIs.
func (p *Parser) Parse(text string) []domain.RawReference {
	section, found := findReferencesSection(text)

	var refs []domain.RawReference
	if found {
		refs = p.parseSection(section)
	} else {
		refs = p.parseInline(text)
	}

	return p.filter(dedupe(refs))
}

// parseSection splits a references section into entries and parses each.
func (p *Parser) parseSection(section string) []domain.RawReference {
	refs := make([]domain.RawReference, 0, 32)
	for _, entry := range splitEntries(section) {
		if raw, ok := parseEntry(entry); ok {
			refs = append(refs, raw)
		}
	}
	return refs
}

// parseInline scans body text for narrative citations and bare DOIs.
func (p *Parser) parseInline(text string) []domain.RawReference {
	var refs []domain.RawReference

	for _, m := range inlinePattern.FindAllStringSubmatch(text, -1) {
		year, _ := strconv.Atoi(m[2])
		refs = append(refs, domain.RawReference{
			Source:     domain.SourceTypePDFText,
			Authors:    []domain.Author{{Name: strings.TrimSpace(m[1])}},
			Year:       year,
			Confidence: confidenceInline,
			RawText:    strings.TrimSpace(m[0]),
		})
	}

	for _, doi := range doiPattern.FindAllString(text, -1) {
		doi = cleanDOI(doi)
		if doi == "" {
			continue
		}
		refs = append(refs, domain.RawReference{
			Source:     domain.SourceTypePDFText,
			DOI:        doi,
			Confidence: confidenceDOI,
			RawText:    doi,
		})
	}

	return refs
}

// filter drops records below the confidence floor.
func (p *Parser) filter(refs []domain.RawReference) []domain.RawReference {
	if p.MinConfidence <= 0 {
		return refs
	}
	kept := refs[:0]
	for _, ref := range refs {
		if ref.Confidence >= p.MinConfidence {
			kept = append(kept, ref)
		}
	}
	return kept
}

// findReferencesSection returns the text following the last reference
// section heading. Using the last occurrence skips mentions of the word
// in the body.
func findReferencesSection(text string) (string, bool) {
	best := -1
	bestLen := 0
	for _, keyword := range referenceKeywords {
		idx := strings.LastIndex(text, keyword)
		if idx > best {
			best = idx
			bestLen = len(keyword)
		}
	}
	if best < 0 {
		return "", false
	}
	return text[best+bestLen:], true
}

// splitEntries breaks a references section into individual entries.
// Numbered lists split on [n] markers; otherwise blank lines separate
// entries, with single newlines treated as wrapped lines.
func splitEntries(section string) []string {
	var parts []string
	if entryMarker.MatchString("\n" + section) {
		parts = entryMarker.Split("\n"+section, -1)
		// Reattach the markers so the IEEE pattern can match.
		for i := 1; i < len(parts); i++ {
			parts[i] = "[" + strconv.Itoa(i) + "]" + parts[i]
		}
	} else {
		parts = strings.Split(section, "\n\n")
	}

	entries := make([]string, 0, len(parts))
	for _, part := range parts {
		entry := strings.Join(strings.Fields(part), " ")
		if len(entry) < 20 {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// parseEntry parses a single reference entry, trying formats from most to
// least specific.
func parseEntry(entry string) (domain.RawReference, bool) {
	raw := domain.RawReference{
		Source:  domain.SourceTypePDFText,
		RawText: entry,
	}

	if m := ieeePattern.FindStringSubmatch(entry); m != nil {
		raw.Authors = parseAuthors(m[2])
		raw.Year, _ = strconv.Atoi(m[3])
		raw.Title = cleanTitle(m[4])
		raw.Journal = strings.TrimSpace(strings.TrimRight(m[5], ".,"))
		raw.Confidence = confidenceIEEE
	} else if m := apaPattern.FindStringSubmatch(entry); m != nil {
		raw.Authors = parseAuthors(m[1])
		raw.Year, _ = strconv.Atoi(m[2])
		raw.Title = cleanTitle(m[3])
		raw.Journal = strings.TrimSpace(strings.TrimRight(m[4], ".,"))
		raw.Confidence = confidenceAPA
	}

	if doi := doiPattern.FindString(entry); doi != "" {
		raw.DOI = cleanDOI(doi)
		if raw.DOI != "" && raw.Confidence < confidenceDOI {
			raw.Confidence = confidenceDOI
		}
	}

	if raw.Confidence == 0 {
		return domain.RawReference{}, false
	}
	return raw, true
}

// cleanTitle strips surrounding whitespace and the trailing period that
// quoted titles carry.
func cleanTitle(title string) string {
	return strings.TrimSuffix(strings.TrimSpace(title), ".")
}

// parseAuthors splits an author run like "Smith, J., Doe, A., and Lee, B."
// into individual names. This is best-effort; malformed runs come back as
// a single name.
func parseAuthors(run string) []domain.Author {
	run = strings.TrimSpace(strings.TrimRight(run, ","))
	if run == "" {
		return nil
	}

	run = strings.ReplaceAll(run, " and ", ", ")
	run = strings.ReplaceAll(run, " & ", ", ")

	// "Last, F., Last, F." alternates surname and initial parts; pair them
	// back up. If the parts don't alternate cleanly, keep the whole run.
	parts := strings.Split(run, ",")
	var authors []domain.Author
	for i := 0; i < len(parts); i++ {
		surname := strings.TrimSpace(parts[i])
		if surname == "" {
			continue
		}
		if i+1 < len(parts) {
			initial := strings.TrimSpace(parts[i+1])
			if isInitial(initial) {
				authors = append(authors, domain.Author{Name: initial + " " + surname})
				i++
				continue
			}
		}
		authors = append(authors, domain.Author{Name: surname})
	}

	if len(authors) == 0 {
		return []domain.Author{{Name: run}}
	}
	return authors
}

// isInitial reports whether s looks like abbreviated forenames ("J." or "J. K.").
func isInitial(s string) bool {
	if s == "" || len(s) > 8 {
		return false
	}
	for _, field := range strings.Fields(s) {
		if len(strings.TrimRight(field, ".")) > 2 {
			return false
		}
	}
	return true
}

// cleanDOI strips trailing punctuation and lowercases the DOI.
func cleanDOI(doi string) string {
	doi = strings.TrimRight(doi, ".,;:)")
	if len(doi) < 10 || !strings.Contains(doi, "/") {
		return ""
	}
	return strings.ToLower(doi)
}

// dedupe removes repeated records, preferring the higher-confidence copy.
// Records are considered the same when their DOI matches, or failing that
// their title and year.
func dedupe(refs []domain.RawReference) []domain.RawReference {
	type key struct {
		doi   string
		title string
		year  int
	}
	seen := make(map[key]int, len(refs))
	out := make([]domain.RawReference, 0, len(refs))

	for _, ref := range refs {
		k := key{doi: ref.DOI}
		if k.doi == "" {
			k.title = strings.ToLower(ref.Title)
			if k.title == "" {
				k.title = strings.ToLower(ref.RawText)
			}
			k.year = ref.Year
		}
		if idx, ok := seen[k]; ok {
			if ref.Confidence > out[idx].Confidence {
				out[idx] = ref
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, ref)
	}
	return out
}
