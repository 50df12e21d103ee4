// Package resolver merges cited-work records from multiple sources and
// resolves them against the local paper catalog.
package resolver

import (
	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/normalize"
	"github.com/theke/citation-graph-service/internal/refsources"
)

// MergeOutcome is the result of folding the per-source fetch results into
// one deduplicated reference list.
type MergeOutcome struct {
	References     []domain.NormalizedReference
	SourcesQueried []domain.SourceType
	SourcesFailed  []domain.SourceType
}

// Merge folds per-source fetch results into a deduplicated reference list.
//
// Results are processed in the given order; within an identity the
// first-seen record wins and later records only fill fields the winner is
// missing. Identity is the exact key first, then a fuzzy pass with the
// matcher: a record whose key is new still folds into an existing entry
// when the titles, years and first-author surnames agree, so a source
// that knows the DOI and one that only knows the title produce one row,
// not two. Failed sources are recorded, never fatal: one source timing
// out must not lose the references the others returned.
func Merge(results []refsources.SourceResult, matcher *normalize.Matcher) MergeOutcome {
	outcome := MergeOutcome{}
	index := make(map[string]int)

	for _, result := range results {
		outcome.SourcesQueried = append(outcome.SourcesQueried, result.Source)
		if result.Error != nil {
			outcome.SourcesFailed = append(outcome.SourcesFailed, result.Source)
			continue
		}
		if result.Result == nil {
			continue
		}

		for _, raw := range result.Result.References {
			if !raw.HasIdentity() && raw.RawText == "" {
				continue
			}

			ref := normalize.Reference(raw)
			idx, seen := index[ref.IdentityKey]
			if !seen {
				idx, seen = fuzzyIndex(outcome.References, matcher, ref)
			}
			if !seen {
				index[ref.IdentityKey] = len(outcome.References)
				outcome.References = append(outcome.References, ref)
				continue
			}

			merged := &outcome.References[idx]
			fill(merged, ref)
			index[ref.IdentityKey] = idx

			// Filling may have attached a DOI or year to a record that
			// was keyed by title alone. Re-key so later records and the
			// upsert land on the stronger identity.
			if key := normalize.IdentityKey(merged.DOI, merged.Title, merged.Authors, merged.Year); key != merged.IdentityKey {
				merged.IdentityKey = key
				index[key] = idx
			}
		}
	}

	return outcome
}

// fuzzyIndex scans the merged entries for one that describes the same
// work as ref despite a different identity key. Distinct DOIs on both
// sides keep the records apart no matter how similar the titles are.
func fuzzyIndex(refs []domain.NormalizedReference, matcher *normalize.Matcher, ref domain.NormalizedReference) (int, bool) {
	if matcher == nil || ref.Title == "" {
		return 0, false
	}
	for i := range refs {
		if refs[i].DOI != "" && ref.DOI != "" && refs[i].DOI != ref.DOI {
			continue
		}
		if ok, _ := matcher.Match(refs[i], ref.Title, ref.Authors, ref.Year, ref.DOI); ok {
			return i, true
		}
	}
	return 0, false
}

// fill copies fields from a later record into the first-seen record,
// filling only what is missing. The source list and confidence accumulate:
// more sources agreeing on a work means more trust in it.
func fill(dst *domain.NormalizedReference, src domain.NormalizedReference) {
	if dst.DOI == "" {
		dst.DOI = src.DOI
	}
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if len(dst.Authors) == 0 {
		dst.Authors = src.Authors
	}
	if dst.Year == 0 {
		dst.Year = src.Year
	}
	if dst.Journal == "" {
		dst.Journal = src.Journal
	}
	if dst.ArXivID == "" {
		dst.ArXivID = src.ArXivID
	}
	if dst.PubMedID == "" {
		dst.PubMedID = src.PubMedID
	}
	if dst.RawText == "" {
		dst.RawText = src.RawText
	}
	if src.Confidence > dst.Confidence {
		dst.Confidence = src.Confidence
	}
	for _, s := range src.Sources {
		if !dst.HasSource(s) {
			dst.Sources = append(dst.Sources, s)
		}
	}
}
