package domain

// RawReference is a single cited-work record as returned by one source,
// before normalization. All fields are optional except Source; a record with
// neither DOI nor Title is unusable and is dropped during normalization.
type RawReference struct {
	Source     SourceType
	DOI        string
	Title      string
	Authors    []Author
	Year       int
	Journal    string
	ArXivID    string
	PubMedID   string
	Confidence float64
	RawText    string
}

// HasIdentity returns true if the record carries enough data to compute an
// identity key.
func (r RawReference) HasIdentity() bool {
	return r.DOI != "" || r.Title != ""
}

// NormalizedReference is a cited work after identity-key computation and
// cross-source merging. Sources lists every source that contributed a field,
// in contribution order.
type NormalizedReference struct {
	IdentityKey string
	DOI         string
	Title       string
	Authors     []Author
	Year        int
	Journal     string
	ArXivID     string
	PubMedID    string
	Sources     []SourceType
	Confidence  float64
	RawText     string
}

// HasSource reports whether the given source already contributed to this
// reference.
func (n *NormalizedReference) HasSource(s SourceType) bool {
	for _, have := range n.Sources {
		if have == s {
			return true
		}
	}
	return false
}
