// Package arxiv provides a reference source for arXiv papers.
//
// The arXiv export API does not index reference lists, so the source works
// in two steps: the Atom API resolves the paper's arXiv ID and DOI, and the
// Semantic Scholar Graph API supplies the reference list for that paper.
package arxiv

import "encoding/xml"

// Feed represents the Atom XML response from the arXiv API.
type Feed struct {
	XMLName      xml.Name `xml:"feed"`
	TotalResults int      `xml:"totalResults"`
	StartIndex   int      `xml:"startIndex"`
	ItemsPerPage int      `xml:"itemsPerPage"`
	Entries      []Entry  `xml:"entry"`
}

// Entry represents a single arXiv paper in the Atom feed.
type Entry struct {
	ID        string   `xml:"id"` // "http://arxiv.org/abs/2301.12345v1"
	Title     string   `xml:"title"`
	Published string   `xml:"published"` // "2023-01-15T18:30:00Z"
	Authors   []Author `xml:"author"`
	DOI       string   `xml:"doi"`
}

// Author represents a paper author in the arXiv Atom feed.
type Author struct {
	Name        string `xml:"name"`
	Affiliation string `xml:"affiliation"`
}
