// Package crossref provides a client for the Crossref REST API.
//
// Crossref is the DOI registration agency for most scholarly publishers and
// exposes the reference list deposited with each work. This package implements
// the ReferenceSource interface for fetching the references of a work by DOI,
// with a bibliographic search fallback when only a title is known.
//
// API Documentation: https://api.crossref.org/swagger-ui/index.html
package crossref

// WorkResponse represents the response from the /works/{doi} endpoint.
type WorkResponse struct {
	Status  string `json:"status"`
	Message Work   `json:"message"`
}

// SearchResponse represents the response from the /works search endpoint.
type SearchResponse struct {
	Status  string `json:"status"`
	Message struct {
		TotalResults int    `json:"total-results"`
		Items        []Work `json:"items"`
	} `json:"message"`
}

// Work represents a registered work in Crossref.
type Work struct {
	DOI            string      `json:"DOI"`
	Title          []string    `json:"title"`
	Author         []Author    `json:"author"`
	ContainerTitle []string    `json:"container-title"`
	Issued         DateParts   `json:"issued"`
	ReferenceCount int         `json:"reference-count"`
	Reference      []Reference `json:"reference"`
	Score          float64     `json:"score"`
}

// Author represents a work author.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

// DateParts holds Crossref's nested date representation.
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
}

// Year returns the year component, or 0 if absent.
func (d DateParts) Year() int {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}

// Reference represents one entry in a work's deposited reference list.
// Most fields are optional; unstructured references carry only raw text.
type Reference struct {
	Key          string `json:"key"`
	DOI          string `json:"DOI"`
	ArticleTitle string `json:"article-title"`
	VolumeTitle  string `json:"volume-title"`
	Author       string `json:"author"`
	Year         string `json:"year"`
	JournalTitle string `json:"journal-title"`
	Unstructured string `json:"unstructured"`
}
