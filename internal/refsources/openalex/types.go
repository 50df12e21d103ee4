// Package openalex provides a reference source backed by the OpenAlex API.
//
// OpenAlex is a free, open catalog of scholarly works. Works carry a
// referenced_works list of OpenAlex IDs, which this package resolves into
// full cited-work records with a batched follow-up request.
//
// API Documentation: https://docs.openalex.org/
package openalex

// ListResponse represents the top-level response from the OpenAlex works
// list endpoint, used for both search and batched ID lookups.
type ListResponse struct {
	Meta    Meta   `json:"meta"`
	Results []Work `json:"results"`
}

// Meta contains metadata about a works list response.
type Meta struct {
	Count   int `json:"count"`
	DBTime  int `json:"db_response_time_ms"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Work represents an academic work in OpenAlex.
type Work struct {
	ID              string       `json:"id"`
	DOI             string       `json:"doi"`
	Title           string       `json:"title"`
	DisplayName     string       `json:"display_name"`
	PublicationYear int          `json:"publication_year"`
	Type            string       `json:"type"`
	Authorships     []Authorship `json:"authorships"`
	PrimaryLocation *Location    `json:"primary_location"`
	IDs             IDs          `json:"ids"`
	ReferencedWorks []string     `json:"referenced_works"`
}

// Authorship represents an author's contribution to a work.
type Authorship struct {
	AuthorPosition string     `json:"author_position"`
	Author         AuthorInfo `json:"author"`
}

// AuthorInfo contains basic author information.
type AuthorInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Orcid       string `json:"orcid"`
}

// Location represents where a work is available.
type Location struct {
	Source *Venue `json:"source"`
}

// Venue represents a publication venue (journal, repository, etc.).
type Venue struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

// IDs contains various identifiers for a work.
type IDs struct {
	OpenAlex string `json:"openalex"`
	DOI      string `json:"doi"`
	PMID     string `json:"pmid"`
	PMCID    string `json:"pmcid"`
}
