// Package graph builds the library-wide citation network view from
// persisted citation rows and the paper catalog.
package graph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/theke/citation-graph-service/internal/domain"
)

// Node is one vertex of the citation network. Resolved nodes represent
// catalog papers; unresolved nodes represent external works known only
// through citation snapshots.
type Node struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Resolved bool            `json:"resolved"`
	PaperID  *uuid.UUID      `json:"paper_id,omitempty"`
	Year     int             `json:"year,omitempty"`
	Authors  []domain.Author `json:"authors,omitempty"`
	DOI      string          `json:"doi,omitempty"`
}

// Edge is one citation row rendered as a directed edge.
type Edge struct {
	ID     string                `json:"id"`
	Source string                `json:"source"`
	Target string                `json:"target"`
	Status domain.CitationStatus `json:"status"`
}

// Network is the aggregate node/edge view over the whole library.
type Network struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// PaperNodeID returns the stable node id for a catalog paper.
func PaperNodeID(id uuid.UUID) string {
	return "paper:" + id.String()
}

// RefNodeID returns the stable node id for an external cited work.
func RefNodeID(identityKey string) string {
	return "ref:" + identityKey
}

// Build assembles the network from the full catalog and all citation rows.
//
// Every catalog paper becomes a node, cited or not. Cited works outside
// the catalog are deduplicated by identity key, so fan-in from several
// citing papers renders as many edges into a single node. Resolved and
// suggested citations point at the candidate paper's node; unresolved
// ones point at a reference stub node.
func Build(papers []*domain.Paper, citations []domain.Citation) *Network {
	network := &Network{
		Nodes: make([]Node, 0, len(papers)),
		Edges: make([]Edge, 0, len(citations)),
	}
	seen := make(map[string]struct{}, len(papers))

	for _, paper := range papers {
		id := PaperNodeID(paper.ID)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		paperID := paper.ID
		network.Nodes = append(network.Nodes, Node{
			ID:       id,
			Label:    paper.Title,
			Resolved: true,
			PaperID:  &paperID,
			Year:     paper.PublicationYear,
			Authors:  paper.Authors,
			DOI:      paper.DOI,
		})
	}

	for _, citation := range citations {
		source := PaperNodeID(citation.CitingPaperID)
		target := targetNodeID(citation)

		if _, ok := seen[target]; !ok {
			seen[target] = struct{}{}
			network.Nodes = append(network.Nodes, citedNode(citation, target))
		}

		network.Edges = append(network.Edges, Edge{
			ID:     fmt.Sprintf("edge:%s:%s", citation.CitingPaperID, citation.IdentityKey),
			Source: source,
			Target: target,
			Status: citation.Status,
		})
	}

	return network
}

// targetNodeID picks the node a citation edge points at. Citations linked
// to a catalog paper share that paper's node; the rest get a stub node
// keyed by identity so equal references from different papers coincide.
func targetNodeID(c domain.Citation) string {
	if c.CitedPaperID != nil {
		return PaperNodeID(*c.CitedPaperID)
	}
	return RefNodeID(c.IdentityKey)
}

// citedNode builds the node for a cited work the catalog pass did not
// produce. Usually a reference stub; a linked target can also land here
// when its paper row is absent from the given catalog slice.
func citedNode(c domain.Citation, nodeID string) Node {
	label := c.CitedTitle
	if label == "" {
		label = c.RawText
	}
	if label == "" {
		label = c.IdentityKey
	}

	node := Node{
		ID:      nodeID,
		Label:   label,
		Year:    c.CitedYear,
		Authors: c.CitedAuthors,
		DOI:     c.CitedDOI,
	}
	if c.CitedPaperID != nil {
		node.Resolved = true
		node.PaperID = c.CitedPaperID
	}
	return node
}
