package graph

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theke/citation-graph-service/internal/domain"
)

func nodeByID(t *testing.T, n *Network, id string) Node {
	t.Helper()
	for _, node := range n.Nodes {
		if node.ID == id {
			return node
		}
	}
	t.Fatalf("node %q not found", id)
	return Node{}
}

func TestBuild_DedupesFanIn(t *testing.T) {
	// Two catalog papers cite the same external DOI: one node, two edges.
	p1 := &domain.Paper{ID: uuid.New(), Title: "Paper one", PublicationYear: 2020}
	p2 := &domain.Paper{ID: uuid.New(), Title: "Paper two", PublicationYear: 2021}

	identityKey := "doi:10.1038/nature14539"
	citations := []domain.Citation{
		{
			CitingPaperID: p1.ID,
			IdentityKey:   identityKey,
			Status:        domain.CitationStatusUnresolved,
			CitedTitle:    "Deep learning",
			CitedYear:     2015,
			CitedDOI:      "10.1038/nature14539",
		},
		{
			CitingPaperID: p2.ID,
			IdentityKey:   identityKey,
			Status:        domain.CitationStatusUnresolved,
			CitedTitle:    "Deep learning",
			CitedYear:     2015,
			CitedDOI:      "10.1038/nature14539",
		},
	}

	network := Build([]*domain.Paper{p1, p2}, citations)

	require.Len(t, network.Nodes, 3)
	require.Len(t, network.Edges, 2)

	stub := nodeByID(t, network, "ref:"+identityKey)
	assert.False(t, stub.Resolved)
	assert.Equal(t, "Deep learning", stub.Label)

	for _, edge := range network.Edges {
		assert.Equal(t, stub.ID, edge.Target)
	}
	assert.NotEqual(t, network.Edges[0].Source, network.Edges[1].Source)
	assert.NotEqual(t, network.Edges[0].ID, network.Edges[1].ID)
}

func TestBuild_ResolvedCitationSharesPaperNode(t *testing.T) {
	citing := &domain.Paper{ID: uuid.New(), Title: "Survey"}
	cited := &domain.Paper{ID: uuid.New(), Title: "Foundational work", DOI: "10.1/x"}

	citations := []domain.Citation{{
		CitingPaperID: citing.ID,
		CitedPaperID:  &cited.ID,
		IdentityKey:   "doi:10.1/x",
		Status:        domain.CitationStatusResolved,
		CitedTitle:    "Foundational work",
	}}

	network := Build([]*domain.Paper{citing, cited}, citations)

	// No stub node: the edge lands on the catalog paper's node.
	require.Len(t, network.Nodes, 2)
	require.Len(t, network.Edges, 1)
	assert.Equal(t, PaperNodeID(citing.ID), network.Edges[0].Source)
	assert.Equal(t, PaperNodeID(cited.ID), network.Edges[0].Target)
	assert.Equal(t, domain.CitationStatusResolved, network.Edges[0].Status)

	target := nodeByID(t, network, PaperNodeID(cited.ID))
	assert.True(t, target.Resolved)
	require.NotNil(t, target.PaperID)
	assert.Equal(t, cited.ID, *target.PaperID)
}

func TestBuild_UncitedPapersIncluded(t *testing.T) {
	lonely := &domain.Paper{ID: uuid.New(), Title: "Never cited, never citing"}

	network := Build([]*domain.Paper{lonely}, nil)

	require.Len(t, network.Nodes, 1)
	assert.Empty(t, network.Edges)
	assert.Equal(t, PaperNodeID(lonely.ID), network.Nodes[0].ID)
	assert.True(t, network.Nodes[0].Resolved)
}

func TestBuild_StubLabelFallsBackToRawText(t *testing.T) {
	citing := &domain.Paper{ID: uuid.New(), Title: "Scan"}
	citations := []domain.Citation{{
		CitingPaperID: citing.ID,
		IdentityKey:   "t:|a:|y:1999",
		Status:        domain.CitationStatusUnresolved,
		RawText:       "[3] An entry the parser could not structure, 1999.",
	}}

	network := Build([]*domain.Paper{citing}, citations)

	stub := nodeByID(t, network, "ref:t:|a:|y:1999")
	assert.Contains(t, stub.Label, "could not structure")
}

func TestBuild_LinkedTargetMissingFromCatalog(t *testing.T) {
	// A resolved citation whose paper row is not in the given catalog
	// slice still produces a matching node for its edge target.
	citing := &domain.Paper{ID: uuid.New(), Title: "Citing"}
	missingID := uuid.New()

	citations := []domain.Citation{{
		CitingPaperID: citing.ID,
		CitedPaperID:  &missingID,
		IdentityKey:   "doi:10.1/missing",
		Status:        domain.CitationStatusResolved,
		CitedTitle:    "Archived elsewhere",
	}}

	network := Build([]*domain.Paper{citing}, citations)

	require.Len(t, network.Edges, 1)
	target := nodeByID(t, network, network.Edges[0].Target)
	assert.Equal(t, PaperNodeID(missingID), target.ID)
	assert.True(t, target.Resolved)
}
