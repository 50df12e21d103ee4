package pdftext

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/refsources"
)

const ieeeSample = `
Deep learning has transformed the field (see Section 2).

REFERENCES
[1] LeCun, Y. (2015). "Deep learning." Nature, vol. 521, pp. 436-444. doi:10.1038/nature14539
[2] Krizhevsky, A. (2012). "ImageNet classification with deep convolutional neural networks." Communications of the ACM.
`

const apaSample = `
Introduction mentions References in passing.

Bibliography

Hochreiter, S., Schmidhuber, J. (1997). Long short-term memory. Neural Computation, 9(8), 1735-1780.

Vaswani, A. (2017). Attention is all you need. Advances in Neural Information Processing Systems, 30.
`

func TestParser_Parse_IEEE(t *testing.T) {
	parser := NewParser(0.5)
	refs := parser.Parse(ieeeSample)

	require.Len(t, refs, 2)

	first := refs[0]
	assert.Equal(t, domain.SourceTypePDFText, first.Source)
	assert.Equal(t, "Deep learning", first.Title)
	assert.Equal(t, 2015, first.Year)
	assert.Equal(t, "Nature", first.Journal)
	assert.Equal(t, "10.1038/nature14539", first.DOI)
	require.Len(t, first.Authors, 1)
	assert.Equal(t, "Y. LeCun", first.Authors[0].Name)
	// DOI presence lifts confidence above the format tier.
	assert.Equal(t, confidenceDOI, first.Confidence)

	second := refs[1]
	assert.Equal(t, "ImageNet classification with deep convolutional neural networks", second.Title)
	assert.Equal(t, 2012, second.Year)
	assert.Empty(t, second.DOI)
	assert.Equal(t, confidenceIEEE, second.Confidence)
}

func TestParser_Parse_APA(t *testing.T) {
	parser := NewParser(0.5)
	refs := parser.Parse(apaSample)

	require.Len(t, refs, 2)

	first := refs[0]
	assert.Equal(t, "Long short-term memory", first.Title)
	assert.Equal(t, 1997, first.Year)
	assert.Equal(t, "Neural Computation", first.Journal)
	require.Len(t, first.Authors, 2)
	assert.Equal(t, "S. Hochreiter", first.Authors[0].Name)
	assert.Equal(t, "J. Schmidhuber", first.Authors[1].Name)
	assert.Equal(t, confidenceAPA, first.Confidence)

	second := refs[1]
	assert.Equal(t, "Attention is all you need", second.Title)
	assert.Equal(t, 2017, second.Year)
}

func TestParser_Parse_InlineFallback(t *testing.T) {
	parser := NewParser(0.5)
	text := `The approach follows Smith et al. (2020) and refines earlier work.
Details are available at doi:10.1162/neco.1997.9.8.1735.`

	refs := parser.Parse(text)
	require.Len(t, refs, 2)

	var inline, doiRef *domain.RawReference
	for i := range refs {
		if refs[i].DOI != "" {
			doiRef = &refs[i]
		} else {
			inline = &refs[i]
		}
	}

	require.NotNil(t, inline)
	assert.Equal(t, 2020, inline.Year)
	require.Len(t, inline.Authors, 1)
	assert.Contains(t, inline.Authors[0].Name, "Smith et al")
	assert.Equal(t, confidenceInline, inline.Confidence)

	require.NotNil(t, doiRef)
	assert.Equal(t, "10.1162/neco.1997.9.8.1735", doiRef.DOI)
	assert.Equal(t, confidenceDOI, doiRef.Confidence)
}

func TestParser_Parse_ConfidenceFloor(t *testing.T) {
	parser := NewParser(0.7)
	text := `No reference section here, just Smith et al. (2020) in passing.`

	refs := parser.Parse(text)
	assert.Empty(t, refs, "inline citations sit below a 0.7 floor")
}

func TestParser_Parse_DedupesByDOI(t *testing.T) {
	parser := NewParser(0.5)
	text := `
References
[1] LeCun, Y. (2015). "Deep learning." Nature. doi:10.1038/nature14539
[2] LeCun, Y. (2015). "Deep learning." Nature. doi:10.1038/nature14539
`
	refs := parser.Parse(text)
	assert.Len(t, refs, 1)
}

func TestFindReferencesSection(t *testing.T) {
	_, found := findReferencesSection("no such heading in this text")
	assert.False(t, found)

	section, found := findReferencesSection("body mentions References early.\n\nREFERENCES\n[1] entry")
	require.True(t, found)
	assert.Contains(t, section, "[1] entry")
}

func TestCleanDOI(t *testing.T) {
	assert.Equal(t, "10.1038/nature14539", cleanDOI("10.1038/NATURE14539."))
	assert.Equal(t, "", cleanDOI("10.1038"))
	assert.Equal(t, "", cleanDOI("short"))
}

func TestExtractor_Fetch(t *testing.T) {
	extractor := New(Config{Enabled: true})
	extractor.extractText = func(path string, maxPages int) (string, error) {
		assert.Equal(t, "/library/papers/resnet.pdf", path)
		assert.Equal(t, DefaultMaxPages, maxPages)
		return ieeeSample, nil
	}

	result, err := extractor.Fetch(context.Background(), refsources.Query{
		PDFPath: "/library/papers/resnet.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceTypePDFText, result.Source)
	assert.Len(t, result.References, 2)
}

func TestExtractor_Fetch_NoPath(t *testing.T) {
	extractor := New(Config{Enabled: true})

	_, err := extractor.Fetch(context.Background(), refsources.Query{Title: "some paper"})
	assert.ErrorIs(t, err, domain.ErrNoIdentifier)
}

func TestExtractor_Fetch_ExtractionError(t *testing.T) {
	extractor := New(Config{Enabled: true})
	wantErr := errors.New("malformed xref table")
	extractor.extractText = func(string, int) (string, error) {
		return "", wantErr
	}

	_, err := extractor.Fetch(context.Background(), refsources.Query{PDFPath: "/tmp/broken.pdf"})
	assert.ErrorIs(t, err, wantErr)
}

func TestExtractor_Fetch_MaxResults(t *testing.T) {
	extractor := New(Config{Enabled: true})
	extractor.extractText = func(string, int) (string, error) {
		return ieeeSample, nil
	}

	result, err := extractor.Fetch(context.Background(), refsources.Query{
		PDFPath:    "/tmp/paper.pdf",
		MaxResults: 1,
	})
	require.NoError(t, err)
	assert.Len(t, result.References, 1)
}

func TestExtractor_Metadata(t *testing.T) {
	extractor := New(Config{Enabled: true})

	assert.Equal(t, domain.SourceTypePDFText, extractor.SourceType())
	assert.Equal(t, "PDF text", extractor.Name())
	assert.True(t, extractor.IsEnabled())
}
